package palette

import (
	"image"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
)

// Sampling steps for pixel collection. The dominant-color path samples
// denser than the full palette path because it feeds background theming
// and a skewed sample there is far more visible than in a swatch row.
const (
	paletteSampleStep  = 10
	dominantSampleStep = 5
)

// Pixels brighter than this on every channel are treated as scan/border
// white and excluded from sampling, as are fully transparent pixels.
const whiteCutoff = 250

type pixel struct {
	r, g, b uint8
}

type cluster struct {
	color  colorful.Color
	weight int
}

// samplePixels walks the image with the given step and collects opaque,
// non-near-white pixels.
func samplePixels(img image.Image, step int) []pixel {
	bounds := img.Bounds()
	pixels := make([]pixel, 0, (bounds.Dx()*bounds.Dy())/step+1)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if i%step != 0 {
				i++
				continue
			}
			i++

			r, g, b, a := img.At(x, y).RGBA()
			if a < 0x8000 {
				continue
			}
			r8, g8, b8 := uint8(r>>8), uint8(g>>8), uint8(b>>8)
			if r8 > whiteCutoff && g8 > whiteCutoff && b8 > whiteCutoff {
				continue
			}
			pixels = append(pixels, pixel{r8, g8, b8})
		}
	}
	return pixels
}

// medianCut groups the sampled pixels into at most n clusters and returns
// them ordered by weight (sample count), heaviest first. Fewer than n
// clusters come back when the image has too little color variety to keep
// splitting.
func medianCut(pixels []pixel, n int) []cluster {
	if len(pixels) == 0 || n < 1 {
		return nil
	}

	boxes := []box{newBox(pixels)}
	for len(boxes) < n {
		// Split the box with the widest channel range; stop once nothing
		// is splittable.
		idx := -1
		widest := 0
		for i, b := range boxes {
			if w := b.widestRange(); w > widest && len(b.pixels) > 1 {
				widest = w
				idx = i
			}
		}
		if idx < 0 {
			break
		}
		lo, hi := boxes[idx].split()
		boxes[idx] = lo
		boxes = append(boxes, hi)
	}

	clusters := make([]cluster, 0, len(boxes))
	for _, b := range boxes {
		clusters = append(clusters, cluster{color: b.representative(), weight: len(b.pixels)})
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].weight > clusters[j].weight })
	return clusters
}

type box struct {
	pixels                 []pixel
	rMin, rMax, gMin, gMax uint8
	bMin, bMax             uint8
}

func newBox(pixels []pixel) box {
	b := box{pixels: pixels, rMin: 255, gMin: 255, bMin: 255}
	for _, p := range pixels {
		if p.r < b.rMin {
			b.rMin = p.r
		}
		if p.r > b.rMax {
			b.rMax = p.r
		}
		if p.g < b.gMin {
			b.gMin = p.g
		}
		if p.g > b.gMax {
			b.gMax = p.g
		}
		if p.b < b.bMin {
			b.bMin = p.b
		}
		if p.b > b.bMax {
			b.bMax = p.b
		}
	}
	return b
}

func (b *box) widestRange() int {
	rr := int(b.rMax) - int(b.rMin)
	gr := int(b.gMax) - int(b.gMin)
	br := int(b.bMax) - int(b.bMin)
	w := rr
	if gr > w {
		w = gr
	}
	if br > w {
		w = br
	}
	return w
}

// split divides the box at the median of its widest channel.
func (b *box) split() (box, box) {
	rr := int(b.rMax) - int(b.rMin)
	gr := int(b.gMax) - int(b.gMin)
	br := int(b.bMax) - int(b.bMin)

	key := func(p pixel) uint8 { return p.r }
	if gr >= rr && gr >= br {
		key = func(p pixel) uint8 { return p.g }
	} else if br >= rr && br >= gr {
		key = func(p pixel) uint8 { return p.b }
	}

	sorted := make([]pixel, len(b.pixels))
	copy(sorted, b.pixels)
	sort.Slice(sorted, func(i, j int) bool { return key(sorted[i]) < key(sorted[j]) })

	mid := len(sorted) / 2
	return newBox(sorted[:mid]), newBox(sorted[mid:])
}

// representative is the weight-carrying color of the box: the mean of its
// members averaged in Lab space, which tracks perceived color better than
// a plain channel mean on wide boxes.
func (b *box) representative() colorful.Color {
	if len(b.pixels) == 0 {
		return colorful.Color{}
	}

	var l, aa, bb float64
	for _, p := range b.pixels {
		c := colorful.Color{R: float64(p.r) / 255, G: float64(p.g) / 255, B: float64(p.b) / 255}
		cl, ca, cb := c.Lab()
		l += cl
		aa += ca
		bb += cb
	}
	n := float64(len(b.pixels))
	return colorful.Lab(l/n, aa/n, bb/n).Clamped()
}
