// Package letterbox computes uniform-scale placements of a source
// rectangle inside a target canvas, padding the remainder equally on
// opposing sides.
package letterbox

// Placement describes where a scaled source lands on the target canvas.
type Placement struct {
	Scale float64
	X     float64
	Y     float64
	W     float64
	H     float64
}

// Fit scales (srcW, srcH) uniformly so it is fully contained in
// (dstW, dstH) and centers it. The source is never cropped; opposing
// margins are always equal.
func Fit(srcW, srcH, dstW, dstH int) Placement {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Placement{}
	}

	scale := float64(dstW) / float64(srcW)
	if s := float64(dstH) / float64(srcH); s < scale {
		scale = s
	}

	w := float64(srcW) * scale
	h := float64(srcH) * scale

	return Placement{
		Scale: scale,
		X:     (float64(dstW) - w) / 2,
		Y:     (float64(dstH) - h) / 2,
		W:     w,
		H:     h,
	}
}
