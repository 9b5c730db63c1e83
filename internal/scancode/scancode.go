// Package scancode builds URLs for the third-party scannable-code image
// service. The returned image is opaque to us: it is laid out and
// captured, never parsed.
package scancode

import (
	"fmt"

	"sonolise/internal/core"
)

const (
	background = "ffffff"
	foreground = "black"
	format     = "png"
)

// Builder renders scannable-code URLs for a fixed host.
type Builder struct {
	host string
}

func NewBuilder(host string) *Builder {
	return &Builder{host: host}
}

// URL returns the code image URL for a catalog URI at the given pixel
// size. Size is clamped to the service's accepted range.
func (b *Builder) URL(uri string, size int) string {
	if size < core.MinCodeSize {
		size = core.MinCodeSize
	}
	if size > core.MaxCodeSize {
		size = core.MaxCodeSize
	}
	return fmt.Sprintf("https://%s/uri/plain/%s/%s/%s/%d/%s",
		b.host, format, background, foreground, size, uri)
}
