package core

import "errors"

// Failure taxonomy for the frame pipeline. Only ErrDataUnavailable and a
// fully exhausted share/clipboard chain ever reach the user; everything
// else is recovered locally by the stage that hit it.
var (
	// ErrDataUnavailable means the upstream track or album fetch failed
	// or returned malformed data. Surfaced as a full error page.
	ErrDataUnavailable = errors.New("catalog data unavailable")

	// ErrImageUnreadable means palette extraction could not decode or
	// read back pixel data. The frame renders with no palette.
	ErrImageUnreadable = errors.New("image unreadable")

	// ErrCaptureDegraded means one or more remote images could not be
	// inlined during capture. The capture still succeeds with the
	// affected regions blank.
	ErrCaptureDegraded = errors.New("capture degraded")

	// ErrShareFailed means a share mechanism threw; the dispatcher falls
	// back to the next mechanism in its chain.
	ErrShareFailed = errors.New("share failed")

	// ErrClipboardFailed means both the modern and legacy copy paths
	// failed.
	ErrClipboardFailed = errors.New("clipboard copy failed")
)
