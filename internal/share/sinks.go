package share

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
)

// SystemClipboard writes through the OS clipboard. This is the secure
// mechanism and always the first link in the chain.
type SystemClipboard struct{}

func (SystemClipboard) Write(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard unsupported on this platform")
	}
	return clipboard.WriteAll(text)
}

// WriterClipboard is the legacy fallback: it dumps the text to an
// arbitrary writer, typically the response stream, so the user can copy
// it by hand when no clipboard mechanism exists.
type WriterClipboard struct {
	W io.Writer
}

func (c WriterClipboard) Write(text string) error {
	if c.W == nil {
		return fmt.Errorf("no fallback writer configured")
	}
	_, err := fmt.Fprintln(c.W, text)
	return err
}

// FileDownloadSink saves exports under a directory. It is the terminal
// fallback and is expected to always succeed when the directory is
// writable.
type FileDownloadSink struct {
	Dir string
}

func (s FileDownloadSink) Download(_ context.Context, f ShareFile) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.Dir, f.Name), f.PNG, 0o644)
}
