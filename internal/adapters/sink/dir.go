package sink

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// Dir writes each frame as a numbered PNG into a directory. Abort removes
// the directory so no partial sequence survives.
type Dir struct {
	path  string
	order order
}

// NewDir creates path (and parents) for a PNG sequence.
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}
	return &Dir{path: path}, nil
}

// FrameName is the file name of frame idx.
func FrameName(idx int) string {
	return fmt.Sprintf("frame_%06d.png", idx)
}

func (s *Dir) WriteFrame(idx int, img image.Image) error {
	if err := s.order.accept(idx); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(s.path, FrameName(idx)))
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode frame %d: %w", idx, err)
	}
	return f.Close()
}

func (s *Dir) Close() error {
	if s.order.closed {
		return ErrClosed
	}
	s.order.closed = true
	return nil
}

func (s *Dir) Abort() {
	s.order.closed = true
	_ = os.RemoveAll(s.path)
}
