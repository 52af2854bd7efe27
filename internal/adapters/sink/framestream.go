package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Frame stream records are varint length-prefixed protobuf messages:
//
//	1 kind    varint (1 header, 2 frame, 3 done, 4 aborted)
//	2 fps     varint
//	3 width   varint
//	4 height  varint
//	5 index   varint
//	6 png     bytes
//	7 frames  varint
const (
	fieldKind protowire.Number = iota + 1
	fieldFPS
	fieldWidth
	fieldHeight
	fieldIndex
	fieldPNG
	fieldFrames
)

const (
	kindHeader uint64 = iota + 1
	kindFrame
	kindDone
	kindAborted
)

// FrameStream writes each frame as a PNG record as soon as it arrives.
// Consumers can start reading before the render finishes.
type FrameStream struct {
	w      io.Writer
	fps    int
	order  order
	header bool
	enc    png.Encoder
	buf    bytes.Buffer
}

// NewFrameStream returns a streaming sink.
func NewFrameStream(w io.Writer, fps int) *FrameStream {
	return &FrameStream{w: w, fps: max(fps, 1), enc: png.Encoder{CompressionLevel: png.BestSpeed}}
}

func (s *FrameStream) record(msg []byte) error {
	out := protowire.AppendVarint(nil, uint64(len(msg)))
	out = append(out, msg...)
	_, err := s.w.Write(out)
	return err
}

func appendUint(b []byte, n protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, n, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func (s *FrameStream) WriteFrame(idx int, img image.Image) error {
	if err := s.order.accept(idx); err != nil {
		return err
	}
	if !s.header {
		b := img.Bounds()
		var msg []byte
		msg = appendUint(msg, fieldKind, kindHeader)
		msg = appendUint(msg, fieldFPS, uint64(s.fps))
		msg = appendUint(msg, fieldWidth, uint64(b.Dx()))
		msg = appendUint(msg, fieldHeight, uint64(b.Dy()))
		if err := s.record(msg); err != nil {
			return err
		}
		s.header = true
	}
	s.buf.Reset()
	if err := s.enc.Encode(&s.buf, img); err != nil {
		return fmt.Errorf("encode frame %d: %w", idx, err)
	}
	var msg []byte
	msg = appendUint(msg, fieldKind, kindFrame)
	msg = appendUint(msg, fieldIndex, uint64(idx))
	msg = protowire.AppendTag(msg, fieldPNG, protowire.BytesType)
	msg = protowire.AppendBytes(msg, s.buf.Bytes())
	return s.record(msg)
}

func (s *FrameStream) Close() error {
	if s.order.closed {
		return ErrClosed
	}
	s.order.closed = true
	var msg []byte
	msg = appendUint(msg, fieldKind, kindDone)
	msg = appendUint(msg, fieldFrames, uint64(s.order.next))
	return s.record(msg)
}

func (s *FrameStream) Abort() {
	if s.order.closed {
		return
	}
	s.order.closed = true
	_ = s.record(appendUint(nil, fieldKind, kindAborted))
}
