package sink

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Decoder for frame streams written by FrameStream.

const maxRecordSize = 64 << 20

var errStreamAborted = errors.New("frame stream aborted")

// StreamHeader describes a decoded frame stream.
type StreamHeader struct {
	FPS, Width, Height int
}

// StreamFrame is one decoded frame.
type StreamFrame struct {
	Index int
	PNG   []byte
}

type streamMsg struct {
	kind, fps, width, height, index, frames uint64
	png                                     []byte
}

func parseMsg(b []byte) (streamMsg, error) {
	var m streamMsg
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return m, protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case fieldKind:
				m.kind = v
			case fieldFPS:
				m.fps = v
			case fieldWidth:
				m.width = v
			case fieldHeight:
				m.height = v
			case fieldIndex:
				m.index = v
			case fieldFrames:
				m.frames = v
			}
		case typ == protowire.BytesType && num == fieldPNG:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			m.png = append([]byte(nil), v...)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return m, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

// readFrameStream decodes a complete frame stream. It fails for streams
// that were aborted or never closed, and for records over maxRecordSize.
func readFrameStream(r io.Reader) (StreamHeader, []StreamFrame, error) {
	br := bufio.NewReader(r)
	var (
		hdr    StreamHeader
		frames []StreamFrame
	)
	for {
		size, err := binary.ReadUvarint(br)
		if err == io.EOF {
			return hdr, frames, errors.New("frame stream truncated")
		}
		if err != nil {
			return hdr, frames, err
		}
		if size > maxRecordSize {
			return hdr, frames, fmt.Errorf("frame stream: record of %d bytes exceeds %d", size, maxRecordSize)
		}
		buf := make([]byte, size)
		if _, err := io.ReadFull(br, buf); err != nil {
			return hdr, frames, fmt.Errorf("read record: %w", err)
		}
		m, err := parseMsg(buf)
		if err != nil {
			return hdr, frames, err
		}
		switch m.kind {
		case kindHeader:
			hdr = StreamHeader{FPS: int(m.fps), Width: int(m.width), Height: int(m.height)}
		case kindFrame:
			frames = append(frames, StreamFrame{Index: int(m.index), PNG: m.png})
		case kindDone:
			if int(m.frames) != len(frames) {
				return hdr, frames, fmt.Errorf("frame stream: trailer says %d frames, read %d", m.frames, len(frames))
			}
			return hdr, frames, nil
		case kindAborted:
			return hdr, frames, errStreamAborted
		default:
			return hdr, frames, fmt.Errorf("frame stream: unknown record kind %d", m.kind)
		}
	}
}
