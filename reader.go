package geostream

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
)

// Reader is a single-pass iterator over the features of a stream. It
// decodes the header on construction and then yields one feature per
// Next call, scanning frames forward from the header or backward from
// the end of the stream. A reader is not restartable; traverse again by
// constructing a new one. Any codec failure is sticky: once Next returns
// an error other than io.EOF, every later call returns the same error.
type Reader struct {
	header Header
	codec  *schemaCodec
	cursor frameCursor
	err    error
}

// frameCursor produces raw compressed frame payloads in one direction.
// It returns io.EOF when the stream side of the traversal is exhausted.
type frameCursor interface {
	next() ([]byte, error)
}

func newReader(stream io.ReadSeeker, dir Direction) (*Reader, error) {
	if _, err := stream.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamCorrupt, err)
	}
	header, err := decodeHeader(stream)
	if err != nil {
		return nil, err
	}
	codec := schemaCodecs[header.Version]

	endOfHeader, err := stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamCorrupt, err)
	}

	var cursor frameCursor
	switch dir {
	case Forward:
		cursor = &forwardCursor{stream: stream}
	case Reverse:
		end, err := stream.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStreamCorrupt, err)
		}
		cursor = &reverseCursor{stream: stream, start: endOfHeader, pos: end}
	default:
		return nil, fmt.Errorf("geostream: unknown direction %d", dir)
	}

	return &Reader{header: header, codec: codec, cursor: cursor}, nil
}

// SchemaVersion returns the stream's schema version.
func (r *Reader) SchemaVersion() int {
	return r.header.Version
}

// SRID returns the stream's spatial reference identifier.
func (r *Reader) SRID() int {
	return r.header.SRID
}

// Properties returns the header properties, nil when the stream has none.
func (r *Reader) Properties() geojson.Properties {
	return r.header.Properties
}

// Next returns the next feature in the reader's direction, or io.EOF
// when the traversal is exhausted.
func (r *Reader) Next() (*Feature, error) {
	if r.err != nil {
		return nil, r.err
	}
	payload, err := r.cursor.next()
	if err != nil {
		r.err = err
		return nil, err
	}
	f, err := decodeFrame(r.codec, payload)
	if err != nil {
		r.err = err
		return nil, err
	}
	f.srid = r.header.SRID
	return f, nil
}

// forwardCursor scans frames from the current stream position toward the
// end: leading length, payload, trailing length.
type forwardCursor struct {
	stream io.Reader
}

func (c *forwardCursor) next() ([]byte, error) {
	lenBuf := make([]byte, frameLengthSize)
	if _, err := io.ReadFull(c.stream, lenBuf); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated frame length", ErrStreamCorrupt)
	}
	n := binary.LittleEndian.Uint32(lenBuf)
	if n == 0 {
		return nil, fmt.Errorf("%w: zero-length frame payload", ErrStreamCorrupt)
	}

	buf := make([]byte, int(n)+frameLengthSize)
	if _, err := io.ReadFull(c.stream, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated frame, expected %d payload bytes", ErrStreamCorrupt, n)
	}
	trailing := binary.LittleEndian.Uint32(buf[n:])
	if trailing != n {
		return nil, fmt.Errorf("%w: frame length mismatch, leading %d trailing %d", ErrStreamCorrupt, n, trailing)
	}
	return buf[:n], nil
}

// reverseCursor scans frames from the end of the stream back toward the
// header. Each step reads the trailing length field ending at the current
// boundary, steps back over the whole frame and verifies the bracketing
// lengths agree, landing exactly on the previous frame's trailing field.
type reverseCursor struct {
	stream io.ReadSeeker
	start  int64 // first byte past the header
	pos    int64 // boundary: frames at [start, pos) are unread
}

func (c *reverseCursor) next() ([]byte, error) {
	remaining := c.pos - c.start
	if remaining == 0 {
		return nil, io.EOF
	}
	if remaining < 2*frameLengthSize {
		return nil, fmt.Errorf("%w: %d stray bytes before frame boundary", ErrStreamCorrupt, remaining)
	}

	lenBuf := make([]byte, frameLengthSize)
	if _, err := c.stream.Seek(c.pos-frameLengthSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamCorrupt, err)
	}
	if _, err := io.ReadFull(c.stream, lenBuf); err != nil {
		return nil, fmt.Errorf("%w: truncated frame length", ErrStreamCorrupt)
	}
	n := binary.LittleEndian.Uint32(lenBuf)
	if n == 0 {
		return nil, fmt.Errorf("%w: zero-length frame payload", ErrStreamCorrupt)
	}

	frameSize := int64(n) + 2*frameLengthSize
	if frameSize > remaining {
		return nil, fmt.Errorf("%w: frame length %d exceeds %d bytes before boundary", ErrStreamCorrupt, n, remaining)
	}

	buf := make([]byte, int(n)+frameLengthSize)
	if _, err := c.stream.Seek(c.pos-frameSize, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamCorrupt, err)
	}
	if _, err := io.ReadFull(c.stream, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated frame, expected %d payload bytes", ErrStreamCorrupt, n)
	}
	leading := binary.LittleEndian.Uint32(buf[:frameLengthSize])
	if leading != n {
		return nil, fmt.Errorf("%w: frame length mismatch, leading %d trailing %d", ErrStreamCorrupt, leading, n)
	}

	c.pos -= frameSize
	return buf[frameLengthSize:], nil
}
