package geostream

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
)

// Header is the stream-level metadata written once at position zero.
type Header struct {
	Version    int
	SRID       int
	Properties geojson.Properties
}

// headerLayout describes one schema version's fixed-width header fields.
// Layouts are frozen once introduced; new versions add new entries. The
// version tag is one byte wide in v3 and four bytes wide in v4.
type headerLayout struct {
	read  func(prefix []byte, r io.Reader) (srid int, propsLen int, err error)
	write func(w io.Writer, srid, propsLen int) error
}

var headerLayouts = map[int]headerLayout{
	SchemaVersion3: {read: readHeaderV3, write: writeHeaderV3},
	SchemaVersion4: {read: readHeaderV4, write: writeHeaderV4},
}

// sniffVersion determines the schema version from the first four bytes of
// a stream. Precedence: a four-byte little-endian tag matching a current
// version wins; otherwise a one-byte tag matching a legacy version. The
// two never collide because a v3 stream's bytes 1-3 hold the low bytes of
// its SRID, which is always positive.
func sniffVersion(prefix []byte) (int, error) {
	if wide := int(binary.LittleEndian.Uint32(prefix)); wide == SchemaVersion4 {
		return SchemaVersion4, nil
	}
	if narrow := int(prefix[0]); narrow == SchemaVersion3 {
		return SchemaVersion3, nil
	}
	declared := int(prefix[0])
	if prefix[1] == 0 && prefix[2] == 0 && prefix[3] == 0 {
		declared = int(binary.LittleEndian.Uint32(prefix))
	}
	return 0, fmt.Errorf("%w: %d, expected one of [3 4]", ErrUnsupportedSchema, declared)
}

// decodeHeader reads and decodes the stream header. The reader must be
// positioned at the start of the stream.
func decodeHeader(r io.Reader) (Header, error) {
	prefix := make([]byte, 4)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return Header{}, fmt.Errorf("%w: truncated header: %v", ErrStreamCorrupt, err)
	}
	version, err := sniffVersion(prefix)
	if err != nil {
		return Header{}, err
	}

	layout := headerLayouts[version]
	srid, propsLen, err := layout.read(prefix, r)
	if err != nil {
		return Header{}, err
	}

	var props geojson.Properties
	if propsLen > 0 {
		buf := make([]byte, propsLen)
		if _, err := io.ReadFull(r, buf); err != nil {
			return Header{}, fmt.Errorf("%w: truncated header properties: %v", ErrStreamCorrupt, err)
		}
		props, err = schemaCodecs[version].decodeProperties(buf)
		if err != nil {
			return Header{}, err
		}
	}

	return Header{Version: version, SRID: srid, Properties: props}, nil
}

// encodeHeader renders a header in the given version's layout.
func encodeHeader(version, srid int, props geojson.Properties) ([]byte, error) {
	layout, ok := headerLayouts[version]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, version)
	}
	propBytes, err := schemaCodecs[version].encodeProperties(props)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := layout.write(&buf, srid, len(propBytes)); err != nil {
		return nil, err
	}
	buf.Write(propBytes)
	return buf.Bytes(), nil
}

// v4 layout: u32 LE version | u32 LE srid | u32 LE properties length.
func readHeaderV4(_ []byte, r io.Reader) (int, int, error) {
	rest := make([]byte, 8)
	if _, err := io.ReadFull(r, rest); err != nil {
		return 0, 0, fmt.Errorf("%w: truncated header: %v", ErrStreamCorrupt, err)
	}
	srid := int(binary.LittleEndian.Uint32(rest[0:4]))
	propsLen := int(binary.LittleEndian.Uint32(rest[4:8]))
	return srid, propsLen, nil
}

func writeHeaderV4(w io.Writer, srid, propsLen int) error {
	fields := make([]byte, 12)
	binary.LittleEndian.PutUint32(fields[0:4], SchemaVersion4)
	binary.LittleEndian.PutUint32(fields[4:8], uint32(srid))
	binary.LittleEndian.PutUint32(fields[8:12], uint32(propsLen))
	_, err := w.Write(fields)
	return err
}

// v3 legacy layout: u8 version | u32 LE srid | u32 LE properties length.
// The sniffed prefix already consumed the tag byte plus the first three
// bytes of the SRID.
func readHeaderV3(prefix []byte, r io.Reader) (int, int, error) {
	rest := make([]byte, 5)
	if _, err := io.ReadFull(r, rest); err != nil {
		return 0, 0, fmt.Errorf("%w: truncated header: %v", ErrStreamCorrupt, err)
	}
	sridBytes := []byte{prefix[1], prefix[2], prefix[3], rest[0]}
	srid := int(binary.LittleEndian.Uint32(sridBytes))
	propsLen := int(binary.LittleEndian.Uint32(rest[1:5]))
	return srid, propsLen, nil
}

func writeHeaderV3(w io.Writer, srid, propsLen int) error {
	fields := make([]byte, 9)
	fields[0] = SchemaVersion3
	binary.LittleEndian.PutUint32(fields[1:5], uint32(srid))
	binary.LittleEndian.PutUint32(fields[5:9], uint32(propsLen))
	_, err := w.Write(fields)
	return err
}
