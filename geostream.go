// Package geostream reads and writes GeoStream (.gjz) files: a binary
// container holding an ordered collection of GeoJSON-like features as
// compressed, length-bracketed frames behind a small versioned header.
// Each frame carries its compressed length both before and after the
// payload, so a stream can be traversed forward from the header or
// backward from the end without an index.
package geostream

import (
	"errors"
	"io"
)

// Common errors returned by this package.
var (
	ErrUnsupportedSchema = errors.New("geostream: unsupported schema version")
	ErrStreamCorrupt     = errors.New("geostream: corrupt stream")
	ErrCodec             = errors.New("geostream: value codec failure")
	ErrGeometry          = errors.New("geostream: invalid geometry")
	ErrNilGeometry       = errors.New("geostream: nil geometry")
)

const (
	// SchemaVersion3 is the legacy layout: one-byte version tag,
	// gzip-compressed JSON feature bodies. Read-only.
	SchemaVersion3 = 3

	// SchemaVersion4 is the current layout: four-byte version tag,
	// zlib-compressed CBOR feature bodies with WKB geometry.
	SchemaVersion4 = 4

	// SchemaVersion is the version every Writer emits.
	SchemaVersion = SchemaVersion4

	// GeoJSONSRID is the EPSG code of the GeoJSON reference system
	// (WGS 84), the default SRID for headers and features.
	GeoJSONSRID = 4326
)

// Direction selects the traversal order of a Reader.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

// NewReader positions stream at its start, decodes the header and returns
// a Reader that yields features in the given direction. The caller keeps
// ownership of the stream and is responsible for closing it.
func NewReader(stream io.ReadSeeker, dir Direction) (*Reader, error) {
	return newReader(stream, dir)
}

// NewWriter returns a Writer appending frames to stream. If the stream is
// positioned at its start a header is written immediately; otherwise the
// caller is appending to an existing stream and no header is emitted.
// A nil opts uses DefaultWriterOptions.
func NewWriter(stream io.WriteSeeker, opts *WriterOptions) (*Writer, error) {
	return newWriter(stream, opts)
}
