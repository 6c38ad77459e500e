package geostream

import (
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
)

// WriterOptions configures a new stream's header.
type WriterOptions struct {
	SRID       int                // spatial reference, default GeoJSONSRID
	Properties geojson.Properties // optional header properties
}

// DefaultWriterOptions returns options for a WGS 84 stream with no
// header properties.
func DefaultWriterOptions() *WriterOptions {
	return &WriterOptions{SRID: GeoJSONSRID}
}

// Writer appends compressed feature frames to a stream. The header is
// written once, by the Writer that starts the stream; appending writers
// skip it. Writers always emit the latest schema version.
type Writer struct {
	stream io.WriteSeeker
	codec  *schemaCodec
	srid   int
}

func newWriter(stream io.WriteSeeker, opts *WriterOptions) (*Writer, error) {
	if opts == nil {
		opts = DefaultWriterOptions()
	}
	srid := opts.SRID
	if srid == 0 {
		srid = GeoJSONSRID
	}

	w := &Writer{stream: stream, codec: schemaCodecs[SchemaVersion], srid: srid}

	pos, err := stream.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStreamCorrupt, err)
	}
	if pos == 0 {
		header, err := encodeHeader(SchemaVersion, srid, opts.Properties)
		if err != nil {
			return nil, err
		}
		if _, err := stream.Write(header); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// SRID returns the spatial reference identifier the writer was opened with.
func (w *Writer) SRID() int {
	return w.srid
}

// WriteFeature appends one feature as a frame, advancing the stream by
// 8 bytes of framing plus the compressed payload.
func (w *Writer) WriteFeature(f *Feature) error {
	frame, err := encodeFrame(w.codec, f)
	if err != nil {
		return err
	}
	_, err = w.stream.Write(frame)
	return err
}

// WriteFeatureCollection appends every feature of the collection in
// order. The first failure stops the call; frames already written stand,
// since the stream is append-only.
func (w *Writer) WriteFeatureCollection(fc *FeatureCollection) error {
	if fc == nil {
		return nil
	}
	for _, f := range fc.Features {
		if err := w.WriteFeature(f); err != nil {
			return err
		}
	}
	return nil
}
