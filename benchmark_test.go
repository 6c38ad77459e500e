package geostream

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func benchFeature() *Feature {
	f := NewFeature(orb.Polygon{
		{{10, 10}, {40, 10}, {40, 40}, {10, 40}, {10, 10}},
		{{20, 20}, {30, 20}, {30, 30}, {20, 30}, {20, 20}},
	})
	f.Properties = geojson.Properties{
		"id":    "bench",
		"index": int64(7),
		"score": 0.25,
	}
	return f
}

func BenchmarkEncodeFrame(b *testing.B) {
	codec := schemaCodecs[SchemaVersion4]
	f := benchFeature()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := encodeFrame(codec, f); err != nil {
			b.Fatalf("encodeFrame failed: %v", err)
		}
	}
}

func BenchmarkDecodeFrame(b *testing.B) {
	codec := schemaCodecs[SchemaVersion4]
	frame, err := encodeFrame(codec, benchFeature())
	if err != nil {
		b.Fatalf("encodeFrame failed: %v", err)
	}
	payload := frame[frameLengthSize : len(frame)-frameLengthSize]
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := decodeFrame(codec, payload); err != nil {
			b.Fatalf("decodeFrame failed: %v", err)
		}
	}
}

func benchmarkRead(b *testing.B, dir Direction) {
	tmpFile := filepath.Join(b.TempDir(), "bench.gjz")
	file, err := os.Create(tmpFile)
	if err != nil {
		b.Fatalf("failed to create: %v", err)
	}
	w, err := NewWriter(file, nil)
	if err != nil {
		b.Fatalf("NewWriter failed: %v", err)
	}
	for i := 0; i < 100; i++ {
		if err := w.WriteFeature(benchFeature()); err != nil {
			b.Fatalf("WriteFeature failed: %v", err)
		}
	}
	_ = file.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		in, err := os.Open(tmpFile)
		if err != nil {
			b.Fatalf("failed to open: %v", err)
		}
		r, err := NewReader(in, dir)
		if err != nil {
			b.Fatalf("NewReader failed: %v", err)
		}
		for {
			if _, err := r.Next(); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				b.Fatalf("Next failed: %v", err)
			}
		}
		_ = in.Close()
	}
}

func BenchmarkForwardRead(b *testing.B) {
	benchmarkRead(b, Forward)
}

func BenchmarkReverseRead(b *testing.B) {
	benchmarkRead(b, Reverse)
}
