package geostream

import (
	"bytes"
	"errors"
	"testing"

	"github.com/paulmach/orb/geojson"
)

func TestHeaderRoundTripV4(t *testing.T) {
	props := geojson.Properties{"source": "test", "run": int64(12)}
	data, err := encodeHeader(SchemaVersion4, 4326, props)
	if err != nil {
		t.Fatalf("encodeHeader failed: %v", err)
	}

	header, err := decodeHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	if header.Version != SchemaVersion4 {
		t.Errorf("expected version 4, got %d", header.Version)
	}
	if header.SRID != 4326 {
		t.Errorf("expected SRID 4326, got %d", header.SRID)
	}
	if header.Properties["source"] != "test" || header.Properties["run"] != int64(12) {
		t.Errorf("unexpected properties: %#v", header.Properties)
	}
}

func TestHeaderRoundTripV4_NoProperties(t *testing.T) {
	data, err := encodeHeader(SchemaVersion4, 4326, nil)
	if err != nil {
		t.Fatalf("encodeHeader failed: %v", err)
	}
	if len(data) != 12 {
		t.Fatalf("expected 12 header bytes, got %d", len(data))
	}

	header, err := decodeHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	if header.Properties != nil {
		t.Errorf("expected nil properties, got %#v", header.Properties)
	}
}

func TestHeaderRoundTripV3(t *testing.T) {
	props := geojson.Properties{"legacy": true}
	data, err := encodeHeader(SchemaVersion3, 4326, props)
	if err != nil {
		t.Fatalf("encodeHeader failed: %v", err)
	}
	if data[0] != SchemaVersion3 {
		t.Fatalf("expected one-byte version tag, got % x", data[:4])
	}

	header, err := decodeHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	if header.Version != SchemaVersion3 {
		t.Errorf("expected version 3, got %d", header.Version)
	}
	if header.SRID != 4326 {
		t.Errorf("expected SRID 4326, got %d", header.SRID)
	}
	if header.Properties["legacy"] != true {
		t.Errorf("unexpected properties: %#v", header.Properties)
	}
}

func TestDecodeHeader_UnsupportedVersion(t *testing.T) {
	data := []byte{7, 0, 0, 0, 0xe6, 0x10, 0, 0, 0, 0, 0, 0}
	_, err := decodeHeader(bytes.NewReader(data))
	if !errors.Is(err, ErrUnsupportedSchema) {
		t.Errorf("expected ErrUnsupportedSchema, got %v", err)
	}
}

func TestDecodeHeader_Truncated(t *testing.T) {
	for _, data := range [][]byte{
		{},
		{4, 0},
		{4, 0, 0, 0, 0xe6, 0x10},
	} {
		if _, err := decodeHeader(bytes.NewReader(data)); !errors.Is(err, ErrStreamCorrupt) {
			t.Errorf("expected ErrStreamCorrupt for %d bytes, got %v", len(data), err)
		}
	}
}

func TestDecodeHeader_TruncatedProperties(t *testing.T) {
	data, err := encodeHeader(SchemaVersion4, 4326, geojson.Properties{"k": "v"})
	if err != nil {
		t.Fatalf("encodeHeader failed: %v", err)
	}
	if _, err := decodeHeader(bytes.NewReader(data[:len(data)-2])); !errors.Is(err, ErrStreamCorrupt) {
		t.Errorf("expected ErrStreamCorrupt, got %v", err)
	}
}
