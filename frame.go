package geostream

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/paulmach/orb/geojson"
)

// frameLengthSize is the width of each of the two length fields
// bracketing a frame. A frame occupies 8+n bytes for an n-byte payload.
const frameLengthSize = 4

// schemaCodec bundles one schema version's body and property encodings.
// The set is closed: decoding dispatches over this table by the version
// tag sniffed from the header.
type schemaCodec struct {
	version          int
	encodeProperties func(geojson.Properties) ([]byte, error)
	decodeProperties func([]byte) (geojson.Properties, error)
	encodeBody       func(*Feature) ([]byte, error)
	decodeBody       func([]byte) (*Feature, error)
	compress         func([]byte) ([]byte, error)
	decompress       func([]byte) ([]byte, error)
}

var schemaCodecs = map[int]*schemaCodec{
	SchemaVersion3: {
		version:          SchemaVersion3,
		encodeProperties: encodePropertiesV3,
		decodeProperties: decodePropertiesV3,
		encodeBody:       encodeBodyV3,
		decodeBody:       decodeBodyV3,
		compress:         gzipCompress,
		decompress:       gzipDecompress,
	},
	SchemaVersion4: {
		version:          SchemaVersion4,
		encodeProperties: MarshalProperties,
		decodeProperties: UnmarshalProperties,
		encodeBody:       encodeBodyV4,
		decodeBody:       decodeBodyV4,
		compress:         zlibCompress,
		decompress:       zlibDecompress,
	},
}

// encodeFrame renders one feature as a complete frame: leading length,
// compressed body, trailing length.
func encodeFrame(codec *schemaCodec, f *Feature) ([]byte, error) {
	body, err := codec.encodeBody(f)
	if err != nil {
		return nil, err
	}
	payload, err := codec.compress(body)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 2*frameLengthSize+len(payload))
	binary.LittleEndian.PutUint32(frame[:frameLengthSize], uint32(len(payload)))
	copy(frame[frameLengthSize:], payload)
	binary.LittleEndian.PutUint32(frame[frameLengthSize+len(payload):], uint32(len(payload)))
	return frame, nil
}

// decodeFrame turns one compressed frame payload back into a feature.
func decodeFrame(codec *schemaCodec, payload []byte) (*Feature, error) {
	body, err := codec.decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %v", ErrStreamCorrupt, err)
	}
	return codec.decodeBody(body)
}

// v4 bodies: CBOR map with the geometry as a WKB byte string.

func encodeBodyV4(f *Feature) ([]byte, error) {
	if f == nil {
		return nil, ErrNilGeometry
	}
	wkbData, err := MarshalWKB(f.Geometry)
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"type":     "Feature",
		"geometry": wkbData,
	}
	if f.Properties != nil {
		body["properties"] = map[string]interface{}(f.Properties)
	}
	return MarshalValue(body)
}

func decodeBodyV4(data []byte) (*Feature, error) {
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	body, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: feature body is not a mapping (%T)", ErrCodec, v)
	}
	wkbData, ok := body["geometry"].([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: feature body has no geometry byte string", ErrCodec)
	}
	geom, err := UnmarshalWKB(wkbData)
	if err != nil {
		return nil, err
	}

	f := NewFeature(geom)
	if props, ok := body["properties"].(map[string]interface{}); ok {
		f.Properties = geojson.Properties(props)
	}
	return f, nil
}

// v3 bodies: the plain GeoJSON feature object, gzip-compressed, with the
// geometry left in its JSON structure.

func encodeBodyV3(f *Feature) ([]byte, error) {
	if f == nil || f.Geometry == nil {
		return nil, ErrNilGeometry
	}
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return data, nil
}

func decodeBodyV3(data []byte) (*Feature, error) {
	var f Feature
	if err := f.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return &f, nil
}

func encodePropertiesV3(props geojson.Properties) ([]byte, error) {
	if props == nil {
		return nil, nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return data, nil
}

func decodePropertiesV3(data []byte) (geojson.Properties, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var props geojson.Properties
	if err := json.Unmarshal(data, &props); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return props, nil
}

func zlibCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return buf.Bytes(), nil
}

func zlibDecompress(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
