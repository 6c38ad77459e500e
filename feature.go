package geostream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Feature is one caller-facing record of a stream: a geometry plus an
// optional property mapping. Features read from a stream carry the
// stream's SRID, used by the SRID-qualified geometry accessors.
type Feature struct {
	Geometry   orb.Geometry
	Properties geojson.Properties

	// srid override; 0 means "use the GeoJSON default". Stamped by the
	// Reader from the stream header, or set with WithSRID.
	srid int
}

// NewFeature returns a feature wrapping geom with no properties.
func NewFeature(geom orb.Geometry) *Feature {
	return &Feature{Geometry: geom}
}

// WithSRID returns a copy of the feature carrying an explicit SRID
// override for the EWKB/EWKT accessors.
func (f *Feature) WithSRID(srid int) *Feature {
	clone := *f
	clone.srid = srid
	return &clone
}

// SRID returns the feature's effective spatial reference identifier.
func (f *Feature) SRID() int {
	if f.srid != 0 {
		return f.srid
	}
	return GeoJSONSRID
}

// WKB returns the geometry as well-known binary.
func (f *Feature) WKB() ([]byte, error) {
	return MarshalWKB(f.Geometry)
}

// WKT returns the geometry as well-known text.
func (f *Feature) WKT() (string, error) {
	return MarshalWKT(f.Geometry)
}

// EWKB returns the geometry as SRID-qualified well-known binary.
func (f *Feature) EWKB() ([]byte, error) {
	return MarshalEWKB(f.Geometry, f.SRID())
}

// EWKT returns the geometry as SRID-qualified well-known text.
func (f *Feature) EWKT() (string, error) {
	return MarshalEWKT(f.Geometry, f.SRID())
}

// MatchesProperties reports whether every key/value pair of filter is
// present in the feature's properties. Numeric values compare across
// integer and floating representations, so a JSON-sourced filter matches
// CBOR-decoded properties.
func (f *Feature) MatchesProperties(filter geojson.Properties) bool {
	for k, want := range filter {
		got, ok := f.Properties[k]
		if !ok || !valueEqual(got, want) {
			return false
		}
	}
	return true
}

type featureJSON struct {
	Type       string             `json:"type"`
	Geometry   *geojson.Geometry  `json:"geometry"`
	Properties geojson.Properties `json:"properties,omitempty"`
}

// MarshalJSON renders the feature as a GeoJSON Feature object. Extended
// property values render as text: RFC 3339 timestamps, YYYY-MM-DD dates,
// canonical UUID strings and base64 byte strings.
func (f *Feature) MarshalJSON() ([]byte, error) {
	if f.Geometry == nil {
		return nil, ErrNilGeometry
	}
	return json.Marshal(featureJSON{
		Type:       "Feature",
		Geometry:   geojson.NewGeometry(f.Geometry),
		Properties: f.Properties,
	})
}

// UnmarshalJSON parses a GeoJSON Feature object.
func (f *Feature) UnmarshalJSON(data []byte) error {
	var raw featureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrCodec, err)
	}
	if raw.Geometry == nil {
		return ErrNilGeometry
	}
	f.Geometry = raw.Geometry.Geometry()
	f.Properties = raw.Properties
	return nil
}

// FeatureCollection groups features with the stream-level properties and
// SRID, mirroring the GeoJSON FeatureCollection shape used by the
// unpacking CLI.
type FeatureCollection struct {
	Features   []*Feature
	Properties geojson.Properties
	SRID       int
}

type crsJSON struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

type featureCollectionJSON struct {
	Type       string             `json:"type"`
	CRS        crsJSON            `json:"crs"`
	Properties geojson.Properties `json:"properties,omitempty"`
	Features   []*Feature         `json:"features"`
}

// MarshalJSON renders the collection as a GeoJSON FeatureCollection with
// a named CRS member derived from the SRID.
func (fc *FeatureCollection) MarshalJSON() ([]byte, error) {
	srid := fc.SRID
	if srid == 0 {
		srid = GeoJSONSRID
	}
	features := fc.Features
	if features == nil {
		features = []*Feature{}
	}
	return json.Marshal(featureCollectionJSON{
		Type: "FeatureCollection",
		CRS: crsJSON{
			Type:       "name",
			Properties: map[string]string{"name": fmt.Sprintf("EPSG:%d", srid)},
		},
		Properties: fc.Properties,
		Features:   features,
	})
}

// valueEqual compares two property values, tolerating the numeric type
// differences between the JSON and CBOR decoders.
func valueEqual(a, b interface{}) bool {
	if af, aok := toFloat64(a); aok {
		bf, bok := toFloat64(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case Date:
		bv, ok := b.(Date)
		return ok && av == bv
	case uuid.UUID:
		switch bv := b.(type) {
		case uuid.UUID:
			return av == bv
		case string:
			parsed, err := uuid.Parse(bv)
			return err == nil && av == parsed
		}
		return false
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]interface{}:
		return mapEqual(av, asStringMap(b))
	case geojson.Properties:
		return mapEqual(av, asStringMap(b))
	default:
		return false
	}
}

func asStringMap(v interface{}) map[string]interface{} {
	switch m := v.(type) {
	case map[string]interface{}:
		return m
	case geojson.Properties:
		return m
	default:
		return nil
	}
}

func mapEqual(a, b map[string]interface{}) bool {
	if b == nil || len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valueEqual(av, bv) {
			return false
		}
	}
	return true
}

// toFloat64 widens any numeric property value to float64.
func toFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
