package geostream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Geometry transcoding between the GeoJSON-style orb model and the
// well-known binary/text forms. WKB is the form stored inside frame
// bodies; WKT and the SRID-qualified EWKB/EWKT variants are derived
// accessors for callers. All failures wrap ErrGeometry.

// MarshalWKB encodes a geometry as well-known binary.
func MarshalWKB(geom orb.Geometry) ([]byte, error) {
	if geom == nil {
		return nil, ErrNilGeometry
	}
	data, err := wkb.Marshal(geom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	return data, nil
}

// UnmarshalWKB decodes well-known binary into a geometry.
func UnmarshalWKB(data []byte) (orb.Geometry, error) {
	geom, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	return geom, nil
}

// MarshalWKT encodes a geometry as well-known text.
func MarshalWKT(geom orb.Geometry) (string, error) {
	if geom == nil {
		return "", ErrNilGeometry
	}
	return wkt.MarshalString(geom), nil
}

// UnmarshalWKT decodes well-known text into a geometry.
func UnmarshalWKT(s string) (orb.Geometry, error) {
	geom, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	return geom, nil
}

// MarshalEWKB encodes a geometry as SRID-qualified well-known binary.
func MarshalEWKB(geom orb.Geometry, srid int) ([]byte, error) {
	if geom == nil {
		return nil, ErrNilGeometry
	}
	data, err := ewkb.Marshal(geom, srid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	return data, nil
}

// UnmarshalEWKB decodes SRID-qualified well-known binary, returning the
// geometry and its SRID.
func UnmarshalEWKB(data []byte) (orb.Geometry, int, error) {
	geom, srid, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	return geom, srid, nil
}

// MarshalEWKT encodes a geometry as well-known text with an SRID= prefix.
func MarshalEWKT(geom orb.Geometry, srid int) (string, error) {
	text, err := MarshalWKT(geom)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SRID=%d;%s", srid, text), nil
}

// UnmarshalEWKT decodes SRID-prefixed well-known text, returning the
// geometry and its SRID. Plain WKT without a prefix decodes with SRID 0.
func UnmarshalEWKT(s string) (orb.Geometry, int, error) {
	srid := 0
	if rest, ok := strings.CutPrefix(s, "SRID="); ok {
		tag, text, found := strings.Cut(rest, ";")
		if !found {
			return nil, 0, fmt.Errorf("%w: missing geometry after SRID tag", ErrGeometry)
		}
		n, err := strconv.Atoi(tag)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: bad SRID tag %q", ErrGeometry, tag)
		}
		srid = n
		s = text
	}
	geom, err := UnmarshalWKT(s)
	if err != nil {
		return nil, 0, err
	}
	return geom, srid, nil
}
