package geostream

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

// Value codec: maps the property value domain (JSON subset plus dates,
// timestamps, UUIDs and byte strings) onto self-describing CBOR. The
// extended kinds ride on standard tag numbers so streams written here
// stay readable by any tag-aware CBOR decoder:
//
//	tag 0    timestamp, RFC 3339 text (offset preserved)
//	tag 37   UUID, 16-byte string
//	tag 100  calendar date, days since the Unix epoch (RFC 8943)

var (
	valueEncMode cbor.EncMode
	valueDecMode cbor.DecMode
)

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	valueEncMode = em

	dm, err := cbor.DecOptions{
		IntDec:         cbor.IntDecConvertSignedOrFail,
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic(err)
	}
	valueDecMode = dm
}

// Date is a calendar date with no time-of-day component, counted in days
// since the Unix epoch.
type Date int64

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format("2006-01-02")
}

// MarshalJSON renders the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// MarshalValue encodes a single property value to CBOR bytes.
func MarshalValue(v interface{}) ([]byte, error) {
	wire, err := toWireValue(v)
	if err != nil {
		return nil, err
	}
	data, err := valueEncMode.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return data, nil
}

// UnmarshalValue decodes CBOR bytes produced by MarshalValue.
func UnmarshalValue(data []byte) (interface{}, error) {
	var raw interface{}
	if err := valueDecMode.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodec, err)
	}
	return fromWireValue(raw)
}

// MarshalProperties encodes a property mapping. A nil mapping encodes to
// nil bytes, the "no properties" form.
func MarshalProperties(props geojson.Properties) ([]byte, error) {
	if props == nil {
		return nil, nil
	}
	return MarshalValue(map[string]interface{}(props))
}

// UnmarshalProperties decodes a property mapping. Empty input yields a nil
// mapping, distinct from an encoded empty mapping.
func UnmarshalProperties(data []byte) (geojson.Properties, error) {
	if len(data) == 0 {
		return nil, nil
	}
	v, err := UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: properties are not a mapping (%T)", ErrCodec, v)
	}
	return geojson.Properties(m), nil
}

// toWireValue rewrites a property value tree into CBOR-ready form,
// wrapping the extended kinds in their tags.
func toWireValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, bool, string, []byte, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%w: integer overflow: %d", ErrCodec, val)
		}
		return int64(val), nil
	case float32:
		return float64(val), nil
	case time.Time:
		return cbor.Tag{Number: 0, Content: val.Format(time.RFC3339Nano)}, nil
	case Date:
		return cbor.Tag{Number: 100, Content: int64(val)}, nil
	case uuid.UUID:
		return cbor.Tag{Number: 37, Content: val[:]}, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			wire, err := toWireValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = wire
		}
		return out, nil
	case geojson.Properties:
		return toWireValue(map[string]interface{}(val))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			wire, err := toWireValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = wire
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", ErrCodec, v)
	}
}

// fromWireValue rewrites a decoded CBOR tree back into the property value
// domain, unwrapping tagged extended kinds.
func fromWireValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, bool, string, []byte, int64, float64, time.Time:
		return val, nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("%w: integer overflow: %d", ErrCodec, val)
		}
		return int64(val), nil
	case big.Int:
		if !val.IsInt64() {
			return nil, fmt.Errorf("%w: integer out of range: %s", ErrCodec, val.String())
		}
		return val.Int64(), nil
	case *big.Int:
		if !val.IsInt64() {
			return nil, fmt.Errorf("%w: integer out of range: %s", ErrCodec, val.String())
		}
		return val.Int64(), nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			plain, err := fromWireValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = plain
		}
		return out, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			plain, err := fromWireValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = plain
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			ks, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("%w: non-text mapping key %T", ErrCodec, k)
			}
			plain, err := fromWireValue(item)
			if err != nil {
				return nil, err
			}
			out[ks] = plain
		}
		return out, nil
	case cbor.Tag:
		return fromTaggedValue(val)
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", ErrCodec, v)
	}
}

func fromTaggedValue(tag cbor.Tag) (interface{}, error) {
	switch tag.Number {
	case 0:
		s, ok := tag.Content.(string)
		if !ok {
			return nil, fmt.Errorf("%w: timestamp tag without text content", ErrCodec)
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		return t, nil
	case 1:
		switch epoch := tag.Content.(type) {
		case int64:
			return time.Unix(epoch, 0).UTC(), nil
		case uint64:
			return time.Unix(int64(epoch), 0).UTC(), nil
		case float64:
			sec, frac := math.Modf(epoch)
			return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
		}
		return nil, fmt.Errorf("%w: epoch tag without numeric content", ErrCodec)
	case 37:
		b, ok := tag.Content.([]byte)
		if !ok {
			return nil, fmt.Errorf("%w: UUID tag without byte content", ErrCodec)
		}
		id, err := uuid.FromBytes(b)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCodec, err)
		}
		return id, nil
	case 100:
		switch days := tag.Content.(type) {
		case int64:
			return Date(days), nil
		case uint64:
			return Date(days), nil
		}
		return nil, fmt.Errorf("%w: date tag without integer content", ErrCodec)
	default:
		return nil, fmt.Errorf("%w: unsupported tag %d", ErrCodec, tag.Number)
	}
}
