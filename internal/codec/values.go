package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// ValueCodec converts a custom value type to and from its external form.
type ValueCodec interface {
	Encode(v any) (json.RawMessage, error)
	Decode(raw json.RawMessage) (any, error)
}

// CodecFuncs adapts a pair of functions to ValueCodec.
type CodecFuncs struct {
	EncodeFunc func(v any) (json.RawMessage, error)
	DecodeFunc func(raw json.RawMessage) (any, error)
}

func (f CodecFuncs) Encode(v any) (json.RawMessage, error)   { return f.EncodeFunc(v) }
func (f CodecFuncs) Decode(raw json.RawMessage) (any, error) { return f.DecodeFunc(raw) }

// JSONCodec returns a codec for a Go type T round-tripped through
// encoding/json. Decoded values have type T.
func JSONCodec[T any]() ValueCodec {
	return CodecFuncs{
		EncodeFunc: func(v any) (json.RawMessage, error) {
			typed, ok := v.(T)
			if !ok {
				var zero T
				return nil, fmt.Errorf("expected %T, got %T", zero, v)
			}
			return json.Marshal(typed)
		},
		DecodeFunc: func(raw json.RawMessage) (any, error) {
			var out T
			if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
				return nil, fmt.Errorf("null is not a valid %T", out)
			}
			dec := json.NewDecoder(bytes.NewReader(raw))
			dec.DisallowUnknownFields()
			if err := dec.Decode(&out); err != nil {
				return nil, err
			}
			return out, nil
		},
	}
}

// ValueCodecs maps custom type tags to their codecs. It is populated by the
// host before the first decode and is safe for concurrent use.
type ValueCodecs struct {
	mu     sync.RWMutex
	codecs map[string]ValueCodec
}

// NewValueCodecs creates an empty registry.
func NewValueCodecs() *ValueCodecs {
	return &ValueCodecs{codecs: make(map[string]ValueCodec)}
}

// Register binds tag to c, replacing any previous binding.
func (r *ValueCodecs) Register(tag string, c ValueCodec) error {
	if tag == "" {
		return fmt.Errorf("codec tag cannot be empty")
	}
	if c == nil {
		return fmt.Errorf("codec for %q cannot be nil", tag)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[tag] = c
	return nil
}

// Lookup returns the codec registered for tag.
func (r *ValueCodecs) Lookup(tag string) (ValueCodec, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.codecs[tag]
	return c, ok
}

// decodeValue decodes raw according to t.
func (r *ValueCodecs) decodeValue(t domain.ValueType, raw json.RawMessage, path string) (any, error) {
	if len(raw) == 0 {
		return nil, newBoundaryError(InvalidValue, path, "value is missing", nil)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, newBoundaryError(InvalidValue, path, "value cannot be null", nil)
	}

	var (
		v   any
		err error
	)
	switch t.Kind() {
	case domain.KindBool:
		var b bool
		err = json.Unmarshal(raw, &b)
		v = b
	case domain.KindString, domain.KindEnum:
		var s string
		err = json.Unmarshal(raw, &s)
		v = s
	case domain.KindInt:
		var n json.Number
		if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '"' {
			err = fmt.Errorf("integer must not be quoted")
		} else if err = json.Unmarshal(raw, &n); err == nil {
			v, err = strconv.ParseInt(n.String(), 10, 64)
		}
	case domain.KindFloat:
		var f float64
		err = json.Unmarshal(raw, &f)
		v = f
	case domain.KindCustom:
		c, ok := r.Lookup(t.Tag())
		if !ok {
			return nil, newBoundaryError(UnregisteredCodec, path, fmt.Sprintf("no codec registered for %q", t.Tag()), nil)
		}
		v, err = c.Decode(raw)
	default:
		return nil, newBoundaryError(UnknownValueType, path, fmt.Sprintf("unsupported kind %s", t.Kind()), nil)
	}

	if err != nil {
		return nil, newBoundaryError(InvalidValue, path, fmt.Sprintf("cannot decode %s as %s", raw, t), err)
	}
	if err := t.Check(v); err != nil {
		return nil, newBoundaryError(InvalidValue, path, "decoded value does not match declared type", err)
	}
	return v, nil
}

// encodeValue is the inverse of decodeValue.
func (r *ValueCodecs) encodeValue(t domain.ValueType, v any, path string) (json.RawMessage, error) {
	if err := t.Check(v); err != nil {
		return nil, newBoundaryError(Unencodable, path, "value does not match declared type", err)
	}

	var (
		raw json.RawMessage
		err error
	)
	switch t.Kind() {
	case domain.KindBool, domain.KindString, domain.KindEnum, domain.KindFloat:
		raw, err = json.Marshal(v)
	case domain.KindInt:
		raw = json.RawMessage(strconv.FormatInt(v.(int64), 10))
	case domain.KindCustom:
		c, ok := r.Lookup(t.Tag())
		if !ok {
			return nil, newBoundaryError(UnregisteredCodec, path, fmt.Sprintf("no codec registered for %q", t.Tag()), nil)
		}
		raw, err = c.Encode(v)
		if err == nil && !json.Valid(raw) {
			err = fmt.Errorf("codec %q produced invalid JSON", t.Tag())
		}
	default:
		return nil, newBoundaryError(UnknownValueType, path, fmt.Sprintf("unsupported kind %s", t.Kind()), nil)
	}

	if err != nil {
		return nil, newBoundaryError(Unencodable, path, fmt.Sprintf("cannot encode %v as %s", v, t), err)
	}
	return raw, nil
}
