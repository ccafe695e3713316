package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FromJSON parses a single JSON value into an order-preserving Value tree.
// Looker's REST API returns JSON; encoding/json's Unmarshal into
// map[string]interface{} would silently discard key order, so this walks
// the token stream directly (mirrors the approach LookerClient uses when
// building ContentItem payloads for the codec).
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeJSONValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("codec: parse json: %w", err)
	}
	return v, nil
}

func decodeJSONValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeJSONToken(dec, tok)
}

func decodeJSONToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := NewOrderedMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("codec: non-string json object key %v", keyTok)
				}
				val, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			return Map(m), nil
		case '[':
			var arr []Value
			for dec.More() {
				val, err := decodeJSONValue(dec)
				if err != nil {
					return Value{}, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Array(arr), nil
		default:
			return Value{}, fmt.Errorf("codec: unexpected json delimiter %v", t)
		}
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("codec: invalid json number %q: %w", t.String(), err)
		}
		return Float(f), nil
	case string:
		return String(t), nil
	default:
		return Value{}, fmt.Errorf("codec: unsupported json token type %T", tok)
	}
}

// ToJSON renders a Value tree back to JSON text, used by the restoration
// path to build Looker API request bodies after IDMapper translation.
func ToJSON(v Value) ([]byte, error) {
	var buf []byte
	buf, err := appendJSON(buf, v)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func appendJSON(buf []byte, v Value) ([]byte, error) {
	switch v.Kind {
	case KindNull:
		return append(buf, "null"...), nil
	case KindBool:
		if v.Bool {
			return append(buf, "true"...), nil
		}
		return append(buf, "false"...), nil
	case KindInt:
		b, _ := json.Marshal(v.Int)
		return append(buf, b...), nil
	case KindFloat:
		b, _ := json.Marshal(v.Float)
		return append(buf, b...), nil
	case KindString:
		b, err := json.Marshal(v.Str)
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	case KindBytes:
		b, err := json.Marshal(v.Bytes)
		if err != nil {
			return nil, err
		}
		return append(buf, b...), nil
	case KindArray:
		buf = append(buf, '[')
		for i, elem := range v.Array {
			if i > 0 {
				buf = append(buf, ',')
			}
			var err error
			buf, err = appendJSON(buf, elem)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, ']'), nil
	case KindMap:
		buf = append(buf, '{')
		m := v.Map
		if m == nil {
			m = NewOrderedMap()
		}
		for i, key := range m.Keys() {
			if i > 0 {
				buf = append(buf, ',')
			}
			kb, err := json.Marshal(key)
			if err != nil {
				return nil, err
			}
			buf = append(buf, kb...)
			buf = append(buf, ':')
			val, _ := m.Get(key)
			buf, err = appendJSON(buf, val)
			if err != nil {
				return nil, err
			}
		}
		return append(buf, '}'), nil
	default:
		return nil, fmt.Errorf("codec: unrenderable value kind %d", v.Kind)
	}
}
