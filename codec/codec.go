// Package codec implements the deterministic, bit-exact binary encoding of
// Looker API response trees described in spec §4.1. It is built on
// msgpack (github.com/vmihailenco/msgpack/v5), using the library's
// low-level streaming Encoder/Decoder so that map key order — lost by
// Go's native map type and by msgpack's own struct-reflection codec — is
// preserved exactly as written. msgpack's wire format has no code
// execution step on decode, satisfying the "no pickle-style formats"
// requirement by construction.
package codec

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/lookervault/lookervault/lverrors"
)

// Encode serializes v deterministically: identical trees always produce
// identical bytes, because OrderedMap preserves insertion order and
// arrays are already ordered.
func Encode(v Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := encodeValue(enc, v); err != nil {
		return nil, &lverrors.SerializationError{Err: err}
	}
	return buf.Bytes(), nil
}

// Decode parses a blob produced by Encode back into a Value tree, bit-exact
// with the original (structural shape, key order, and numeric types all
// preserved).
func Decode(blob []byte) (Value, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(blob))
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, &lverrors.DeserializationError{Err: err}
	}
	return v, nil
}

// Validate reports whether Decode(blob) would succeed, without returning
// the decoded tree.
func Validate(blob []byte) bool {
	_, err := Decode(blob)
	return err == nil
}

func encodeValue(enc *msgpack.Encoder, v Value) error {
	switch v.Kind {
	case KindNull:
		return enc.EncodeNil()
	case KindBool:
		return enc.EncodeBool(v.Bool)
	case KindInt:
		return enc.EncodeInt(v.Int)
	case KindFloat:
		return enc.EncodeFloat64(v.Float)
	case KindString:
		return enc.EncodeString(v.Str)
	case KindBytes:
		return enc.EncodeBytes(v.Bytes)
	case KindArray:
		if err := enc.EncodeArrayLen(len(v.Array)); err != nil {
			return err
		}
		for _, elem := range v.Array {
			if err := encodeValue(enc, elem); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		m := v.Map
		if m == nil {
			m = NewOrderedMap()
		}
		if err := enc.EncodeMapLen(m.Len()); err != nil {
			return err
		}
		for _, key := range m.Keys() {
			if err := enc.EncodeString(key); err != nil {
				return err
			}
			val, _ := m.Get(key)
			if err := encodeValue(enc, val); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("codec: unencodable value kind %d", v.Kind)
	}
}

// wire format leader bytes, per the msgpack specification. Decoded
// manually (rather than via msgpack's reflection-based DecodeInterface,
// which would collapse maps into an unordered map[string]interface{}) so
// that key order survives the round trip.
const (
	codeNil         = 0xc0
	codeFalse       = 0xc2
	codeTrue        = 0xc3
	codeBin8        = 0xc4
	codeBin16       = 0xc5
	codeBin32       = 0xc6
	codeFloat32     = 0xca
	codeFloat64     = 0xcb
	codeUint8       = 0xcc
	codeUint64      = 0xcf
	codeInt8        = 0xd0
	codeInt64       = 0xd3
	codeStr8        = 0xd9
	codeStr32       = 0xdb
	codeFixArrayLow = 0x90
	codeFixArrayHi  = 0x9f
	codeArray16     = 0xdc
	codeArray32     = 0xdd
	codeFixMapLow   = 0x80
	codeFixMapHi    = 0x8f
	codeMap16       = 0xde
	codeMap32       = 0xdf
	codeFixStrLow   = 0xa0
	codeFixStrHi    = 0xbf
	codePosFixIntHi = 0x7f
	codeNegFixIntLo = 0xe0
)

func decodeValue(dec *msgpack.Decoder) (Value, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return Value{}, err
	}

	switch {
	case code == codeNil:
		if err := dec.DecodeNil(); err != nil {
			return Value{}, err
		}
		return Null(), nil

	case code == codeFalse || code == codeTrue:
		b, err := dec.DecodeBool()
		if err != nil {
			return Value{}, err
		}
		return Bool(b), nil

	case code == codeFloat32 || code == codeFloat64:
		f, err := dec.DecodeFloat64()
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil

	case code <= codePosFixIntHi, code >= codeNegFixIntLo, (code >= codeUint8 && code <= codeUint64), (code >= codeInt8 && code <= codeInt64):
		i, err := dec.DecodeInt64()
		if err != nil {
			return Value{}, err
		}
		return Int(i), nil

	case (code >= codeFixStrLow && code <= codeFixStrHi), (code >= codeStr8 && code <= codeStr32):
		s, err := dec.DecodeString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil

	case code >= codeBin8 && code <= codeBin32:
		b, err := dec.DecodeBytes()
		if err != nil {
			return Value{}, err
		}
		return Bytes(b), nil

	case (code >= codeFixArrayLow && code <= codeFixArrayHi), code == codeArray16, code == codeArray32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return Value{}, err
		}
		arr := make([]Value, n)
		for i := 0; i < n; i++ {
			elem, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			arr[i] = elem
		}
		return Array(arr), nil

	case (code >= codeFixMapLow && code <= codeFixMapHi), code == codeMap16, code == codeMap32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return Value{}, err
		}
		m := NewOrderedMap()
		for i := 0; i < n; i++ {
			key, err := dec.DecodeString()
			if err != nil {
				return Value{}, fmt.Errorf("codec: non-string map key: %w", err)
			}
			val, err := decodeValue(dec)
			if err != nil {
				return Value{}, err
			}
			m.Set(key, val)
		}
		return Map(m), nil

	default:
		return Value{}, fmt.Errorf("codec: unsupported wire code 0x%x", code)
	}
}
