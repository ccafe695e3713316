package codec

import (
	"testing"
)

func sampleTree() Value {
	inner := NewOrderedMap()
	inner.Set("z_first", Int(1))
	inner.Set("a_second", String("hello"))

	m := NewOrderedMap()
	m.Set("name", String("Q1 Revenue"))
	m.Set("id", Int(42))
	m.Set("ratio", Float(0.5))
	m.Set("active", Bool(true))
	m.Set("deleted_at", Null())
	m.Set("tags", Array([]Value{String("a"), String("b"), Int(3)}))
	m.Set("nested", Map(inner))
	m.Set("blob", Bytes([]byte{0x00, 0x01, 0xff}))
	return Map(m)
}

func TestRoundTrip(t *testing.T) {
	original := sampleTree()

	blob, err := Encode(original)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !original.Equal(decoded) {
		t.Fatalf("round trip mismatch:\noriginal: %+v\ndecoded:  %+v", original, decoded)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	v := sampleTree()

	b1, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b2, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if string(b1) != string(b2) {
		t.Fatal("Encode produced different bytes for the same input")
	}
}

func TestKeyOrderPreserved(t *testing.T) {
	m := NewOrderedMap()
	m.Set("c", Int(1))
	m.Set("a", Int(2))
	m.Set("b", Int(3))

	blob, err := Encode(Map(m))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got := decoded.Map.Keys()
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("key count mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key order mismatch: got %v want %v", got, want)
		}
	}
}

func TestDecodeMalformedBlob(t *testing.T) {
	_, err := Decode([]byte{0xd9}) // str8 header with missing length/data
	if err == nil {
		t.Fatal("expected error decoding malformed blob")
	}
}

func TestValidate(t *testing.T) {
	blob, err := Encode(sampleTree())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !Validate(blob) {
		t.Fatal("Validate should report true for a well-formed blob")
	}
	if Validate([]byte{0xd9}) {
		t.Fatal("Validate should report false for a malformed blob")
	}
}

func TestIntVsFloatPreserved(t *testing.T) {
	m := NewOrderedMap()
	m.Set("i", Int(7))
	m.Set("f", Float(7.0))

	blob, err := Encode(Map(m))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	iv, _ := decoded.Map.Get("i")
	fv, _ := decoded.Map.Get("f")
	if iv.Kind != KindInt {
		t.Fatalf("expected int kind, got %v", iv.Kind)
	}
	if fv.Kind != KindFloat {
		t.Fatalf("expected float kind, got %v", fv.Kind)
	}
}
