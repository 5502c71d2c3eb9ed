package types

import (
	"encoding/json"
	"testing"
)

func TestOpcQualityDerivation(t *testing.T) {
	cases := []struct {
		name        string
		word        uint32
		good        bool
		uncertain   bool
		bad         bool
	}{
		{"good-zero", 0x00000000, true, false, false},
		{"good-low-bits-set", 0x3FFFFFFF, true, false, false},
		{"uncertain", 0x40000000, false, true, false},
		{"uncertain-low-bits", 0x7FFFFFFF, false, true, false},
		{"bad-10", 0x80000000, false, false, true},
		{"bad-11", 0xC0000000, false, false, true},
		{"bad-11-low-bits", 0xFFFFFFFF, false, false, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			q := NewOpcQuality(c.word)
			if q.IsGood() != c.good {
				t.Errorf("IsGood() = %v, want %v", q.IsGood(), c.good)
			}
			if q.IsUncertain() != c.uncertain {
				t.Errorf("IsUncertain() = %v, want %v", q.IsUncertain(), c.uncertain)
			}
			if q.IsBad() != c.bad {
				t.Errorf("IsBad() = %v, want %v", q.IsBad(), c.bad)
			}
		})
	}
}

func TestOpcQualityJSONRoundTrip(t *testing.T) {
	q := NewOpcQuality(0x80000001)
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got OpcQuality
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Word() != q.Word() {
		t.Errorf("round-tripped word = %d, want %d", got.Word(), q.Word())
	}
	if !got.IsBad() {
		t.Errorf("round-tripped quality lost Bad-ness")
	}
}

func TestValueMatchesDataType(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		dt   DataType
		want bool
	}{
		{"int-to-int32", NewIntValue(5), DataTypeInt32, true},
		{"int-to-string", NewIntValue(5), DataTypeString, false},
		{"float-to-double", NewFloatValue(1.5), DataTypeDouble, true},
		{"bool-to-boolean", NewBoolValue(true), DataTypeBoolean, true},
		{"text-to-uint", NewTextValue("x"), DataTypeUInt32, false},
		{"unknown-logical-type-accepts-anything", NewTextValue("x"), DataType("Exotic"), true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.v.MatchesDataType(c.dt); got != c.want {
				t.Errorf("MatchesDataType(%v) = %v, want %v", c.dt, got, c.want)
			}
		})
	}
}

func TestValueEqualFold(t *testing.T) {
	v := NewTextValue("Running")
	if !v.EqualFold("running") {
		t.Errorf("expected case-insensitive match")
	}
	if v.EqualFold("stopped") {
		t.Errorf("expected no match")
	}
}

func TestValueAsFloat64(t *testing.T) {
	if f, ok := NewIntValue(42).AsFloat64(); !ok || f != 42 {
		t.Errorf("int AsFloat64 = (%v, %v)", f, ok)
	}
	if _, ok := NewTextValue("x").AsFloat64(); ok {
		t.Errorf("text AsFloat64 should not be numeric")
	}
}
