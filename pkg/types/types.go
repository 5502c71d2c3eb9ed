package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// jsonUnmarshal is a thin indirection so OpcQuality's UnmarshalJSON can be
// unit tested without importing encoding/json twice in this file's reader's
// head; it is just json.Unmarshal.
func jsonUnmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// Machine represents a programmable controller reachable over OPC UA.
type Machine struct {
	ID           int32
	Name         string
	Description  string
	AutomateType string
	OpcEndpoint  string // opc.tcp:// URI
	IsActive     bool
	Tags         []*Tag
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DataType is the closed set of logical tag types recognized by validation.
type DataType string

const (
	DataTypeInt16   DataType = "Int16"
	DataTypeInt32   DataType = "Int32"
	DataTypeInt64   DataType = "Int64"
	DataTypeUInt16  DataType = "UInt16"
	DataTypeUInt32  DataType = "UInt32"
	DataTypeUInt64  DataType = "UInt64"
	DataTypeFloat   DataType = "Float"
	DataTypeDouble  DataType = "Double"
	DataTypeBoolean DataType = "Boolean"
	DataTypeString  DataType = "String"
)

// known reports whether d is one of the logical types this package
// recognizes. An unknown logical type is accepted by validation rather
// than rejected, per the type-check rule.
func (d DataType) known() bool {
	switch d {
	case DataTypeInt16, DataTypeInt32, DataTypeInt64,
		DataTypeUInt16, DataTypeUInt32, DataTypeUInt64,
		DataTypeFloat, DataTypeDouble, DataTypeBoolean, DataTypeString:
		return true
	}
	return false
}

// Tag represents a single addressable OPC UA variable owned by a Machine.
type Tag struct {
	ID            int32
	MachineID     int32
	Name          string
	NodeID        string // namespace-qualified, e.g. "ns=2;s=Press01.Temperature"
	DataType      DataType
	Unit          string
	MinValue      *float64
	MaxValue      *float64
	AllowedValues []string // nil/empty unless this tag is enumerated
	IsActive      bool
}

// OpcQuality is the three-valued quality tag carried by every sample,
// derived from the top two bits (31..30) of the transport status word.
type OpcQuality struct {
	word uint32
}

// NewOpcQuality derives an OpcQuality from a raw 32-bit OPC UA status word.
func NewOpcQuality(word uint32) OpcQuality {
	return OpcQuality{word: word}
}

func (q OpcQuality) topBits() uint32 {
	return q.word >> 30
}

// IsGood reports whether the top two bits of the status word are 00.
func (q OpcQuality) IsGood() bool { return q.topBits() == 0 }

// IsUncertain reports whether the top two bits of the status word are 01.
func (q OpcQuality) IsUncertain() bool { return q.topBits() == 1 }

// IsBad reports whether the top two bits of the status word are 10 or 11.
func (q OpcQuality) IsBad() bool { return q.topBits() >= 2 }

// Word returns the raw status word backing this quality value.
func (q OpcQuality) Word() uint32 { return q.word }

// String renders a human-readable quality label.
func (q OpcQuality) String() string {
	switch {
	case q.IsGood():
		return "Good"
	case q.IsUncertain():
		return "Uncertain"
	default:
		return "Bad"
	}
}

// MarshalJSON renders OpcQuality as its string label plus the raw word,
// keeping the spool encoding self-describing.
func (q OpcQuality) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"label":%q,"word":%d}`, q.String(), q.word)), nil
}

// UnmarshalJSON restores an OpcQuality from the encoding produced by
// MarshalJSON. Only the raw word is authoritative; the label is informational.
func (q *OpcQuality) UnmarshalJSON(data []byte) error {
	var wire struct {
		Word uint32 `json:"word"`
	}
	if err := jsonUnmarshal(data, &wire); err != nil {
		return err
	}
	q.word = wire.Word
	return nil
}

// ValueKind discriminates the populated field of a Value.
type ValueKind string

const (
	KindInt64   ValueKind = "int64"
	KindUint64  ValueKind = "uint64"
	KindFloat64 ValueKind = "float64"
	KindBool    ValueKind = "bool"
	KindText    ValueKind = "text"
)

// Value is a tagged variant carrying exactly one OPC UA scalar value, used
// in place of interface{} so marshaling and type checks are total over a
// closed set of runtime shapes.
type Value struct {
	Kind    ValueKind
	Int64   int64
	Uint64  uint64
	Float64 float64
	Bool    bool
	Text    string
}

// NewIntValue wraps a signed integer observation.
func NewIntValue(v int64) Value { return Value{Kind: KindInt64, Int64: v} }

// NewUintValue wraps an unsigned integer observation.
func NewUintValue(v uint64) Value { return Value{Kind: KindUint64, Uint64: v} }

// NewFloatValue wraps a floating-point observation.
func NewFloatValue(v float64) Value { return Value{Kind: KindFloat64, Float64: v} }

// NewBoolValue wraps a boolean observation.
func NewBoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

// NewTextValue wraps a textual observation.
func NewTextValue(v string) Value { return Value{Kind: KindText, Text: v} }

// AsFloat64 renders the value as a float64 when it is numeric, used by the
// range check which requires a comparable numeric form.
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt64:
		return float64(v.Int64), true
	case KindUint64:
		return float64(v.Uint64), true
	case KindFloat64:
		return v.Float64, true
	default:
		return 0, false
	}
}

// String renders the value in the canonical textual form used by the
// enumerated-values comparison (case-insensitive match against
// AllowedValues).
func (v Value) String() string {
	switch v.Kind {
	case KindInt64:
		return strconv.FormatInt(v.Int64, 10)
	case KindUint64:
		return strconv.FormatUint(v.Uint64, 10)
	case KindFloat64:
		return strconv.FormatFloat(v.Float64, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindText:
		return v.Text
	default:
		return ""
	}
}

// MatchesDataType reports whether v's runtime kind is an accepted runtime
// representation of the tag's logical DataType. Unknown logical types are
// accepted unconditionally.
func (v Value) MatchesDataType(dt DataType) bool {
	if !dt.known() {
		return true
	}
	switch dt {
	case DataTypeInt16, DataTypeInt32, DataTypeInt64:
		return v.Kind == KindInt64
	case DataTypeUInt16, DataTypeUInt32, DataTypeUInt64:
		return v.Kind == KindUint64 || v.Kind == KindInt64
	case DataTypeFloat, DataTypeDouble:
		return v.Kind == KindFloat64 || v.Kind == KindInt64 || v.Kind == KindUint64
	case DataTypeBoolean:
		return v.Kind == KindBool
	case DataTypeString:
		return v.Kind == KindText
	default:
		return true
	}
}

// EqualFold reports whether v's rendered text form equals s, ignoring case,
// for the enumerated-values check.
func (v Value) EqualFold(s string) bool {
	return strings.EqualFold(v.String(), s)
}

// Sample is the wire DTO produced by a subscription callback, enriched by
// the Ingestion Pipeline, and consumed by the Batch Sink.
type Sample struct {
	MachineID         int32      `json:"machineId"`
	TagID             int32      `json:"tagId"`
	TagName           string     `json:"tagName"`
	NodeID            string     `json:"nodeId"`
	Value             Value      `json:"value"`
	Quality           OpcQuality `json:"quality"`
	SourceTimestamp   time.Time  `json:"sourceTimestamp"`
	ServerTimestamp   time.Time  `json:"serverTimestamp"`
	ReceivedTimestamp time.Time  `json:"receivedTimestamp"`
}

// StoredBatch is the unit of persistence and of spool durability: an
// ordered list of samples captured under one batch identifier.
type StoredBatch struct {
	BatchID   string    `json:"batchId"`
	CreatedAt time.Time `json:"timestamp"`
	Samples   []Sample  `json:"tagValues"`
}
