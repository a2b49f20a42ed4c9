package lwm2m

import (
	"encoding/binary"
	"math"
	"strconv"
)

type DataType uint8

const (
	TypeUndefined DataType = iota
	TypeString
	TypeOpaque
	TypeInteger
	TypeUnsigned
	TypeFloat
	TypeBoolean
	TypeMultipleResource
)

func (t DataType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeOpaque:
		return "opaque"
	case TypeInteger:
		return "integer"
	case TypeUnsigned:
		return "unsigned"
	case TypeFloat:
		return "float"
	case TypeBoolean:
		return "boolean"
	case TypeMultipleResource:
		return "multiple"
	}
	return "undefined"
}

// Data is one entry of a request: the resource ID and, for writes and read
// results, its value. Buffer carries string and opaque payloads as received
// from the wire; numeric values are held already decoded.
type Data struct {
	ID       uint16
	Type     DataType
	Buffer   []byte
	Int      int64
	Uint     uint64
	Float    float64
	Bool     bool
	Children []Data
}

// NewData allocates n entries with their IDs unset.
func NewData(n int) []Data {
	return make([]Data, n)
}

// Len is the length of the encoded payload. Values that arrived already
// typed have no wire representation and report 0.
func (d *Data) Len() int {
	switch d.Type {
	case TypeString, TypeOpaque:
		return len(d.Buffer)
	}
	return 0
}

// Text renders the value the way a text/plain payload carries it.
func (d *Data) Text() string {
	switch d.Type {
	case TypeString, TypeOpaque:
		return string(d.Buffer)
	case TypeInteger:
		return strconv.FormatInt(d.Int, 10)
	case TypeUnsigned:
		return strconv.FormatUint(d.Uint, 10)
	case TypeFloat:
		return strconv.FormatFloat(d.Float, 'f', -1, 64)
	case TypeBoolean:
		if d.Bool {
			return "1"
		}
		return "0"
	}
	return ""
}

func EncodeFloat(v float64, d *Data) {
	d.Type = TypeFloat
	d.Float = v
	d.Buffer = nil
}

func EncodeInt(v int64, d *Data) {
	d.Type = TypeInteger
	d.Int = v
	d.Buffer = nil
}

func EncodeString(s string, d *Data) {
	d.Type = TypeString
	d.Buffer = []byte(s)
}

// DecodeFloat reads d as a floating-point value. It reports false when the
// entry holds no numeric value or its payload is not a valid number.
func DecodeFloat(d *Data) (float64, bool) {
	switch d.Type {
	case TypeFloat:
		return d.Float, true
	case TypeInteger:
		return float64(d.Int), true
	case TypeUnsigned:
		return float64(d.Uint), true
	case TypeString:
		return textToFloat(d.Buffer)
	case TypeOpaque:
		switch len(d.Buffer) {
		case 4:
			return float64(math.Float32frombits(binary.BigEndian.Uint32(d.Buffer))), true
		case 8:
			return math.Float64frombits(binary.BigEndian.Uint64(d.Buffer)), true
		}
	}
	return 0, false
}

// textToFloat accepts plain decimal notation only: an optional sign, digits
// and at most one decimal point. Exponents, inf and nan are rejected.
func textToFloat(b []byte) (float64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	i := 0
	if b[0] == '-' || b[0] == '+' {
		i++
	}
	digits, dot := 0, false
	for ; i < len(b); i++ {
		switch {
		case b[i] >= '0' && b[i] <= '9':
			digits++
		case b[i] == '.' && !dot:
			dot = true
		default:
			return 0, false
		}
	}
	if digits == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
