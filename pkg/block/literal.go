package block

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

type LiteralKind int

const (
	LitString LiteralKind = iota
	LitNumber
	LitBool
)

// Literal is a field value set directly on a block.
type Literal struct {
	Kind LiteralKind
	Str  string
	Num  float64
	Bool bool
}

func StringValue(s string) Literal  { return Literal{Kind: LitString, Str: s} }
func NumberValue(f float64) Literal { return Literal{Kind: LitNumber, Num: f} }
func BoolValue(b bool) Literal      { return Literal{Kind: LitBool, Bool: b} }

// Text renders the literal the way the editor shows it in a field.
func (l Literal) Text() string {
	switch l.Kind {
	case LitNumber:
		return strconv.FormatFloat(l.Num, 'f', -1, 64)
	case LitBool:
		if l.Bool {
			return "TRUE"
		}
		return "FALSE"
	}
	return l.Str
}

// Float interprets the literal as a number. Strings are parsed leniently.
func (l Literal) Float() (float64, bool) {
	switch l.Kind {
	case LitNumber:
		return l.Num, true
	case LitBool:
		if l.Bool {
			return 1, true
		}
		return 0, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(l.Str), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Truth interprets the literal as a boolean; "TRUE"/"true" and non-zero numbers are true.
func (l Literal) Truth() bool {
	switch l.Kind {
	case LitBool:
		return l.Bool
	case LitNumber:
		return l.Num != 0
	}
	b, err := strconv.ParseBool(strings.TrimSpace(l.Str))
	return err == nil && b
}

func (l Literal) native() any {
	switch l.Kind {
	case LitNumber:
		return l.Num
	case LitBool:
		return l.Bool
	}
	return l.Str
}

func (l *Literal) fromNative(v any) error {
	switch v := v.(type) {
	case nil:
		*l = StringValue("")
	case string:
		*l = StringValue(v)
	case bool:
		*l = BoolValue(v)
	case float64:
		*l = NumberValue(v)
	case float32:
		*l = NumberValue(float64(v))
	case uint64:
		*l = NumberValue(float64(v))
	case int64:
		*l = NumberValue(float64(v))
	default:
		return fmt.Errorf("unsupported literal of type %T", v)
	}
	return nil
}

func (l Literal) MarshalJSON() ([]byte, error) { return json.Marshal(l.native()) }

func (l *Literal) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		if err != nil {
			return err
		}
		*l = NumberValue(f)
		return nil
	}
	return l.fromNative(v)
}

func (l Literal) MarshalCBOR() ([]byte, error) { return cbor.Marshal(l.native()) }

func (l *Literal) UnmarshalCBOR(data []byte) error {
	var v any
	if err := cbor.Unmarshal(data, &v); err != nil {
		return err
	}
	return l.fromNative(v)
}
