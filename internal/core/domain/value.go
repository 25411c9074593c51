package domain

import (
	"encoding/json"
	"math"
	"time"
)

// ValueKind enumerates the closed set of argument shapes the gateway accepts.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueBool
	ValueInt
	ValueFloat
	ValueText
	ValueJSON
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueBool:
		return "bool"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueText:
		return "text"
	case ValueJSON:
		return "json"
	}
	return "unknown"
}

// Value is a coerced query argument. The zero value is Null.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string // Text and JSON payloads
}

func (v Value) Kind() ValueKind { return v.kind }

// Native converts the value into the form the target engine's driver expects.
func (v Value) Native(d Dialect) any {
	switch v.kind {
	case ValueNull:
		return nil
	case ValueBool:
		if d.NativeBool() {
			return v.b
		}
		if v.b {
			return int64(1)
		}
		return int64(0)
	case ValueInt:
		return v.i
	case ValueFloat:
		return v.f
	case ValueText, ValueJSON:
		return v.s
	}
	return nil
}

// Coerce maps a caller-supplied scalar onto the closed Value variant.
// Timestamps become canonical RFC 3339 text, lists and maps become canonical
// JSON text, and anything of unrecognized shape is rejected outright.
func Coerce(raw any) (Value, error) {
	switch x := raw.(type) {
	case nil:
		return Value{kind: ValueNull}, nil
	case bool:
		return Value{kind: ValueBool, b: x}, nil
	case int:
		return Value{kind: ValueInt, i: int64(x)}, nil
	case int8:
		return Value{kind: ValueInt, i: int64(x)}, nil
	case int16:
		return Value{kind: ValueInt, i: int64(x)}, nil
	case int32:
		return Value{kind: ValueInt, i: int64(x)}, nil
	case int64:
		return Value{kind: ValueInt, i: x}, nil
	case uint:
		return Value{kind: ValueInt, i: int64(x)}, nil
	case uint8:
		return Value{kind: ValueInt, i: int64(x)}, nil
	case uint16:
		return Value{kind: ValueInt, i: int64(x)}, nil
	case uint32:
		return Value{kind: ValueInt, i: int64(x)}, nil
	case uint64:
		if x > math.MaxInt64 {
			return Value{}, Errorf(KindParameter, "integer argument %d overflows int64", x)
		}
		return Value{kind: ValueInt, i: int64(x)}, nil
	case float32:
		return Value{kind: ValueFloat, f: float64(x)}, nil
	case float64:
		// JSON numbers arrive as float64; keep integral ones as integers so
		// strict integer columns accept them.
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return Value{kind: ValueInt, i: int64(x)}, nil
		}
		return Value{kind: ValueFloat, f: x}, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Value{kind: ValueInt, i: i}, nil
		}
		f, err := x.Float64()
		if err != nil {
			return Value{}, Errorf(KindParameter, "unparsable numeric argument %q", string(x))
		}
		return Value{kind: ValueFloat, f: f}, nil
	case string:
		return Value{kind: ValueText, s: x}, nil
	case []byte:
		return Value{kind: ValueText, s: string(x)}, nil
	case time.Time:
		return Value{kind: ValueText, s: x.UTC().Format(time.RFC3339Nano)}, nil
	case json.RawMessage:
		if !json.Valid(x) {
			return Value{}, Errorf(KindParameter, "argument is not valid JSON")
		}
		return Value{kind: ValueJSON, s: string(x)}, nil
	}

	// Lists and maps are flattened to canonical JSON text. Anything the JSON
	// encoder cannot represent is rejected rather than stringified.
	switch raw.(type) {
	case []any, []string, []int, []int64, []float64, []bool,
		map[string]any, map[string]string:
		data, err := json.Marshal(raw)
		if err != nil {
			return Value{}, Errorf(KindParameter, "argument is not JSON-encodable: %v", err)
		}
		return Value{kind: ValueJSON, s: string(data)}, nil
	}

	return Value{}, Errorf(KindParameter, "unsupported argument type %T", raw)
}
