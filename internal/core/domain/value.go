// internal/core/domain/value.go
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Kind tags the dynamic type held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindMap
)

// Value is one field of an artifact record: a string, number, bool, list of
// values or nested record.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	list []Value
	rec  *Record
}

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }
func Int(i int64) Value      { return Value{kind: KindNumber, num: float64(i)} }
func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }
func Nested(r *Record) Value { return Value{kind: KindMap, rec: r} }

// Strings builds a list value out of plain strings.
func Strings(ss []string) Value {
	vs := make([]Value, len(ss))
	for i, s := range ss {
		vs[i] = String(s)
	}
	return List(vs...)
}

func (v Value) Kind() Kind { return v.kind }

// Text returns the string form of scalar values. Lists and maps render as JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNull:
		return ""
	default:
		data, _ := json.Marshal(v)
		return string(data)
	}
}

func (v Value) String() string { return v.Text() }

func (v Value) Float() float64 { return v.num }

func (v Value) Bool() bool { return v.b }

// Items returns the elements of a list value, nil otherwise.
func (v Value) Items() []Value { return v.list }

// Record returns the nested record of a map value, nil otherwise.
func (v Value) Record() *Record { return v.rec }

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	case KindMap:
		if v.rec == nil {
			return []byte("{}"), nil
		}
		return v.rec.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

// Field is one key/value pair of a Record.
type Field struct {
	Key   string
	Value Value
}

// Record is an ordered set of fields produced by an artifact parser. Keys keep
// their insertion order; setting an existing key replaces it in place.
type Record struct {
	fields []Field
}

func NewRecord() *Record { return &Record{} }

// Set adds or replaces key and returns the record for chaining.
func (r *Record) Set(key string, v Value) *Record {
	for i := range r.fields {
		if r.fields[i].Key == key {
			r.fields[i].Value = v
			return r
		}
	}
	r.fields = append(r.fields, Field{Key: key, Value: v})
	return r
}

// SetString is shorthand for Set(key, String(s)).
func (r *Record) SetString(key, s string) *Record { return r.Set(key, String(s)) }

func (r *Record) Get(key string) (Value, bool) {
	if r == nil {
		return Value{}, false
	}
	for _, f := range r.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Str returns the text of key, or "" when absent.
func (r *Record) Str(key string) string {
	v, _ := r.Get(key)
	return v.Text()
}

func (r *Record) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.fields)
}

func (r *Record) Fields() []Field {
	if r == nil {
		return nil
	}
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r != nil {
		for i, f := range r.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			val, err := f.Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(val)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
