package nbt

import (
	"fmt"
)

// TagType is the one byte tag id that prefixes every named tag
type TagType byte

const (
	TagEnd TagType = iota
	TagByte
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagByteArray
	TagString
	TagList
	TagCompound
	TagIntArray
	TagLongArray
)

var tagNames = []string{
	"TagEnd",
	"TagByte",
	"TagShort",
	"TagInt",
	"TagLong",
	"TagFloat",
	"TagDouble",
	"TagByteArray",
	"TagString",
	"TagList",
	"TagCompound",
	"TagIntArray",
	"TagLongArray",
}

func (t TagType) String() string {
	if int(t) >= len(tagNames) {
		return fmt.Sprintf("unknown tag 0x%02x", byte(t))
	}
	return tagNames[t]
}

// Valid reports whether t is one of the 13 known tag ids
func (t TagType) Valid() bool {
	return t <= TagLongArray
}

// Tag is a decoded tag of any type. The payload is only reachable through
// the typed accessors, asking for the wrong type returns *WrongKindError.
type Tag struct {
	Type TagType
	// Name is empty for list elements
	Name    string
	payload any
}

func (t Tag) kind(want TagType) error {
	if t.Type != want {
		return &WrongKindError{Name: t.Name, Have: t.Type, Want: want}
	}
	return nil
}

func (t Tag) Byte() (int8, error) {
	if err := t.kind(TagByte); err != nil {
		return 0, err
	}
	return t.payload.(int8), nil
}

func (t Tag) Short() (int16, error) {
	if err := t.kind(TagShort); err != nil {
		return 0, err
	}
	return t.payload.(int16), nil
}

func (t Tag) Int() (int32, error) {
	if err := t.kind(TagInt); err != nil {
		return 0, err
	}
	return t.payload.(int32), nil
}

func (t Tag) Long() (int64, error) {
	if err := t.kind(TagLong); err != nil {
		return 0, err
	}
	return t.payload.(int64), nil
}

func (t Tag) Float() (float32, error) {
	if err := t.kind(TagFloat); err != nil {
		return 0, err
	}
	return t.payload.(float32), nil
}

func (t Tag) Double() (float64, error) {
	if err := t.kind(TagDouble); err != nil {
		return 0, err
	}
	return t.payload.(float64), nil
}

func (t Tag) ByteArray() ([]byte, error) {
	if err := t.kind(TagByteArray); err != nil {
		return nil, err
	}
	return t.payload.([]byte), nil
}

// StringValue returns the payload of a TagString
func (t Tag) StringValue() (string, error) {
	if err := t.kind(TagString); err != nil {
		return "", err
	}
	return t.payload.(string), nil
}

func (t Tag) List() (*List, error) {
	if err := t.kind(TagList); err != nil {
		return nil, err
	}
	return t.payload.(*List), nil
}

func (t Tag) Compound() (*Compound, error) {
	if err := t.kind(TagCompound); err != nil {
		return nil, err
	}
	return t.payload.(*Compound), nil
}

func (t Tag) IntArray() ([]int32, error) {
	if err := t.kind(TagIntArray); err != nil {
		return nil, err
	}
	return t.payload.([]int32), nil
}

func (t Tag) LongArray() ([]int64, error) {
	if err := t.kind(TagLongArray); err != nil {
		return nil, err
	}
	return t.payload.([]int64), nil
}

// AsInt widens any integer tag (Byte, Short, Int, Long) to int64.
// Chunk formats changed integer widths between versions, readers use
// this to stay agnostic.
func (t Tag) AsInt() (int64, error) {
	switch t.Type {
	case TagByte:
		return int64(t.payload.(int8)), nil
	case TagShort:
		return int64(t.payload.(int16)), nil
	case TagInt:
		return int64(t.payload.(int32)), nil
	case TagLong:
		return t.payload.(int64), nil
	default:
		return 0, &WrongKindError{Name: t.Name, Have: t.Type, Want: TagInt}
	}
}

// Describe returns a short human readable form like `TagInt "x" = 5`
func (t Tag) Describe() string {
	switch t.Type {
	case TagList:
		l := t.payload.(*List)
		return fmt.Sprintf("%s %q [%d x %s]", t.Type, t.Name, l.Len(), l.ElemType)
	case TagCompound:
		return fmt.Sprintf("%s %q {%d entries}", t.Type, t.Name, t.payload.(*Compound).Len())
	case TagByteArray:
		return fmt.Sprintf("%s %q [%d bytes]", t.Type, t.Name, len(t.payload.([]byte)))
	case TagIntArray:
		return fmt.Sprintf("%s %q [%d ints]", t.Type, t.Name, len(t.payload.([]int32)))
	case TagLongArray:
		return fmt.Sprintf("%s %q [%d longs]", t.Type, t.Name, len(t.payload.([]int64)))
	case TagString:
		return fmt.Sprintf("%s %q = %q", t.Type, t.Name, t.payload.(string))
	case TagEnd:
		return t.Type.String()
	default:
		return fmt.Sprintf("%s %q = %v", t.Type, t.Name, t.payload)
	}
}

func NewByte(name string, v int8) Tag { return Tag{Type: TagByte, Name: name, payload: v} }
func NewShort(name string, v int16) Tag { return Tag{Type: TagShort, Name: name, payload: v} }
func NewInt(name string, v int32) Tag { return Tag{Type: TagInt, Name: name, payload: v} }
func NewLong(name string, v int64) Tag { return Tag{Type: TagLong, Name: name, payload: v} }
func NewFloat(name string, v float32) Tag { return Tag{Type: TagFloat, Name: name, payload: v} }
func NewDouble(name string, v float64) Tag { return Tag{Type: TagDouble, Name: name, payload: v} }
func NewByteArray(name string, v []byte) Tag { return Tag{Type: TagByteArray, Name: name, payload: v} }
func NewString(name string, v string) Tag { return Tag{Type: TagString, Name: name, payload: v} }
func NewList(name string, v *List) Tag { return Tag{Type: TagList, Name: name, payload: v} }
func NewCompound(name string, v *Compound) Tag { return Tag{Type: TagCompound, Name: name, payload: v} }
func NewIntArray(name string, v []int32) Tag { return Tag{Type: TagIntArray, Name: name, payload: v} }
func NewLongArray(name string, v []int64) Tag { return Tag{Type: TagLongArray, Name: name, payload: v} }
