package nbt

import "fmt"

// Compound is a set of uniquely named tags. Lookup is by name, Names
// returns the order tags were read in.
type Compound struct {
	tags  map[string]Tag
	order []string
}

func NewCompoundValue(tags ...Tag) *Compound {
	c := &Compound{tags: make(map[string]Tag, len(tags))}
	for _, t := range tags {
		c.Put(t)
	}
	return c
}

// Put adds or replaces the tag named t.Name
func (c *Compound) Put(t Tag) {
	if c.tags == nil {
		c.tags = map[string]Tag{}
	}
	if _, ok := c.tags[t.Name]; !ok {
		c.order = append(c.order, t.Name)
	}
	c.tags[t.Name] = t
}

func (c *Compound) Get(name string) (Tag, bool) {
	t, ok := c.tags[name]
	return t, ok
}

func (c *Compound) Len() int {
	return len(c.order)
}

func (c *Compound) Names() []string {
	ret := make([]string, len(c.order))
	copy(ret, c.order)
	return ret
}

func (c *Compound) get(name string) (Tag, error) {
	t, ok := c.tags[name]
	if !ok {
		return Tag{}, fmt.Errorf("%w: %q", ErrTagNotFound, name)
	}
	return t, nil
}

func (c *Compound) GetCompound(name string) (*Compound, error) {
	t, err := c.get(name)
	if err != nil {
		return nil, err
	}
	return t.Compound()
}

func (c *Compound) GetList(name string) (*List, error) {
	t, err := c.get(name)
	if err != nil {
		return nil, err
	}
	return t.List()
}

func (c *Compound) GetByte(name string) (int8, error) {
	t, err := c.get(name)
	if err != nil {
		return 0, err
	}
	return t.Byte()
}

func (c *Compound) GetInt(name string) (int32, error) {
	t, err := c.get(name)
	if err != nil {
		return 0, err
	}
	return t.Int()
}

func (c *Compound) GetLong(name string) (int64, error) {
	t, err := c.get(name)
	if err != nil {
		return 0, err
	}
	return t.Long()
}

func (c *Compound) GetString(name string) (string, error) {
	t, err := c.get(name)
	if err != nil {
		return "", err
	}
	return t.StringValue()
}

func (c *Compound) GetLongArray(name string) ([]int64, error) {
	t, err := c.get(name)
	if err != nil {
		return nil, err
	}
	return t.LongArray()
}

// GetNumber reads any integer tag as int64, see Tag.AsInt
func (c *Compound) GetNumber(name string) (int64, error) {
	t, err := c.get(name)
	if err != nil {
		return 0, err
	}
	return t.AsInt()
}

// List is a sequence of unnamed tags sharing one type.
// Empty lists are often written with ElemType TagEnd.
type List struct {
	ElemType TagType
	elems    []Tag
}

func NewListValue(elemType TagType, elems ...Tag) *List {
	return &List{ElemType: elemType, elems: elems}
}

func (l *List) Len() int {
	return len(l.elems)
}

func (l *List) Elements() []Tag {
	return l.elems
}

// Compounds returns the elements of a list of compounds
func (l *List) Compounds() ([]*Compound, error) {
	if len(l.elems) == 0 {
		return nil, nil
	}
	if l.ElemType != TagCompound {
		return nil, &WrongKindError{Have: l.ElemType, Want: TagCompound}
	}
	ret := make([]*Compound, len(l.elems))
	for i, e := range l.elems {
		ret[i] = e.payload.(*Compound)
	}
	return ret, nil
}
