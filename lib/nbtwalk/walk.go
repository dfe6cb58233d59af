package nbtwalk

import (
	"fmt"
	"io"
	"strings"

	"github.com/maxsupermanhd/regionmap/lib/nbt"
)

// NBTnode is one open container on the walk path. S is the index of
// the element being visited when T is TagList.
type NBTnode struct {
	T nbt.TagType
	N string
	S int
}

func PrintNodeSlice(p []NBTnode) string {
	ret := ""
	for _, v := range p {
		if v.T == nbt.TagList {
			ret += fmt.Sprintf(".%q[%d]", v.N, v.S)
		} else {
			ret += fmt.Sprintf(".%q", v.N)
		}
	}
	return ret
}

// WalkerCallbacks are called in tree order, nil ones are skipped.
// p is reused between calls and must not be retained.
// List elements are reported with empty n.
type WalkerCallbacks struct {
	CbEnd       func(p []NBTnode)
	CbByte      func(p []NBTnode, n string, val int8)
	CbShort     func(p []NBTnode, n string, val int16)
	CbInt       func(p []NBTnode, n string, val int32)
	CbLong      func(p []NBTnode, n string, val int64)
	CbFloat     func(p []NBTnode, n string, val float32)
	CbDouble    func(p []NBTnode, n string, val float64)
	CbByteArray func(p []NBTnode, n string, val []byte)
	CbString    func(p []NBTnode, n string, val string)
	CbList      func(p []NBTnode, n string, t nbt.TagType, l int)
	CbCompound  func(p []NBTnode, n string)
	CbIntArray  func(p []NBTnode, n string, val []int32)
	CbLongArray func(p []NBTnode, n string, val []int64)
}

// Walk visits every tag under root, root itself is reported as a
// compound with empty name
func Walk(root *nbt.Compound, cb *WalkerCallbacks) {
	p := make([]NBTnode, 0, 32)
	if cb.CbCompound != nil {
		cb.CbCompound(p, "")
	}
	walkCompound(append(p, NBTnode{T: nbt.TagCompound}), root, cb)
}

func walkCompound(p []NBTnode, c *nbt.Compound, cb *WalkerCallbacks) {
	for _, n := range c.Names() {
		t, _ := c.Get(n)
		walkTag(p, n, t, cb)
	}
	if cb.CbEnd != nil {
		cb.CbEnd(p)
	}
}

// accessor errors are impossible here, the switch already checked the kind
func walkTag(p []NBTnode, n string, t nbt.Tag, cb *WalkerCallbacks) {
	switch t.Type {
	case nbt.TagByte:
		if cb.CbByte != nil {
			v, _ := t.Byte()
			cb.CbByte(p, n, v)
		}
	case nbt.TagShort:
		if cb.CbShort != nil {
			v, _ := t.Short()
			cb.CbShort(p, n, v)
		}
	case nbt.TagInt:
		if cb.CbInt != nil {
			v, _ := t.Int()
			cb.CbInt(p, n, v)
		}
	case nbt.TagLong:
		if cb.CbLong != nil {
			v, _ := t.Long()
			cb.CbLong(p, n, v)
		}
	case nbt.TagFloat:
		if cb.CbFloat != nil {
			v, _ := t.Float()
			cb.CbFloat(p, n, v)
		}
	case nbt.TagDouble:
		if cb.CbDouble != nil {
			v, _ := t.Double()
			cb.CbDouble(p, n, v)
		}
	case nbt.TagByteArray:
		if cb.CbByteArray != nil {
			v, _ := t.ByteArray()
			cb.CbByteArray(p, n, v)
		}
	case nbt.TagString:
		if cb.CbString != nil {
			v, _ := t.StringValue()
			cb.CbString(p, n, v)
		}
	case nbt.TagIntArray:
		if cb.CbIntArray != nil {
			v, _ := t.IntArray()
			cb.CbIntArray(p, n, v)
		}
	case nbt.TagLongArray:
		if cb.CbLongArray != nil {
			v, _ := t.LongArray()
			cb.CbLongArray(p, n, v)
		}
	case nbt.TagList:
		l, _ := t.List()
		if cb.CbList != nil {
			cb.CbList(p, n, l.ElemType, l.Len())
		}
		lp := append(p, NBTnode{T: nbt.TagList, N: n})
		for i, e := range l.Elements() {
			lp[len(lp)-1].S = i
			walkTag(lp, "", e, cb)
		}
	case nbt.TagCompound:
		c, _ := t.Compound()
		if cb.CbCompound != nil {
			cb.CbCompound(p, n)
		}
		walkCompound(append(p, NBTnode{T: nbt.TagCompound, N: n}), c, cb)
	}
}

// Dump writes an indented listing of root to w. Arrays longer than
// maxArray are only summarized, negative maxArray prints everything.
func Dump(w io.Writer, root *nbt.Compound, maxArray int) error {
	var werr error
	line := func(p []NBTnode, n, format string, args ...any) {
		if werr != nil {
			return
		}
		indent := strings.Repeat("  ", len(p))
		_, werr = fmt.Fprintf(w, "%s%s %s\n", indent, label(p, n), fmt.Sprintf(format, args...))
	}
	array := func(p []NBTnode, n string, t nbt.TagType, l int, vals any) {
		if maxArray >= 0 && l > maxArray {
			line(p, n, "%s [%d entries]", t, l)
			return
		}
		line(p, n, "%s %v", t, vals)
	}
	Walk(root, &WalkerCallbacks{
		CbByte: func(p []NBTnode, n string, val int8) {
			line(p, n, "%s = %d", nbt.TagByte, val)
		},
		CbShort: func(p []NBTnode, n string, val int16) {
			line(p, n, "%s = %d", nbt.TagShort, val)
		},
		CbInt: func(p []NBTnode, n string, val int32) {
			line(p, n, "%s = %d", nbt.TagInt, val)
		},
		CbLong: func(p []NBTnode, n string, val int64) {
			line(p, n, "%s = %d", nbt.TagLong, val)
		},
		CbFloat: func(p []NBTnode, n string, val float32) {
			line(p, n, "%s = %v", nbt.TagFloat, val)
		},
		CbDouble: func(p []NBTnode, n string, val float64) {
			line(p, n, "%s = %v", nbt.TagDouble, val)
		},
		CbString: func(p []NBTnode, n string, val string) {
			line(p, n, "%s = %q", nbt.TagString, val)
		},
		CbByteArray: func(p []NBTnode, n string, val []byte) {
			array(p, n, nbt.TagByteArray, len(val), val)
		},
		CbIntArray: func(p []NBTnode, n string, val []int32) {
			array(p, n, nbt.TagIntArray, len(val), val)
		},
		CbLongArray: func(p []NBTnode, n string, val []int64) {
			array(p, n, nbt.TagLongArray, len(val), val)
		},
		CbList: func(p []NBTnode, n string, t nbt.TagType, l int) {
			line(p, n, "%s [%d x %s]", nbt.TagList, l, t)
		},
		CbCompound: func(p []NBTnode, n string) {
			line(p, n, "%s", nbt.TagCompound)
		},
	})
	return werr
}

func label(p []NBTnode, n string) string {
	if len(p) > 0 && p[len(p)-1].T == nbt.TagList {
		return fmt.Sprintf("[%d]", p[len(p)-1].S)
	}
	return fmt.Sprintf("%q", n)
}
