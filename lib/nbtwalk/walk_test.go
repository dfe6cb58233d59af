package nbtwalk

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/maxsupermanhd/regionmap/lib/nbt"
)

func testTree() *nbt.Compound {
	return nbt.NewCompoundValue(
		nbt.NewString("Hello", "World"),
		nbt.NewCompound("Arrays", nbt.NewCompoundValue(
			nbt.NewByteArray("The112233", []byte{11, 22, 33}),
			nbt.NewIntArray("NumberNine", []int32{9}),
			nbt.NewLongArray("NumberNineNine", []int64{99}),
		)),
		nbt.NewList("sections", nbt.NewListValue(nbt.TagCompound,
			nbt.NewCompound("", nbt.NewCompoundValue(nbt.NewByte("Y", -4))),
			nbt.NewCompound("", nbt.NewCompoundValue(nbt.NewByte("Y", -3))),
		)),
		nbt.NewByte("Nice", 0x69),
	)
}

func TestWalkOrder(t *testing.T) {
	got := []string{}
	rec := func(format string, args ...any) {
		got = append(got, fmt.Sprintf(format, args...))
	}
	Walk(testTree(), &WalkerCallbacks{
		CbEnd: func(p []NBTnode) {
			rec("%s.End", PrintNodeSlice(p))
		},
		CbByte: func(p []NBTnode, n string, val int8) {
			rec("%s.Byte %q %d", PrintNodeSlice(p), n, val)
		},
		CbString: func(p []NBTnode, n string, val string) {
			rec("%s.String %q %q", PrintNodeSlice(p), n, val)
		},
		CbList: func(p []NBTnode, n string, t nbt.TagType, l int) {
			rec("%s.List %q %s of length %d", PrintNodeSlice(p), n, t, l)
		},
		CbCompound: func(p []NBTnode, n string) {
			rec("%s.Compound %q", PrintNodeSlice(p), n)
		},
		CbIntArray: func(p []NBTnode, n string, val []int32) {
			rec("%s.IntArray %q %v", PrintNodeSlice(p), n, val)
		},
	})
	want := []string{
		`.Compound ""`,
		`."".String "Hello" "World"`,
		`."".Compound "Arrays"`,
		`.""."Arrays".IntArray "NumberNine" [9]`,
		`.""."Arrays".End`,
		`."".List "sections" TagCompound of length 2`,
		`.""."sections"[0].Compound ""`,
		`.""."sections"[0]."".Byte "Y" -4`,
		`.""."sections"[0]."".End`,
		`.""."sections"[1].Compound ""`,
		`.""."sections"[1]."".Byte "Y" -3`,
		`.""."sections"[1]."".End`,
		`."".Byte "Nice" 105`,
		`."".End`,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("walk order mismatch (-want +got):\n%s", diff)
	}
}

func TestDump(t *testing.T) {
	var sb strings.Builder
	if err := Dump(&sb, testTree(), 2); err != nil {
		t.Fatal(err)
	}
	want := `"" TagCompound
  "Hello" TagString = "World"
  "Arrays" TagCompound
    "The112233" TagByteArray [3 entries]
    "NumberNine" TagIntArray [9]
    "NumberNineNine" TagLongArray [99]
  "sections" TagList [2 x TagCompound]
    [0] TagCompound
      "Y" TagByte = -4
    [1] TagCompound
      "Y" TagByte = -3
  "Nice" TagByte = 105
`
	if diff := cmp.Diff(want, sb.String()); diff != "" {
		t.Errorf("dump mismatch (-want +got):\n%s", diff)
	}
}
