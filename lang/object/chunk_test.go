package object_test

import (
	"testing"

	"github.com/loxlang/loxvm/lang/object"
)

func TestChunkLineAtRunLengthEncoding(t *testing.T) {
	var c object.Chunk
	c.Write(1, 10)
	c.Write(2, 10)
	c.Write(3, 10)
	c.Write(4, 11)
	c.Write(5, 11)
	c.Write(6, 12)

	want := []int{10, 10, 10, 11, 11, 12}
	for offset, line := range want {
		if got := c.LineAt(offset); got != line {
			t.Errorf("LineAt(%d) = %d, want %d", offset, got, line)
		}
	}
}

func TestChunkDropLastByteShrinksLineTable(t *testing.T) {
	var c object.Chunk
	c.Write(1, 10)
	c.Write(2, 11)
	c.DropLastByte()

	if len(c.Code) != 1 {
		t.Fatalf("Code has %d bytes, want 1", len(c.Code))
	}
	c.Write(3, 12)
	if got := c.LineAt(1); got != 12 {
		t.Errorf("LineAt(1) = %d, want 12 after dropping the line-11 byte", got)
	}
	if got := c.LineAt(0); got != 10 {
		t.Errorf("LineAt(0) = %d, want 10", got)
	}
}

func TestChunkAddConstantDeduplicates(t *testing.T) {
	var c object.Chunk
	i1, ok := c.AddConstant(object.Number(3.14))
	if !ok {
		t.Fatal("AddConstant should succeed")
	}
	i2, ok := c.AddConstant(object.Number(3.14))
	if !ok {
		t.Fatal("AddConstant should succeed")
	}
	if i1 != i2 {
		t.Errorf("AddConstant of an equal value should reuse the slot: %d != %d", i1, i2)
	}
	if len(c.Constants) != 1 {
		t.Errorf("Constants has %d entries, want 1", len(c.Constants))
	}

	i3, _ := c.AddConstant(object.Number(2.71))
	if i3 == i1 {
		t.Error("a distinct value must get a distinct constant slot")
	}
}

func TestChunkAddConstantCapsAt256(t *testing.T) {
	var c object.Chunk
	for i := 0; i < object.MaxConstants; i++ {
		if _, ok := c.AddConstant(object.Number(float64(i))); !ok {
			t.Fatalf("AddConstant %d should succeed (under the cap)", i)
		}
	}
	if _, ok := c.AddConstant(object.Number(float64(object.MaxConstants))); ok {
		t.Error("the 257th distinct constant should be rejected")
	}
}

func TestOpCodeStringKnownAndUnknown(t *testing.T) {
	if object.OpAdd.String() != "OP_ADD" {
		t.Errorf("OpAdd.String() = %q", object.OpAdd.String())
	}
	if got := object.OpCode(255).String(); got != "OP_UNKNOWN" {
		t.Errorf("out-of-range OpCode.String() = %q, want OP_UNKNOWN", got)
	}
}
