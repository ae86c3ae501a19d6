package ustr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ustr"
)

func TestEq(t *testing.T) {
	assert.True(t, ustr.Ustr("abc").Eq(ustr.Ustr("abc")))
	assert.False(t, ustr.Ustr("abc").Eq(ustr.Ustr("abd")))
	assert.False(t, ustr.Ustr("abc").Eq(ustr.Ustr("ab")))
}

func TestIsdotIsdotdot(t *testing.T) {
	assert.True(t, ustr.Ustr(".").Isdot())
	assert.False(t, ustr.Ustr("..").Isdot())
	assert.True(t, ustr.Ustr("..").Isdotdot())
	assert.False(t, ustr.Ustr(".").Isdotdot())
}

func TestMkUstrSliceTruncatesAtNul(t *testing.T) {
	buf := []uint8{'h', 'i', 0, 'x', 'x'}
	got := ustr.MkUstrSlice(buf)
	assert.Equal(t, "hi", got.String())
}

func TestMkUstrSliceNoNulReturnsWholeSlice(t *testing.T) {
	buf := []uint8{'h', 'i'}
	got := ustr.MkUstrSlice(buf)
	assert.Equal(t, "hi", got.String())
}

func TestExtendAppendsSlashAndComponent(t *testing.T) {
	base := ustr.Ustr("/a")
	got := base.Extend(ustr.Ustr("b"))
	assert.Equal(t, "/a/b", got.String())
	// base itself must be untouched by the append.
	assert.Equal(t, "/a", base.String())
}

func TestExtendStr(t *testing.T) {
	base := ustr.Ustr("/a")
	assert.Equal(t, "/a/b", base.ExtendStr("b").String())
}

func TestIsAbsolute(t *testing.T) {
	assert.True(t, ustr.Ustr("/a").IsAbsolute())
	assert.False(t, ustr.Ustr("a").IsAbsolute())
	assert.False(t, ustr.MkUstr().IsAbsolute())
}

func TestIndexByte(t *testing.T) {
	assert.Equal(t, 2, ustr.Ustr("ab/c").IndexByte('/'))
	assert.Equal(t, -1, ustr.Ustr("abc").IndexByte('/'))
}
