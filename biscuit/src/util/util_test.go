package util_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"util"
)

func TestMinAcrossIntegerTypes(t *testing.T) {
	assert.Equal(t, 3, util.Min(3, 7))
	assert.Equal(t, uint32(2), util.Min(uint32(9), uint32(2)))
	assert.Equal(t, uintptr(0), util.Min(uintptr(0), uintptr(100)))
}

func TestRoundupRounddown(t *testing.T) {
	assert.Equal(t, 4096, util.Roundup(1, 4096))
	assert.Equal(t, 4096, util.Roundup(4096, 4096))
	assert.Equal(t, 8192, util.Roundup(4097, 4096))
	assert.Equal(t, 0, util.Rounddown(4095, 4096))
	assert.Equal(t, 4096, util.Rounddown(4096, 4096))
}

func TestWritenThenReadnRoundtripsEachSize(t *testing.T) {
	buf := make([]byte, 16)
	for _, sz := range []int{1, 2, 4, 8} {
		util.Writen(buf, sz, 0, 0x7f)
		assert.Equal(t, 0x7f, util.Readn(buf, sz, 0))
	}
}

func TestReadnOutOfBoundsPanics(t *testing.T) {
	buf := make([]byte, 4)
	assert.Panics(t, func() { util.Readn(buf, 8, 0) })
}

func TestWritenUnsupportedSizePanics(t *testing.T) {
	buf := make([]byte, 16)
	assert.Panics(t, func() { util.Writen(buf, 3, 0, 1) })
}
