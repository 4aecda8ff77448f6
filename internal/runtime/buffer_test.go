package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer(t *testing.T) {
	r := NewRingBuffer(8)
	_, _ = r.Write([]byte("abcde"))
	assert.Equal(t, "abcde", string(r.Bytes()))

	_, _ = r.Write([]byte("fghij"))
	assert.Equal(t, "cdefghij", string(r.Bytes()))
	assert.Equal(t, 8, r.Len())
	assert.Equal(t, "hij", string(r.Tail(3)))

	_, _ = r.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", string(r.Bytes()))

	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Bytes())
}
