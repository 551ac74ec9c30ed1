package scanner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupSetAdd(t *testing.T) {
	d := newDedupSet(3)

	assert.True(t, d.Add("a"))
	assert.False(t, d.Add("a"))
	assert.True(t, d.Add("b"))
	assert.Equal(t, 2, d.Len())
}

func TestDedupSetEvictsOldest(t *testing.T) {
	d := newDedupSet(2)

	d.Add("a")
	d.Add("b")
	d.Add("c") // evicts a

	assert.Equal(t, []string{"b", "c"}, d.Keys())
	assert.True(t, d.Add("a"))
	assert.False(t, d.Add("c"))
}

func TestDedupSetReset(t *testing.T) {
	d := newDedupSet(10)
	for i := 0; i < 5; i++ {
		d.Add(fmt.Sprintf("k%d", i))
	}

	d.Reset()

	assert.Equal(t, 0, d.Len())
	assert.True(t, d.Add("k0"))
}
