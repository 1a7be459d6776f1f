package processor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProcessCache_MissOnNonexistentPID(t *testing.T) {
	c := NewProcessCache(10, time.Minute)
	_, resolved := c.Lookup(1<<30 - 1)
	assert.False(t, resolved)
	assert.Equal(t, 0, c.Len())
}

func TestProcessCache_BoundedCapacity(t *testing.T) {
	c := NewProcessCache(2, time.Minute)
	for pid := int32(1); pid <= 5; pid++ {
		c.Lookup(pid)
	}
	assert.LessOrEqual(t, c.Len(), 2)
}
