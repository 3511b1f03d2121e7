package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExternalIndex_BindAndLookup(t *testing.T) {
	idx := NewExternalIndex()
	idx.Bind("iothub", "sensors@1", "_a")

	c, ok := idx.Lookup("iothub", "sensors@1")
	assert.True(t, ok)
	assert.Equal(t, ClientID("_a"), c)
}

func TestExternalIndex_LookupMissing(t *testing.T) {
	idx := NewExternalIndex()
	_, ok := idx.Lookup("iothub", "sensors@1")
	assert.False(t, ok)
}

func TestExternalIndex_UnbindDropsEmptyNamespace(t *testing.T) {
	idx := NewExternalIndex()
	idx.Bind("iothub", "sensors@1", "_a")
	idx.Unbind("iothub", "sensors@1")

	_, ok := idx.Lookup("iothub", "sensors@1")
	assert.False(t, ok)
	assert.NotContains(t, idx.apps, "iothub")
}

func TestExternalIndex_UnbindKeepsOtherEntries(t *testing.T) {
	idx := NewExternalIndex()
	idx.Bind("iothub", "sensors@1", "_a")
	idx.Bind("iothub", "sensors@2", "_b")
	idx.Unbind("iothub", "sensors@1")

	c, ok := idx.Lookup("iothub", "sensors@2")
	assert.True(t, ok)
	assert.Equal(t, ClientID("_b"), c)
}
