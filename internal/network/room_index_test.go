package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoomIndex_AddAndOccupants(t *testing.T) {
	idx := NewRoomIndex()
	idx.AddOccupant("proj1", "role1", "_a")
	idx.AddOccupant("proj1", "role1", "_b")

	assert.Equal(t, []ClientID{"_a", "_b"}, idx.Occupants("proj1", "role1"))
	assert.True(t, idx.HasProject("proj1"))
}

func TestRoomIndex_RemoveOccupant_PreservesOrder(t *testing.T) {
	idx := NewRoomIndex()
	idx.AddOccupant("proj1", "role1", "_a")
	idx.AddOccupant("proj1", "role1", "_b")
	idx.AddOccupant("proj1", "role1", "_c")

	roleEmptied, projectEmptied := idx.RemoveOccupant("proj1", "role1", "_b")
	assert.False(t, roleEmptied)
	assert.False(t, projectEmptied)
	assert.Equal(t, []ClientID{"_a", "_c"}, idx.Occupants("proj1", "role1"))
}

func TestRoomIndex_RemoveOccupant_PrunesEmptyRole(t *testing.T) {
	idx := NewRoomIndex()
	idx.AddOccupant("proj1", "role1", "_a")
	idx.AddOccupant("proj1", "role2", "_b")

	roleEmptied, projectEmptied := idx.RemoveOccupant("proj1", "role1", "_a")
	assert.True(t, roleEmptied)
	assert.False(t, projectEmptied)
	assert.Nil(t, idx.Occupants("proj1", "role1"))
	assert.True(t, idx.HasProject("proj1"))
}

func TestRoomIndex_RemoveOccupant_PrunesEmptyProject(t *testing.T) {
	idx := NewRoomIndex()
	idx.AddOccupant("proj1", "role1", "_a")

	roleEmptied, projectEmptied := idx.RemoveOccupant("proj1", "role1", "_a")
	assert.True(t, roleEmptied)
	assert.True(t, projectEmptied)
	assert.False(t, idx.HasProject("proj1"))
}

func TestRoomIndex_RemoveOccupant_UnknownIsNoop(t *testing.T) {
	idx := NewRoomIndex()
	roleEmptied, projectEmptied := idx.RemoveOccupant("missing", "role1", "_a")
	assert.False(t, roleEmptied)
	assert.False(t, projectEmptied)
}

func TestRoomIndex_DropProject(t *testing.T) {
	idx := NewRoomIndex()
	idx.AddOccupant("proj1", "role1", "_a")
	idx.DropProject("proj1")
	assert.False(t, idx.HasProject("proj1"))
}

func TestRoomIndex_ProjectCount(t *testing.T) {
	idx := NewRoomIndex()
	assert.Equal(t, 0, idx.ProjectCount())

	idx.AddOccupant("proj1", "role1", "_a")
	idx.AddOccupant("proj2", "role1", "_b")
	assert.Equal(t, 2, idx.ProjectCount())

	idx.RemoveOccupant("proj1", "role1", "_a")
	assert.Equal(t, 1, idx.ProjectCount())
}

func TestRoomIndex_OccupantCount_SumsAcrossRoles(t *testing.T) {
	idx := NewRoomIndex()
	assert.Equal(t, 0, idx.OccupantCount("proj1"))

	idx.AddOccupant("proj1", "role1", "_a")
	idx.AddOccupant("proj1", "role1", "_b")
	idx.AddOccupant("proj1", "role2", "_c")
	assert.Equal(t, 3, idx.OccupantCount("proj1"))

	idx.RemoveOccupant("proj1", "role1", "_a")
	assert.Equal(t, 2, idx.OccupantCount("proj1"))
}
