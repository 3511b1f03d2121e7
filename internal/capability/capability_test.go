package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEditProject_Owner(t *testing.T) {
	md := ProjectMetadata{ID: "p1", Owner: "alice"}
	cap, err := NewEditProject("alice", md)
	assert.NoError(t, err)
	assert.Equal(t, "p1", cap.Metadata.ID)
}

func TestNewEditProject_Collaborator(t *testing.T) {
	md := ProjectMetadata{ID: "p1", Owner: "alice", Collaborators: []string{"bob"}}
	_, err := NewEditProject("bob", md)
	assert.NoError(t, err)
}

func TestNewEditProject_Forbidden(t *testing.T) {
	md := ProjectMetadata{ID: "p1", Owner: "alice"}
	_, err := NewEditProject("eve", md)
	assert.Error(t, err)
	var forbidden *Forbidden
	assert.ErrorAs(t, err, &forbidden)
}

func TestNewViewProject_Public(t *testing.T) {
	md := ProjectMetadata{ID: "p1", Owner: "alice", PublishState: PublishStatePublic}
	_, err := NewViewProject("anyone", md)
	assert.NoError(t, err)
}

func TestNewViewProject_PrivateForbidden(t *testing.T) {
	md := ProjectMetadata{ID: "p1", Owner: "alice", PublishState: "Private"}
	_, err := NewViewProject("eve", md)
	assert.Error(t, err)
}

func TestNewViewUser(t *testing.T) {
	_, err := NewViewUser("alice", "alice")
	assert.NoError(t, err)

	_, err = NewViewUser("alice", "bob")
	assert.Error(t, err)
}
