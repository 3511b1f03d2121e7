package project

import (
	"context"
	"net/http"
	"testing"

	"github.com/netsblox/cloud/internal/capability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestService_GetProject_JoinsRoleBlobs(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("fetches each role's code/media in parallel", func(mt *mtest.T) {
		s, _ := newTestService(t, mt, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<role-content/>"))
		})

		project := bson.D{
			{Key: "id", Value: "p1"},
			{Key: "owner", Value: "alice"},
			{Key: "name", Value: "MyProject"},
			{Key: "roles", Value: bson.D{
				{Key: "r1", Value: bson.D{{Key: "name", Value: "role1"}, {Key: "codeKey", Value: "p1/r1/code"}, {Key: "mediaKey", Value: "p1/r1/media"}}},
			}},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.projects", mtest.FirstBatch, project))

		vp := capability.ViewProjectMetadata{Metadata: capability.ProjectMetadata{ID: "p1"}}
		proj, err := s.GetProject(context.Background(), vp)
		require.NoError(t, err)
		assert.Equal(t, "alice", proj.Owner)
		require.Contains(t, proj.Roles, "r1")
		assert.Equal(t, "<role-content/>", proj.Roles["r1"].Code)
	})
}

func TestService_GetRole_UnknownRoleNotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("returns RoleNotFound when the role id is absent", func(mt *mtest.T) {
		s, _ := newTestService(t, mt, okBlobHandler)

		project := bson.D{
			{Key: "id", Value: "p1"},
			{Key: "roles", Value: bson.D{
				{Key: "r1", Value: bson.D{{Key: "name", Value: "role1"}}},
			}},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.projects", mtest.FirstBatch, project))

		vp := capability.ViewProject{Metadata: capability.ProjectMetadata{ID: "p1"}}
		_, err := s.GetRole(context.Background(), vp, "missing")
		assert.Error(t, err)
	})
}

func TestService_GetLatestProject_FallsBackToBlobWhenNoOccupant(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("serves the saved blob when no occupant is live", func(mt *mtest.T) {
		s, _ := newTestService(t, mt, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("saved code"))
		})

		project := bson.D{
			{Key: "id", Value: "p1"},
			{Key: "owner", Value: "alice"},
			{Key: "name", Value: "MyProject"},
			{Key: "roles", Value: bson.D{
				{Key: "r1", Value: bson.D{{Key: "name", Value: "role1"}, {Key: "codeKey", Value: "p1/r1/code"}, {Key: "mediaKey", Value: "p1/r1/media"}}},
			}},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.projects", mtest.FirstBatch, project))

		vp := capability.ViewProjectMetadata{Metadata: capability.ProjectMetadata{ID: "p1"}}
		proj, err := s.GetLatestProject(context.Background(), vp)
		require.NoError(t, err)
		assert.Equal(t, "saved code", proj.Roles["r1"].Code)
	})
}
