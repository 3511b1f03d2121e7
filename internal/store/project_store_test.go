package store

import (
	"context"
	"testing"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestFindOne_Found(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("returns metadata", func(mt *mtest.T) {
		s := &ProjectStore{coll: mt.Coll, cb: newTestBreaker("test")}

		first := mtest.CreateCursorResponse(1, "db.projects", mtest.FirstBatch, bson.D{
			{Key: "id", Value: "p1"},
			{Key: "owner", Value: "alice"},
			{Key: "name", Value: "MyProject"},
		})
		killCursors := mtest.CreateCursorResponse(0, "db.projects", mtest.NextBatch)
		mt.AddMockResponses(first, killCursors)

		md, err := s.FindOne(context.Background(), bson.M{"id": "p1"})
		require.NoError(t, err)
		assert.Equal(t, "p1", md.ID)
		assert.Equal(t, "alice", md.Owner)
	})
}

func TestFindOne_NotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("maps ErrNoDocuments to ErrProjectNotFound", func(mt *mtest.T) {
		s := &ProjectStore{coll: mt.Coll, cb: newTestBreaker("test")}

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.projects", mtest.FirstBatch))

		_, err := s.FindOne(context.Background(), bson.M{"id": "missing"})
		assert.ErrorIs(t, err, apperr.ErrProjectNotFound)
	})
}

func TestFindOneAndUpdate_NotFound(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("maps to ErrProjectNotFound", func(mt *mtest.T) {
		s := &ProjectStore{coll: mt.Coll, cb: newTestBreaker("test")}
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}})

		_, err := s.FindOneAndUpdate(context.Background(), bson.M{"id": "p1"}, bson.M{"$set": bson.M{"name": "x"}})
		assert.ErrorIs(t, err, apperr.ErrProjectNotFound)
	})
}

func TestFindOneAndUpdate_CommandError(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("wraps unexpected errors as ErrStoreUnavailable", func(mt *mtest.T) {
		s := &ProjectStore{coll: mt.Coll, cb: newTestBreaker("test")}
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    11600,
			Message: "interrupted",
			Name:    "InterruptedError",
		}))

		_, err := s.FindOneAndUpdate(context.Background(), bson.M{"id": "p1"}, bson.M{"$set": bson.M{"name": "x"}})
		assert.ErrorIs(t, err, apperr.ErrStoreUnavailable)
	})
}
