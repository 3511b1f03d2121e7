package invites

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/netsblox/cloud/internal/capability"
	"github.com/netsblox/cloud/internal/network"
	"github.com/netsblox/cloud/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func newTestService(t *testing.T, mt *mtest.T) (*Service, *network.Engine) {
	t.Helper()
	ps := store.NewProjectStoreWithClient(mt.Client, "db")
	is := store.NewInviteStore(mt.Client, "db")
	resolver := network.NewResolver(ps, nil)
	engine := network.NewEngine(resolver, ps, 0)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go engine.Run(ctx)

	return NewService(is, ps, engine), engine
}

func TestService_SendInvite_CreatesPendingInvite(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("stores a pending invite and notifies the recipient", func(mt *mtest.T) {
		s, e := newTestService(t, mt)
		h := &fakeHandle{}
		e.AddClient("_b", h)
		e.SetClientState("_b", network.ClientState{}, "bob", true)
		// give the engine a moment to process the prior enqueued commands
		// via a round trip that blocks for a reply.
		e.GetRoleRequest(context.Background(), "p1", "r1")

		// An upsert that inserted: n counts the upserted row, listed under "upserted".
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "n", Value: 1},
			{Key: "upserted", Value: bson.A{bson.D{{Key: "index", Value: 0}, {Key: "_id", Value: "new-invite"}}}},
		})

		ep := capability.EditProject{Metadata: capability.ProjectMetadata{ID: "p1", Owner: "alice"}}
		invite, err := s.SendInvite(context.Background(), ep, "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, store.InvitationPending, invite.State)
		assert.Equal(t, "bob", invite.Receiver)

		// NotifyUser only enqueues; a blocking round trip behind it makes
		// sure the engine has delivered the frame.
		e.GetRoleRequest(context.Background(), "p1", "r1")

		require.Len(t, h.sent, 1)
		var frame network.CollabInviteMsg
		require.NoError(t, json.Unmarshal(h.sent[0], &frame))
		assert.Equal(t, "collab-invite", frame.Type)
		assert.Equal(t, "bob", frame.Receiver)
	})
}

func TestService_SendInvite_AlreadyExists(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("returns ErrInviteAlreadyExists when a pending row matches", func(mt *mtest.T) {
		s, _ := newTestService(t, mt)

		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}, {Key: "nModified", Value: 0}})

		ep := capability.EditProject{Metadata: capability.ProjectMetadata{ID: "p1", Owner: "alice"}}
		_, err := s.SendInvite(context.Background(), ep, "alice", "bob")
		assert.ErrorIs(t, err, apperr.ErrInviteAlreadyExists)
	})
}

func TestService_ListInvites_FiltersByRecipient(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("lists invites addressed to the recipient", func(mt *mtest.T) {
		s, _ := newTestService(t, mt)

		invite := bson.D{
			{Key: "id", Value: "inv1"},
			{Key: "sender", Value: "alice"},
			{Key: "receiver", Value: "bob"},
			{Key: "projectId", Value: "p1"},
			{Key: "state", Value: "pending"},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.collaboration_invites", mtest.FirstBatch, invite))
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "db.collaboration_invites", mtest.NextBatch))

		list, err := s.ListInvites(context.Background(), capability.ViewUser{Username: "bob"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "inv1", list[0].ID)
	})
}

func TestService_Respond_Accepted_AddsCollaboratorAndDeletesInvite(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("adds the receiver as a collaborator and deletes the invite row", func(mt *mtest.T) {
		s, _ := newTestService(t, mt)

		invite := bson.D{
			{Key: "id", Value: "inv1"},
			{Key: "sender", Value: "alice"},
			{Key: "receiver", Value: "bob"},
			{Key: "projectId", Value: "p1"},
			{Key: "state", Value: "pending"},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.collaboration_invites", mtest.FirstBatch, invite))
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}})
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{{Key: "id", Value: "p1"}, {Key: "collaborators", Value: bson.A{"bob"}}}},
		})

		err := s.Respond(context.Background(), capability.ViewUser{Username: "bob"}, "inv1", true)
		assert.NoError(t, err)
	})
}

func TestService_Respond_Rejected_OnlyDeletesInvite(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("deletes the invite without touching collaborators", func(mt *mtest.T) {
		s, _ := newTestService(t, mt)

		invite := bson.D{
			{Key: "id", Value: "inv1"},
			{Key: "sender", Value: "alice"},
			{Key: "receiver", Value: "bob"},
			{Key: "projectId", Value: "p1"},
			{Key: "state", Value: "pending"},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.collaboration_invites", mtest.FirstBatch, invite))
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}})

		err := s.Respond(context.Background(), capability.ViewUser{Username: "bob"}, "inv1", false)
		assert.NoError(t, err)
	})
}

func TestService_Respond_WrongUserForbidden(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("refuses a response from someone other than the recipient", func(mt *mtest.T) {
		s, _ := newTestService(t, mt)

		invite := bson.D{
			{Key: "id", Value: "inv1"},
			{Key: "sender", Value: "alice"},
			{Key: "receiver", Value: "bob"},
			{Key: "projectId", Value: "p1"},
			{Key: "state", Value: "pending"},
		}
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "db.collaboration_invites", mtest.FirstBatch, invite))

		err := s.Respond(context.Background(), capability.ViewUser{Username: "eve"}, "inv1", true)
		var forbidden *capability.Forbidden
		assert.ErrorAs(t, err, &forbidden)
	})
}

type fakeHandle struct {
	sent [][]byte
}

func (h *fakeHandle) Send(frame []byte) error {
	h.sent = append(h.sent, frame)
	return nil
}
