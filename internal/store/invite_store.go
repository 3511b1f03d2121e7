package store

import (
	"context"
	"errors"
	"time"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/netsblox/cloud/internal/metrics"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InviteStore is the persistence side of C8 (spec.md §4.6, §6): the
// CollaborationInvite collection, sharing the same Mongo client as
// ProjectStore but its own circuit breaker since invite traffic shouldn't
// trip project reads or vice versa.
type InviteStore struct {
	coll *mongo.Collection
	cb   *gobreaker.CircuitBreaker
}

// NewInviteStore returns a gateway over the "collaboration_invites"
// collection in the given database, reusing an already-connected client.
func NewInviteStore(client *mongo.Client, database string) *InviteStore {
	st := gobreaker.Settings{
		Name:        "mongo-invites",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues("store").Set(stateValue(to))
		},
	}
	return &InviteStore{
		coll: client.Database(database).Collection("collaboration_invites"),
		cb:   gobreaker.NewCircuitBreaker(st),
	}
}

// FindOne looks up a single invite by filter (e.g. {id} or
// {sender,recipient,projectId}).
func (s *InviteStore) FindOne(ctx context.Context, filter bson.M) (*CollaborationInvite, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		var inv CollaborationInvite
		err := s.coll.FindOne(ctx, filter).Decode(&inv)
		return &inv, err
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.ErrInviteNotFound
		}
		return nil, wrapStoreErr(err)
	}
	return res.(*CollaborationInvite), nil
}

// Find lists invites matching filter, e.g. {recipient: user} for list_invites.
func (s *InviteStore) Find(ctx context.Context, filter bson.M) ([]CollaborationInvite, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		cur, err := s.coll.Find(ctx, filter)
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)

		var results []CollaborationInvite
		if err := cur.All(ctx, &results); err != nil {
			return nil, err
		}
		return results, nil
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return res.([]CollaborationInvite), nil
}

// UpsertPending implements send_invite's idempotent upsert (spec.md §4.6):
// an $setOnInsert of the whole invite document keyed on
// (sender, recipient, project_id), matching the uniqueness constraint of "at
// most one Pending invite per triple". Returns true if an existing document
// matched (i.e. the invite already existed) so the caller can surface
// apperr.ErrInviteAlreadyExists.
func (s *InviteStore) UpsertPending(ctx context.Context, inv CollaborationInvite) (alreadyExisted bool, err error) {
	filter := bson.M{
		"sender":    inv.Sender,
		"receiver":  inv.Receiver,
		"projectId": inv.ProjectID,
	}
	update := bson.M{"$setOnInsert": inv}

	res, err := s.cb.Execute(func() (interface{}, error) {
		opts := options.Update().SetUpsert(true)
		return s.coll.UpdateOne(ctx, filter, update, opts)
	})
	if err != nil {
		return false, wrapStoreErr(err)
	}

	result := res.(*mongo.UpdateResult)
	return result.MatchedCount == 1, nil
}

// DeleteOne removes an invite row, used by respond() on both accept and
// reject per spec.md §4.6 ("delete the invite in either case").
func (s *InviteStore) DeleteOne(ctx context.Context, filter bson.M) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return s.coll.DeleteOne(ctx, filter)
	})
	if err != nil {
		return wrapStoreErr(err)
	}
	return nil
}
