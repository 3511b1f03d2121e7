package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/netsblox/cloud/internal/metrics"
	"github.com/sony/gobreaker"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ProjectStore is the C5 Project Store Gateway: the thin contract over the
// persistent project-metadata collection described in spec.md §6
// (find_one/find/update_one/find_one_and_update/find_one_and_delete), backed
// by MongoDB and circuit-broken the same way internal/bus wraps Redis so a
// Mongo outage trips rather than hangs request handling.
type ProjectStore struct {
	client *mongo.Client
	coll   *mongo.Collection
	cb     *gobreaker.CircuitBreaker
}

// NewProjectStore connects to MongoDB and returns a gateway over the
// "projects" collection in the given database.
func NewProjectStore(ctx context.Context, uri, database string) (*ProjectStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return NewProjectStoreWithClient(client, database), nil
}

// NewProjectStoreWithClient builds a gateway over an already-connected
// client, letting C5 and C8 (internal/store.InviteStore) share a single
// Mongo connection pool rather than each dialing their own.
func NewProjectStoreWithClient(client *mongo.Client, database string) *ProjectStore {
	st := gobreaker.Settings{
		Name:        "mongo-projects",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues("store").Set(stateValue(to))
		},
	}

	return &ProjectStore{
		client: client,
		coll:   client.Database(database).Collection("projects"),
		cb:     gobreaker.NewCircuitBreaker(st),
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Ping satisfies internal/health.StoreChecker.
func (s *ProjectStore) Ping(ctx context.Context) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx, readpref.Primary())
	})
	return wrapStoreErr(err)
}

// Close disconnects the Mongo client, used on graceful shutdown.
func (s *ProjectStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// FindOne mirrors spec.md §6's find_one(filter).
func (s *ProjectStore) FindOne(ctx context.Context, filter bson.M) (*ProjectMetadata, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		var md ProjectMetadata
		err := s.coll.FindOne(ctx, filter).Decode(&md)
		return &md, err
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			metrics.StoreOperations.WithLabelValues("find_one", "miss").Inc()
			return nil, apperr.ErrProjectNotFound
		}
		metrics.StoreOperations.WithLabelValues("find_one", "error").Inc()
		return nil, wrapStoreErr(err)
	}
	metrics.StoreOperations.WithLabelValues("find_one", "hit").Inc()
	return res.(*ProjectMetadata), nil
}

// Find mirrors spec.md §6's find(filter); used by the Unique Name algorithm
// to list an owner's existing project names.
func (s *ProjectStore) Find(ctx context.Context, filter bson.M) ([]ProjectMetadata, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		cur, err := s.coll.Find(ctx, filter)
		if err != nil {
			return nil, err
		}
		defer cur.Close(ctx)

		var results []ProjectMetadata
		if err := cur.All(ctx, &results); err != nil {
			return nil, err
		}
		return results, nil
	})
	if err != nil {
		metrics.StoreOperations.WithLabelValues("find", "error").Inc()
		return nil, wrapStoreErr(err)
	}
	metrics.StoreOperations.WithLabelValues("find", "success").Inc()
	return res.([]ProjectMetadata), nil
}

// UpdateOne mirrors spec.md §6's update_one(filter, update, {upsert?}).
func (s *ProjectStore) UpdateOne(ctx context.Context, filter, update bson.M, upsert bool) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		opts := options.Update().SetUpsert(upsert)
		_, err := s.coll.UpdateOne(ctx, filter, update, opts)
		return nil, err
	})
	if err != nil {
		metrics.StoreOperations.WithLabelValues("update_one", "error").Inc()
		return wrapStoreErr(err)
	}
	metrics.StoreOperations.WithLabelValues("update_one", "success").Inc()
	return nil
}

// FindOneAndUpdate mirrors spec.md §6's find_one_and_update(filter, update,
// {return_after}); the core "assumes atomicity of a single
// find_one_and_update" (§6), so this is always ReturnDocument=After, the only
// mode any caller (C6/C7/C8) needs.
func (s *ProjectStore) FindOneAndUpdate(ctx context.Context, filter, update bson.M) (*ProjectMetadata, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var md ProjectMetadata
		err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&md)
		return &md, err
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			metrics.StoreOperations.WithLabelValues("find_one_and_update", "miss").Inc()
			return nil, apperr.ErrProjectNotFound
		}
		metrics.StoreOperations.WithLabelValues("find_one_and_update", "error").Inc()
		return nil, wrapStoreErr(err)
	}
	metrics.StoreOperations.WithLabelValues("find_one_and_update", "success").Inc()
	return res.(*ProjectMetadata), nil
}

// FindOneAndDelete mirrors spec.md §6's find_one_and_delete(filter); used by
// the reaper (§4.4 project cleanup) and by owner-initiated delete.
func (s *ProjectStore) FindOneAndDelete(ctx context.Context, filter bson.M) (*ProjectMetadata, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		var md ProjectMetadata
		err := s.coll.FindOneAndDelete(ctx, filter).Decode(&md)
		return &md, err
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			metrics.StoreOperations.WithLabelValues("find_one_and_delete", "miss").Inc()
			return nil, apperr.ErrProjectNotFound
		}
		metrics.StoreOperations.WithLabelValues("find_one_and_delete", "error").Inc()
		return nil, wrapStoreErr(err)
	}
	metrics.StoreOperations.WithLabelValues("find_one_and_delete", "success").Inc()
	return res.(*ProjectMetadata), nil
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerFailures.WithLabelValues("store").Inc()
		return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: %v", apperr.ErrStoreUnavailable, err)
}
