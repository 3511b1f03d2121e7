package network

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/netsblox/cloud/internal/store"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

type fakeConn struct {
	mu      sync.Mutex
	inbound [][]byte
	readPos int
	written [][]byte
	closed  bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readPos >= len(c.inbound) {
		return 0, nil, errors.New("eof")
	}
	msg := c.inbound[c.readPos]
	c.readPos++
	return 1, msg, nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

func TestWsHandle_Send_Delivers(t *testing.T) {
	conn := &fakeConn{}
	h := newWsHandle(conn)
	go h.writePump()

	err := h.Send([]byte(`{"type":"room-roles"}`))
	assert.NoError(t, err)

	h.close()
	time.Sleep(10 * time.Millisecond)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Len(t, conn.written, 1)
}

func TestWsHandle_Send_DropsWhenFull(t *testing.T) {
	conn := &fakeConn{}
	h := newWsHandle(conn)

	for i := 0; i < 256; i++ {
		assert.NoError(t, h.Send([]byte("x")))
	}

	err := h.Send([]byte("overflow"))
	assert.ErrorIs(t, err, errFullSendBuffer)
}

func TestHub_ReadPump_FullLifecycle(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	defer mt.Close()

	mt.Run("places then cleans up the client on disconnect", func(mt *mtest.T) {
		ps := store.NewProjectStoreWithClient(mt.Client, "db")
		e := NewEngine(NewResolver(ps, nil), ps, 0)

		project := bson.D{
			{Key: "id", Value: "p1"},
			{Key: "owner", Value: "alice"},
			{Key: "name", Value: "MyProject"},
		}
		// 1: clearDeleteAt's UpdateOne after SetClientState's Browser case.
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 1}})
		// 2: broadcastRoomState's FindOne after SetClientState.
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "db.projects", mtest.FirstBatch, project),
			mtest.CreateCursorResponse(0, "db.projects", mtest.NextBatch),
		)
		// 3: appendNetworkTrace's UpdateOne.
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}})
		// 4: BrokenClient's UpdateOne once ReadMessage fails.
		mt.AddMockResponses(bson.D{{Key: "ok", Value: 1}, {Key: "n", Value: 0}})
		// 5: projectCleanup's FindOne once the occupant disconnects.
		mt.AddMockResponses(
			mtest.CreateCursorResponse(1, "db.projects", mtest.FirstBatch, project),
			mtest.CreateCursorResponse(0, "db.projects", mtest.NextBatch),
		)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go e.Run(ctx)

		conn := &fakeConn{inbound: [][]byte{
			[]byte(`{"type":"set-client-state","state":{"Browser":{"projectId":"p1","roleId":"r1"}},"username":"alice"}`),
		}}
		h := &Hub{engine: e}

		e.AddClient("_a", newWsHandle(conn))
		h.readPump(conn, "_a")

		// readPump's defer enqueues RemoveClient but returns before the
		// engine goroutine necessarily applies it; GetRoleRequest is FIFO
		// behind it on the same command channel, so waiting for its reply
		// guarantees RemoveClient (and projectCleanup) already ran.
		_, _ = e.GetRoleRequest(context.Background(), "p1", "r1")

		assert.False(t, e.registry.Has("_a"))
		assert.False(t, e.rooms.HasProject("p1"))
	})
}
