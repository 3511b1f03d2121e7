package network

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/netsblox/cloud/internal/logging"
	"github.com/netsblox/cloud/internal/metrics"
	"github.com/netsblox/cloud/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"k8s.io/utils/set"
)

// command is one entry on the Topology Engine's inbound queue. Each command
// type below mirrors one of the public operations in spec.md §4.4; the
// engine processes them strictly one at a time (§5's single-writer
// discipline), the idiomatic Go equivalent of the source's actix actor.
type command interface {
	apply(ctx context.Context, e *Engine)
}

type cmdAddClient struct {
	id     ClientID
	handle TransportHandle
}

func (c cmdAddClient) apply(ctx context.Context, e *Engine) {
	e.registry.Add(c.id, c.handle)
	metrics.IncConnection()
}

type cmdSetClientState struct {
	id          ClientID
	state       ClientState
	username    string
	hasUsername bool
}

func (c cmdSetClientState) apply(ctx context.Context, e *Engine) {
	if !e.registry.Has(c.id) {
		return
	}

	e.resetState(ctx, c.id)

	if c.hasUsername {
		e.registry.SetUsername(c.id, c.username)
	}

	switch {
	case c.state.Browser != nil:
		e.rooms.AddOccupant(c.state.Browser.ProjectID, c.state.Browser.RoleID, c.id)
		e.clearDeleteAt(ctx, c.state.Browser.ProjectID)
		e.updateRoomMetrics(c.state.Browser.ProjectID)
		e.broadcastRoomState(ctx, c.state.Browser.ProjectID)
	case c.state.External != nil:
		appID := strings.ToLower(c.state.External.AppID)
		e.external.Bind(appID, c.state.External.Address, c.id)
	}

	e.states[c.id] = c.state
}

type cmdRemoveClient struct {
	id ClientID
}

func (c cmdRemoveClient) apply(ctx context.Context, e *Engine) {
	e.registry.Remove(c.id)
	e.resetState(ctx, c.id)
	metrics.DecConnection()
}

type cmdBrokenClient struct {
	id ClientID
}

func (c cmdBrokenClient) apply(ctx context.Context, e *Engine) {
	state, ok := e.states[c.id]
	if !ok || state.Browser == nil {
		return
	}

	err := e.projects.UpdateOne(ctx,
		bson.M{"id": state.Browser.ProjectID, "saveState": store.SaveStateTransient},
		bson.M{"$set": bson.M{"saveState": store.SaveStateBroken}},
		false,
	)
	if err != nil {
		logging.Warn(ctx, "failed to mark project broken", zap.String("projectId", state.Browser.ProjectID), zap.Error(err))
		return
	}
	metrics.TopologyEvents.WithLabelValues("broken_client", "ok").Inc()
}

type cmdSendMessage struct {
	addresses []string
	content   json.RawMessage
}

func (c cmdSendMessage) apply(ctx context.Context, e *Engine) {
	recipients := set.New[ClientID]()

	for _, addrStr := range c.addresses {
		addr, err := ParseAddress(addrStr)
		if err != nil {
			logging.Warn(ctx, "failed to parse address", zap.String("address", addrStr), zap.Error(err))
			continue
		}

		for _, appID := range addr.AppIDs {
			if appID == DefaultAppID {
				targets, err := e.resolver.ResolveBrowser(ctx, addr)
				if err != nil {
					logging.Warn(ctx, "address resolution failed", zap.String("address", addrStr), zap.Error(err))
					continue
				}
				for _, t := range targets {
					for _, cid := range e.rooms.Occupants(t.ProjectID, t.RoleID) {
						recipients.Insert(cid)
					}
				}
			} else if cid, ok := e.external.Lookup(appID, addr.RawAddress); ok {
				recipients.Insert(cid)
			}
		}
	}

	delivered := 0
	for _, cid := range recipients.UnsortedList() {
		handle, ok := e.registry.Get(cid)
		if !ok {
			continue
		}
		if err := handle.Send(c.content); err != nil {
			logging.Warn(ctx, "failed to deliver message", zap.String("clientId", string(cid)), zap.Error(err))
			metrics.MessagesRouted.WithLabelValues("error").Inc()
			continue
		}
		delivered++
	}
	metrics.MessagesRouted.WithLabelValues("ok").Add(float64(delivered))
}

type cmdSendRoomState struct {
	projectID string
}

func (c cmdSendRoomState) apply(ctx context.Context, e *Engine) {
	e.broadcastRoomState(ctx, c.projectID)
}

type cmdNotifyUser struct {
	username string
	frame    []byte
}

func (c cmdNotifyUser) apply(ctx context.Context, e *Engine) {
	for _, cid := range e.registry.IDsForUsername(c.username) {
		handle, ok := e.registry.Get(cid)
		if !ok {
			continue
		}
		if err := handle.Send(c.frame); err != nil {
			logging.Warn(ctx, "failed to deliver user notification", zap.String("clientId", string(cid)), zap.Error(err))
		}
	}
}

type cmdGetRoleRequest struct {
	projectID string
	roleID    string
	reply     chan<- TransportHandle
}

func (c cmdGetRoleRequest) apply(ctx context.Context, e *Engine) {
	occupants := e.rooms.Occupants(c.projectID, c.roleID)
	if len(occupants) == 0 {
		c.reply <- nil
		return
	}
	handle, _ := e.registry.Get(occupants[0])
	c.reply <- handle
}

// Engine is the Topology Engine (C6): the single-writer actor coordinating
// C2-C5 described in spec.md §4.4. One goroutine (Run) drains cmds; every
// other method enqueues a command, the Go equivalent of the source's actix
// Addr::do_send/send. Most return right away; GetRoleRequest also waits for
// the command's reply.
type Engine struct {
	cmds     chan command
	registry *ClientRegistry
	rooms    *RoomIndex
	external *ExternalIndex
	resolver *Resolver
	projects *store.ProjectStore

	states   map[ClientID]ClientState
	versions map[string]*atomic.Int64

	brokenCooldown time.Duration
}

// NewEngine constructs an Engine. brokenCooldown is the project-cleanup
// delay for Broken projects (spec.md §4.4, default 10 minutes).
func NewEngine(resolver *Resolver, projects *store.ProjectStore, brokenCooldown time.Duration) *Engine {
	return &Engine{
		cmds:           make(chan command, 256),
		registry:       NewClientRegistry(),
		rooms:          NewRoomIndex(),
		external:       NewExternalIndex(),
		resolver:       resolver,
		projects:       projects,
		states:         make(map[ClientID]ClientState),
		versions:       make(map[string]*atomic.Int64),
		brokenCooldown: brokenCooldown,
	}
}

// Run drains cmds until ctx is cancelled. Callers should run this in its own
// goroutine at process start, modeled on the teacher's per-room actor loop.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case cmd := <-e.cmds:
			start := time.Now()
			cmd.apply(ctx, e)
			metrics.MessageProcessingDuration.WithLabelValues(commandLabel(cmd)).Observe(time.Since(start).Seconds())
		case <-ctx.Done():
			return
		}
	}
}

// commandLabel names cmd for MessageProcessingDuration's event_type label.
func commandLabel(cmd command) string {
	switch cmd.(type) {
	case cmdAddClient:
		return "add_client"
	case cmdSetClientState:
		return "set_client_state"
	case cmdRemoveClient:
		return "remove_client"
	case cmdBrokenClient:
		return "broken_client"
	case cmdSendMessage:
		return "send_message"
	case cmdSendRoomState:
		return "send_room_state"
	case cmdNotifyUser:
		return "notify_user"
	case cmdGetRoleRequest:
		return "get_role_request"
	default:
		return "unknown"
	}
}

// AddClient registers id in C2 (spec.md §4.4: "State remains absent").
func (e *Engine) AddClient(id ClientID, handle TransportHandle) {
	e.cmds <- cmdAddClient{id: id, handle: handle}
}

// SetClientState installs a new ClientState for id, optionally updating its
// stored username (spec.md §4.4).
func (e *Engine) SetClientState(id ClientID, state ClientState, username string, hasUsername bool) {
	e.cmds <- cmdSetClientState{id: id, state: state, username: username, hasUsername: hasUsername}
}

// RemoveClient drops id from C2 and resets any placement (spec.md §4.4).
func (e *Engine) RemoveClient(id ClientID) {
	e.cmds <- cmdRemoveClient{id: id}
}

// BrokenClient marks id's current project Broken if it was Transient
// (spec.md §4.4). Idempotent: a project not currently Transient is untouched.
func (e *Engine) BrokenClient(id ClientID) {
	e.cmds <- cmdBrokenClient{id: id}
}

// SendMessage resolves addresses and fans content out to every unique
// recipient (spec.md §4.4). Best-effort: undeliverable recipients are
// logged, never retried, and never fail the whole send.
func (e *Engine) SendMessage(addresses []string, content json.RawMessage) {
	e.cmds <- cmdSendMessage{addresses: addresses, content: content}
}

// SendRoomState re-broadcasts project's current room state to its occupants
// (spec.md §4.4), e.g. after a C7 rename/role mutation.
func (e *Engine) SendRoomState(projectID string) {
	e.cmds <- cmdSendRoomState{projectID: projectID}
}

// NotifyUser sends frame to every live client currently logged in as
// username (spec.md §4.6's send_invite push). Best-effort, like SendMessage:
// a user with no live connections simply receives nothing.
func (e *Engine) NotifyUser(username string, frame []byte) {
	e.cmds <- cmdNotifyUser{username: username, frame: frame}
}

// GetRoleRequest returns the transport handle of project/role's first
// occupant (insertion order), or false if the role is unoccupied or the
// engine did not respond within the recommended window (spec.md §4.4, §5:
// "recommended >= 2s").
func (e *Engine) GetRoleRequest(ctx context.Context, projectID, roleID string) (TransportHandle, bool) {
	reply := make(chan TransportHandle, 1)
	select {
	case e.cmds <- cmdGetRoleRequest{projectID: projectID, roleID: roleID, reply: reply}:
	case <-ctx.Done():
		return nil, false
	}

	select {
	case handle := <-reply:
		return handle, handle != nil
	case <-time.After(2 * time.Second):
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// resetState is the internal reset_state(id) operation (spec.md §4.4):
// removes any prior placement before a new one is installed, or as part of
// RemoveClient.
func (e *Engine) resetState(ctx context.Context, id ClientID) {
	state, ok := e.states[id]
	if !ok {
		return
	}
	delete(e.states, id)

	switch {
	case state.Browser != nil:
		roleEmptied, projectEmptied := e.rooms.RemoveOccupant(state.Browser.ProjectID, state.Browser.RoleID, id)
		e.updateRoomMetrics(state.Browser.ProjectID)
		if projectEmptied {
			e.projectCleanup(ctx, state.Browser.ProjectID)
			return
		}
		if roleEmptied || e.rooms.HasProject(state.Browser.ProjectID) {
			e.broadcastRoomState(ctx, state.Browser.ProjectID)
		}
	case state.External != nil:
		e.external.Unbind(strings.ToLower(state.External.AppID), state.External.Address)
	}
}

// projectCleanup implements spec.md §4.4's "Project cleanup" dispatch on a
// fully-evacuated project's save_state.
func (e *Engine) projectCleanup(ctx context.Context, projectID string) {
	md, err := e.projects.FindOne(ctx, bson.M{"id": projectID})
	if err != nil {
		return
	}

	switch md.SaveState {
	case store.SaveStateTransient:
		if _, err := e.projects.FindOneAndDelete(ctx, bson.M{"id": projectID}); err != nil {
			logging.Warn(ctx, "failed to delete transient project", zap.String("projectId", projectID), zap.Error(err))
		}
	case store.SaveStateBroken:
		deleteAt := time.Now().Add(e.brokenCooldown)
		update := bson.M{"$set": bson.M{"deleteAt": deleteAt}}
		if err := e.projects.UpdateOne(ctx, bson.M{"id": projectID}, update, false); err != nil {
			logging.Warn(ctx, "failed to schedule project deletion", zap.String("projectId", projectID), zap.Error(err))
		}
	default:
		// Saved/Created: leave alone.
	}
}

// clearDeleteAt unsets a project's pending scheduled-deletion field on
// resurrection (spec.md §5's cancellation rule: "unsetting the field on
// resurrection, e.g. a new occupant joins"), undoing projectCleanup's
// SaveStateBroken branch. A no-op, cheap $unset when the field was never
// set, so it is safe to call unconditionally on every new Browser occupant.
func (e *Engine) clearDeleteAt(ctx context.Context, projectID string) {
	update := bson.M{"$unset": bson.M{"deleteAt": ""}}
	if err := e.projects.UpdateOne(ctx, bson.M{"id": projectID}, update, false); err != nil {
		logging.Warn(ctx, "failed to clear scheduled deletion", zap.String("projectId", projectID), zap.Error(err))
	}
}

// updateRoomMetrics refreshes ActiveRooms/RoomParticipants after an
// occupancy change to projectID. Called unconditionally after every
// AddOccupant/RemoveOccupant so the gauges never drift from C3's actual
// occupancy table.
func (e *Engine) updateRoomMetrics(projectID string) {
	metrics.ActiveRooms.Set(float64(e.rooms.ProjectCount()))
	if n := e.rooms.OccupantCount(projectID); n > 0 {
		metrics.RoomParticipants.WithLabelValues(projectID).Set(float64(n))
	} else {
		metrics.RoomParticipants.DeleteLabelValues(projectID)
	}
}

// nextVersion returns a strictly-increasing counter for project, per
// spec.md §4.4's version requirement (testable property 4). Kept as an
// atomic counter per project rather than Unix seconds (the original
// implementation's choice, explicitly one option among many per §4.4) to
// avoid collisions between two broadcasts within the same wall-clock second.
func (e *Engine) nextVersion(projectID string) uint64 {
	counter, ok := e.versions[projectID]
	if !ok {
		counter = &atomic.Int64{}
		e.versions[projectID] = counter
	}
	return uint64(counter.Add(1))
}

// broadcastRoomState computes and sends a room-roles frame to every current
// occupant of project (spec.md §4.4's SendRoomState).
func (e *Engine) broadcastRoomState(ctx context.Context, projectID string) {
	md, err := e.projects.FindOne(ctx, bson.M{"id": projectID})
	if err != nil {
		return
	}

	roles := make(map[string]RoleState, len(md.Roles))
	for roleID, role := range md.Roles {
		occupantIDs := e.rooms.Occupants(projectID, roleID)
		occupants := make([]OccupantState, 0, len(occupantIDs))
		for _, cid := range occupantIDs {
			occupants = append(occupants, OccupantState{ID: cid, Name: e.registry.Username(cid)})
		}
		roles[roleID] = RoleState{Name: role.Name, Occupants: occupants}
	}

	msg := RoomState{
		Type:          "room-roles",
		ID:            md.ID,
		Owner:         md.Owner,
		Name:          md.Name,
		Roles:         roles,
		Collaborators: md.Collaborators,
		Version:       e.nextVersion(projectID),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logging.Error(ctx, "failed to marshal room state", zap.Error(err))
		return
	}

	for _, roleID := range e.rooms.Roles(projectID) {
		for _, cid := range e.rooms.Occupants(projectID, roleID) {
			if handle, ok := e.registry.Get(cid); ok {
				if err := handle.Send(data); err != nil {
					logging.Warn(ctx, "failed to send room state", zap.String("clientId", string(cid)), zap.Error(err))
				}
			}
		}
	}

	e.appendNetworkTrace(ctx, projectID)
}

// appendNetworkTrace records a debugging trace entry on every room-state
// broadcast, per SPEC_FULL.md §15's supplemented NetworkTraceMetadata
// feature. Best-effort: a failure here never blocks or fails the broadcast.
func (e *Engine) appendNetworkTrace(ctx context.Context, projectID string) {
	trace := store.NetworkTraceMetadata{
		ID:        uuid.NewString(),
		StartTime: time.Now(),
	}
	update := bson.M{"$push": bson.M{"networkTraces": trace}}
	if err := e.projects.UpdateOne(ctx, bson.M{"id": projectID}, update, false); err != nil {
		logging.Warn(ctx, "failed to append network trace", zap.String("projectId", projectID), zap.Error(err))
	}
}
