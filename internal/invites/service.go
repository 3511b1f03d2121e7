// Package invites implements the Collaboration Invites service (C8):
// issuing, listing, and responding to invitations that mutate a project's
// collaborators set (spec.md §4.6). Grounded on original_source's
// collaboration_invites.rs, rewritten around internal/store's gateways and
// internal/network's command-passing Engine in place of actix/mongodb-rust.
package invites

import (
	"context"
	"encoding/json"
	"time"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/netsblox/cloud/internal/capability"
	"github.com/netsblox/cloud/internal/network"
	"github.com/netsblox/cloud/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// Service is C8: the Collaboration Invites service.
type Service struct {
	invites  *store.InviteStore
	projects *store.ProjectStore
	engine   *network.Engine
}

// NewService builds a Service.
func NewService(invites *store.InviteStore, projects *store.ProjectStore, engine *network.Engine) *Service {
	return &Service{invites: invites, projects: projects, engine: engine}
}

// SendInvite issues a Pending invite for recipient on ep's project,
// idempotent on the (sender, recipient, project) triple (spec.md §4.6).
// A pre-existing Pending invite for the same triple yields ErrInviteAlreadyExists
// rather than a duplicate row; the caller must send again only once the
// first has been responded to.
func (s *Service) SendInvite(ctx context.Context, ep capability.EditProject, sender, recipient string) (*store.CollaborationInvite, error) {
	invite := store.CollaborationInvite{
		ID:        uuid.NewString(),
		Sender:    sender,
		Receiver:  recipient,
		ProjectID: ep.Metadata.ID,
		State:     store.InvitationPending,
		CreatedAt: time.Now(),
	}

	alreadyExisted, err := s.invites.UpsertPending(ctx, invite)
	if err != nil {
		return nil, err
	}
	if alreadyExisted {
		return nil, apperr.ErrInviteAlreadyExists
	}

	s.notifyRecipient(invite)
	return &invite, nil
}

// notifyRecipient pushes a collab-invite frame to every live client logged
// in as the invite's recipient (spec.md §4.6, scenario S6). Best-effort: a
// recipient with no live connection simply receives nothing now and sees
// the invite the next time list_invites is called.
func (s *Service) notifyRecipient(invite store.CollaborationInvite) {
	frame, err := json.Marshal(network.CollabInviteMsg{
		Type:      "collab-invite",
		InviteID:  invite.ID,
		Sender:    invite.Sender,
		Receiver:  invite.Receiver,
		ProjectID: invite.ProjectID,
	})
	if err != nil {
		return
	}
	s.engine.NotifyUser(invite.Receiver, frame)
}

// ListInvites lists every invite addressed to a recipient (spec.md §4.6's
// list_invites). vu attests the caller may act as recipient.
func (s *Service) ListInvites(ctx context.Context, vu capability.ViewUser) ([]store.CollaborationInvite, error) {
	return s.invites.Find(ctx, bson.M{"receiver": vu.Username})
}

// Respond implements spec.md §4.6's respond: on Accepted, atomically adds
// the recipient to the project's collaborators and asks C6 to rebroadcast
// room state; the invite row is deleted in either outcome.
func (s *Service) Respond(ctx context.Context, vu capability.ViewUser, inviteID string, accepted bool) error {
	invite, err := s.invites.FindOne(ctx, bson.M{"id": inviteID})
	if err != nil {
		return err
	}
	if invite.Receiver != vu.Username {
		return &capability.Forbidden{Op: "RespondToInvite", User: vu.Username}
	}

	if err := s.invites.DeleteOne(ctx, bson.M{"id": inviteID}); err != nil {
		return err
	}

	if !accepted {
		return nil
	}

	update := bson.M{"$addToSet": bson.M{"collaborators": invite.Receiver}}
	if _, err := s.projects.FindOneAndUpdate(ctx, bson.M{"id": invite.ProjectID}, update); err != nil {
		return err
	}
	s.engine.SendRoomState(invite.ProjectID)
	return nil
}
