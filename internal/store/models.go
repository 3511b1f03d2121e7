// Package store implements the Project Store Gateway (C5) and Blob Store
// (spec.md §4.5, §6): a MongoDB-backed project-metadata collection and an
// S3-backed content blob store, both circuit-broken with sony/gobreaker the
// same way internal/bus wraps Redis.
package store

import "time"

// SaveState mirrors spec.md §3's SaveState transitions. Stored as the
// lowercase string form (DESIGN NOTES bug #3: canonical casing is lowercase).
type SaveState string

const (
	SaveStateCreated   SaveState = "created"
	SaveStateTransient SaveState = "transient"
	SaveStateBroken    SaveState = "broken"
	SaveStateSaved     SaveState = "saved"
)

// PublishState is ordered Private < ApprovalDenied < PendingApproval < Public.
type PublishState string

const (
	PublishStatePrivate         PublishState = "private"
	PublishStateApprovalDenied  PublishState = "approval_denied"
	PublishStatePendingApproval PublishState = "pending_approval"
	PublishStatePublic          PublishState = "public"
)

// RoleMetadata is one entry of ProjectMetadata.Roles.
type RoleMetadata struct {
	Name     string    `bson:"name" json:"name"`
	CodeKey  string    `bson:"codeKey" json:"codeKey"`
	MediaKey string    `bson:"mediaKey" json:"mediaKey"`
	Updated  time.Time `bson:"updated" json:"updated"`
}

// NetworkTraceMetadata records when a project's occupancy changed, per
// SPEC_FULL.md §15 (supplemented from original_source's NetworkTraceMetadata).
type NetworkTraceMetadata struct {
	ID        string     `bson:"id" json:"id"`
	StartTime time.Time  `bson:"startTime" json:"startTime"`
	EndTime   *time.Time `bson:"endTime,omitempty" json:"endTime,omitempty"`
}

// ProjectMetadata is the persisted document shape for a project (spec.md §3).
type ProjectMetadata struct {
	ID             string                  `bson:"id" json:"id"`
	Owner          string                  `bson:"owner" json:"owner"`
	Name           string                  `bson:"name" json:"name"`
	Updated        time.Time               `bson:"updated" json:"updated"`
	OriginTime     time.Time               `bson:"originTime" json:"originTime"`
	State          PublishState            `bson:"state" json:"state"`
	SaveState      SaveState               `bson:"saveState" json:"saveState"`
	Collaborators  []string                `bson:"collaborators" json:"collaborators"`
	Roles          map[string]RoleMetadata `bson:"roles" json:"roles"`
	NetworkTraces  []NetworkTraceMetadata  `bson:"networkTraces" json:"networkTraces"`
	DeleteAt       *time.Time              `bson:"deleteAt,omitempty" json:"deleteAt,omitempty"`
}

// InvitationState is the CollaborationInvite state machine (spec.md §4.6).
// Canonical casing is lowercase (DESIGN NOTES bug #3).
type InvitationState string

const (
	InvitationPending  InvitationState = "pending"
	InvitationAccepted InvitationState = "accepted"
	InvitationRejected InvitationState = "rejected"
)

// CollaborationInvite is the persisted document shape for C8 (spec.md §6).
type CollaborationInvite struct {
	ID        string          `bson:"id" json:"id"`
	Sender    string          `bson:"sender" json:"sender"`
	Receiver  string          `bson:"receiver" json:"receiver"`
	ProjectID string          `bson:"projectId" json:"projectId"`
	State     InvitationState `bson:"state" json:"state"`
	CreatedAt time.Time       `bson:"createdAt" json:"createdAt"`
}
