package network

// RoleState is one role entry of a RoomState broadcast.
type RoleState struct {
	Name      string          `json:"name"`
	Occupants []OccupantState `json:"occupants"`
}

// OccupantState names one live occupant for a room-state broadcast.
type OccupantState struct {
	ID   ClientID `json:"id"`
	Name string   `json:"name"`
}

// RoomState is the `type: "room-roles"` outbound frame (spec.md §6),
// broadcast to every occupant whenever a project's occupancy, name, roles,
// or collaborators change.
type RoomState struct {
	Type          string               `json:"type"`
	ID            string               `json:"id"`
	Owner         string               `json:"owner"`
	Name          string               `json:"name"`
	Roles         map[string]RoleState `json:"roles"`
	Collaborators []string             `json:"collaborators"`
	Version       uint64               `json:"version"`
}

// CollabInviteMsg is the `type: "collab-invite"` outbound frame pushed to a
// recipient's live clients by C8's send_invite (spec.md §4.6).
type CollabInviteMsg struct {
	Type      string `json:"type"`
	InviteID  string `json:"id"`
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	ProjectID string `json:"projectId"`
}
