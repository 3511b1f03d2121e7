// Package network implements the Address Resolver (C1), Client Registry
// (C2), Room Index (C3), External Index (C4) and Topology Engine (C6)
// described in spec.md §4.1-§4.4, plus the WebSocket transport that feeds
// them, adapted from the teacher's hub/room/client actor shape
// (internal/v1/session/{hub,room,client}.go) with JSON frames in place of
// the teacher's protobuf WebSocketMessage.
package network

// ClientID is an opaque, transport-issued identifier. Spec.md §3: "begins
// with _".
type ClientID string

// Valid reports whether id satisfies spec.md §7's InvalidClientId precondition.
func (id ClientID) Valid() bool {
	return len(id) > 0 && id[0] == '_'
}

// ClientState is the tagged-enum sum type from spec.md §3. External JSON
// form follows DESIGN NOTES' "tagged enums with { "Browser": {...} }"
// convention: at most one of Browser/External is non-nil; both nil means
// the Absent state (connected but unplaced).
type ClientState struct {
	Browser  *BrowserState  `json:"Browser,omitempty"`
	External *ExternalState `json:"External,omitempty"`
}

// BrowserState places a client in a specific project role.
type BrowserState struct {
	ProjectID string `json:"projectId"`
	RoleID    string `json:"roleId"`
}

// ExternalState places a client under an app-scoped flat address.
type ExternalState struct {
	Address string `json:"address"`
	AppID   string `json:"appId"`
}

// IsAbsent reports the third member of the sum type: connected, unplaced.
func (s ClientState) IsAbsent() bool {
	return s.Browser == nil && s.External == nil
}
