package network

// RoomIndex is C3: the in-memory occupancy table project_id -> role_id ->
// [client_id] (spec.md §4.3). Owned exclusively by the Topology Engine's
// single-writer goroutine.
//
// Occupant order within a role is insertion order, not re-sorted on removal:
// GetRoleRequest (§4.4) picks "the first occupant (arbitrary but
// deterministic choice: insertion order)", so RemoveOccupant must not
// reorder the surviving entries (no swap-remove, unlike the original Rust's
// Vec::swap_remove).
type RoomIndex struct {
	projects map[string]map[string][]ClientID
}

// NewRoomIndex returns an empty index.
func NewRoomIndex() *RoomIndex {
	return &RoomIndex{projects: make(map[string]map[string][]ClientID)}
}

// AddOccupant creates the project/role entry lazily and appends c (spec.md
// §4.3's "add_occupant creates missing project/role entries lazily").
func (idx *RoomIndex) AddOccupant(projectID, roleID string, c ClientID) {
	roles, ok := idx.projects[projectID]
	if !ok {
		roles = make(map[string][]ClientID)
		idx.projects[projectID] = roles
	}
	roles[roleID] = append(roles[roleID], c)
}

// RemoveOccupant drops c from project_id/role_id. roleEmptied reports
// whether the role's occupant list became empty (and was pruned);
// projectEmptied additionally reports whether that was the project's last
// role, in which case the whole project entry was pruned too (invariant 3).
func (idx *RoomIndex) RemoveOccupant(projectID, roleID string, c ClientID) (roleEmptied, projectEmptied bool) {
	roles, ok := idx.projects[projectID]
	if !ok {
		return false, false
	}

	occupants, ok := roles[roleID]
	if !ok {
		return false, false
	}

	filtered := occupants[:0]
	for _, id := range occupants {
		if id != c {
			filtered = append(filtered, id)
		}
	}

	if len(filtered) > 0 {
		roles[roleID] = filtered
		return false, false
	}

	delete(roles, roleID)
	if len(roles) == 0 {
		delete(idx.projects, projectID)
		return true, true
	}
	return true, false
}

// Occupants returns project_id/role_id's current occupants in insertion order.
func (idx *RoomIndex) Occupants(projectID, roleID string) []ClientID {
	roles, ok := idx.projects[projectID]
	if !ok {
		return nil
	}
	return roles[roleID]
}

// Roles returns the role ids currently occupied within a project.
func (idx *RoomIndex) Roles(projectID string) []string {
	roles, ok := idx.projects[projectID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(roles))
	for r := range roles {
		out = append(out, r)
	}
	return out
}

// HasProject reports whether the project has any occupants at all.
func (idx *RoomIndex) HasProject(projectID string) bool {
	_, ok := idx.projects[projectID]
	return ok
}

// ProjectCount returns the number of projects currently holding at least one
// occupant, fed to the ActiveRooms gauge.
func (idx *RoomIndex) ProjectCount() int {
	return len(idx.projects)
}

// OccupantCount returns a project's total occupants across every role,
// fed to the RoomParticipants gauge.
func (idx *RoomIndex) OccupantCount(projectID string) int {
	roles, ok := idx.projects[projectID]
	if !ok {
		return 0
	}
	n := 0
	for _, occupants := range roles {
		n += len(occupants)
	}
	return n
}

// DropProject removes the project's entire occupancy entry, used during
// project cleanup regardless of how it was reached.
func (idx *RoomIndex) DropProject(projectID string) {
	delete(idx.projects, projectID)
}
