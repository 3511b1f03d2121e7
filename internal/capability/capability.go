// Package capability models the proof-carrying authorization tokens that
// C1/C6/C7/C8 take as arguments instead of deciding policy themselves.
//
// The core never evaluates authorization policy (spec §1: "Authorization
// policy evaluation... viewed as a capability-token producer"). Construction
// here is deliberately minimal: ownership or collaborator membership for
// EditProject, public-or-owner for ViewProject. A full policy engine (group
// roles, admin overrides, service-host authorization) is out of scope; see
// DESIGN.md Open Question O1 for why this line was drawn here.
package capability

import "fmt"

// ProjectMetadata is the subset of the project store's metadata shape that
// capability construction needs to check ownership/collaborator/publish
// state. internal/store.ProjectMetadata satisfies this via its own fields;
// kept narrow here so internal/capability has no dependency on internal/store.
type ProjectMetadata struct {
	ID            string
	Owner         string
	Collaborators []string
	PublishState  string
}

const PublishStatePublic = "Public"

// Forbidden is returned by every constructor below when the requesting user
// does not hold the permission. It maps to the spec's Permission/Forbidden
// error kind (§7) and is never retried or silently swallowed by callers.
type Forbidden struct {
	Op   string
	User string
}

func (e *Forbidden) Error() string {
	return fmt.Sprintf("%s: %q is not permitted", e.Op, e.User)
}

func isCollaborator(md ProjectMetadata, user string) bool {
	for _, c := range md.Collaborators {
		if c == user {
			return true
		}
	}
	return false
}

// EditProject attests that user may mutate a project: rename, add/remove
// roles, add/remove collaborators, publish/unpublish.
type EditProject struct {
	Metadata ProjectMetadata
}

// NewEditProject checks ownership or collaborator membership.
func NewEditProject(user string, md ProjectMetadata) (EditProject, error) {
	if md.Owner == user || isCollaborator(md, user) {
		return EditProject{Metadata: md}, nil
	}
	return EditProject{}, &Forbidden{Op: "EditProject", User: user}
}

// ViewProject attests that user may read full project content (code/media),
// not just its metadata.
type ViewProject struct {
	Metadata ProjectMetadata
}

// NewViewProject allows the owner, any collaborator, or anyone when the
// project is Public.
func NewViewProject(user string, md ProjectMetadata) (ViewProject, error) {
	if md.Owner == user || isCollaborator(md, user) || md.PublishState == PublishStatePublic {
		return ViewProject{Metadata: md}, nil
	}
	return ViewProject{}, &Forbidden{Op: "ViewProject", User: user}
}

// ViewProjectMetadata attests that user may read a project's metadata
// (name, roles, collaborators) without necessarily reading role code/media.
// Same rule as ViewProject: the core does not distinguish them further.
type ViewProjectMetadata struct {
	Metadata ProjectMetadata
}

func NewViewProjectMetadata(user string, md ProjectMetadata) (ViewProjectMetadata, error) {
	if md.Owner == user || isCollaborator(md, user) || md.PublishState == PublishStatePublic {
		return ViewProjectMetadata{Metadata: md}, nil
	}
	return ViewProjectMetadata{}, &Forbidden{Op: "ViewProjectMetadata", User: user}
}

// ViewUser attests that the caller may read/act as a given username: either
// the user themself, or (group/admin policy, deliberately not modeled here -
// see DESIGN.md O1) nobody else.
type ViewUser struct {
	Username string
}

func NewViewUser(caller, target string) (ViewUser, error) {
	if caller == target {
		return ViewUser{Username: target}, nil
	}
	return ViewUser{}, &Forbidden{Op: "ViewUser", User: caller}
}

// ViewGroup is a passthrough capability: groups themselves are out of scope
// (spec §1), but C7/C1 read GroupId as an opaque input from project metadata,
// so a minimal capability shape lets them compile against something real
// instead of `any`. See SPEC_FULL.md §15.
type ViewGroup struct {
	GroupID string
}

func NewViewGroup(groupID string) ViewGroup {
	return ViewGroup{GroupID: groupID}
}

// AuthorizedServiceHost is a similar passthrough capability for service-host
// authorization (SPEC_FULL.md §15); no service-host CRUD surface is added.
type AuthorizedServiceHost struct {
	URL string
}

func NewAuthorizedServiceHost(url string) AuthorizedServiceHost {
	return AuthorizedServiceHost{URL: url}
}
