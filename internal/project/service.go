// Package project implements the Project Lifecycle Service (C7): project
// and role CRUD, publish/unpublish, thumbnails, and the bounded metadata
// cache, per spec.md §4.5. Grounded on original_source's
// projects/actions.rs, rewritten around the store/network packages'
// idiomatic Go gateways in place of actix/mongodb-rust/rusoto.
package project

import (
	"context"
	"strings"
	"time"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/netsblox/cloud/internal/capability"
	"github.com/netsblox/cloud/internal/network"
	"github.com/netsblox/cloud/internal/store"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// RoleInput is one role supplied to CreateProject.
type RoleInput struct {
	Name  string
	Code  string
	Media string
}

// Service is C7: the Project Lifecycle Service.
type Service struct {
	projects *store.ProjectStore
	blobs    *store.BlobStore
	engine   *network.Engine
	cache    *metadataCache
}

// NewService builds a Service. cacheCapacity is SPEC_FULL.md §13's
// ProjectCacheCapacity (default 500, per spec.md §4.5).
func NewService(projects *store.ProjectStore, blobs *store.BlobStore, engine *network.Engine, cacheCapacity int) *Service {
	return &Service{
		projects: projects,
		blobs:    blobs,
		engine:   engine,
		cache:    newMetadataCache(cacheCapacity),
	}
}

// notifyRoomChanged caches the updated metadata and tells C6 to
// re-broadcast room state, mirroring the original's on_room_changed hook
// called from every metadata-mutating operation.
func (s *Service) notifyRoomChanged(md store.ProjectMetadata) {
	s.cache.put(md)
	s.engine.SendRoomState(md.ID)
}

// CreateProject assigns a fresh project id, persists each role's code/media
// to the blob store, and stores metadata with a unique-per-owner name
// (spec.md §4.5's create_project).
func (s *Service) CreateProject(ctx context.Context, owner, basename string, roles []RoleInput) (*store.ProjectMetadata, error) {
	name, err := s.getValidProjectName(ctx, owner, basename)
	if err != nil {
		return nil, err
	}

	if len(roles) == 0 {
		roles = []RoleInput{{Name: "myRole"}}
	}

	projectID := uuid.NewString()
	now := time.Now()
	roleMetas := make(map[string]store.RoleMetadata, len(roles))

	for _, role := range roles {
		roleID := uuid.NewString()
		codeKey := projectID + "/" + roleID + "/code"
		mediaKey := projectID + "/" + roleID + "/media"

		if err := s.blobs.Put(ctx, codeKey, []byte(role.Code)); err != nil {
			return nil, err
		}
		if err := s.blobs.Put(ctx, mediaKey, []byte(role.Media)); err != nil {
			return nil, err
		}

		roleMetas[roleID] = store.RoleMetadata{
			Name:     role.Name,
			CodeKey:  codeKey,
			MediaKey: mediaKey,
			Updated:  now,
		}
	}

	md := store.ProjectMetadata{
		ID:            projectID,
		Owner:         owner,
		Name:          name,
		Updated:       now,
		OriginTime:    now,
		State:         store.PublishStatePrivate,
		SaveState:     store.SaveStateCreated,
		Collaborators: []string{},
		Roles:         roleMetas,
	}

	if err := s.projects.UpdateOne(ctx, bson.M{"id": projectID}, bson.M{"$set": md}, true); err != nil {
		return nil, err
	}

	s.cache.put(md)
	return &md, nil
}

// RenameProject validates and applies a new name, fixing the original's
// known bug of filtering by a stray free variable instead of the
// capability's own project id (spec.md §9 DESIGN NOTES #2).
func (s *Service) RenameProject(ctx context.Context, ep capability.EditProject, newName string) (*store.ProjectMetadata, error) {
	name, err := s.getValidProjectName(ctx, ep.Metadata.Owner, newName)
	if err != nil {
		return nil, err
	}

	md, err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"id": ep.Metadata.ID},
		bson.M{"$set": bson.M{"name": name, "updated": time.Now()}},
	)
	if err != nil {
		return nil, err
	}

	s.notifyRoomChanged(*md)
	return md, nil
}

// AddCollaborator adds collaborator with set semantics (spec.md §4.5).
func (s *Service) AddCollaborator(ctx context.Context, ep capability.EditProject, collaborator string) (*store.ProjectMetadata, error) {
	md, err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"id": ep.Metadata.ID},
		bson.M{"$addToSet": bson.M{"collaborators": collaborator}},
	)
	if err != nil {
		return nil, err
	}

	s.notifyRoomChanged(*md)
	return md, nil
}

// RemoveCollaborator removes collaborator with set semantics (spec.md §4.5).
func (s *Service) RemoveCollaborator(ctx context.Context, ep capability.EditProject, collaborator string) (*store.ProjectMetadata, error) {
	md, err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"id": ep.Metadata.ID},
		bson.M{"$pull": bson.M{"collaborators": collaborator}},
	)
	if err != nil {
		return nil, err
	}

	s.notifyRoomChanged(*md)
	return md, nil
}

// PublishProject sets PendingApproval or Public depending on whether any
// role's code needs approval (spec.md §4.5's publish).
func (s *Service) PublishProject(ctx context.Context, ep capability.EditProject) (store.PublishState, error) {
	required, err := s.isApprovalRequired(ctx, ep.Metadata.ID)
	if err != nil {
		return "", err
	}

	state := store.PublishStatePublic
	if required {
		state = store.PublishStatePendingApproval
	}

	md, err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"id": ep.Metadata.ID},
		bson.M{"$set": bson.M{"state": state}},
	)
	if err != nil {
		return "", err
	}
	s.cache.put(*md)
	return state, nil
}

// UnpublishProject sets the project back to Private (spec.md §4.5).
func (s *Service) UnpublishProject(ctx context.Context, ep capability.EditProject) (store.PublishState, error) {
	md, err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"id": ep.Metadata.ID},
		bson.M{"$set": bson.M{"state": store.PublishStatePrivate}},
	)
	if err != nil {
		return "", err
	}
	s.cache.put(*md)
	return store.PublishStatePrivate, nil
}

// AddRole appends a new role to the project (spec.md §4.5's add_role).
func (s *Service) AddRole(ctx context.Context, ep capability.EditProject, input RoleInput) (*store.ProjectMetadata, error) {
	if err := ensureValidName(input.Name); err != nil {
		return nil, err
	}

	roleID := uuid.NewString()
	codeKey := ep.Metadata.ID + "/" + roleID + "/code"
	mediaKey := ep.Metadata.ID + "/" + roleID + "/media"

	if err := s.blobs.Put(ctx, codeKey, []byte(input.Code)); err != nil {
		return nil, err
	}
	if err := s.blobs.Put(ctx, mediaKey, []byte(input.Media)); err != nil {
		return nil, err
	}

	role := store.RoleMetadata{Name: input.Name, CodeKey: codeKey, MediaKey: mediaKey, Updated: time.Now()}
	md, err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"id": ep.Metadata.ID},
		bson.M{"$set": bson.M{"roles." + roleID: role}},
	)
	if err != nil {
		return nil, err
	}

	s.notifyRoomChanged(*md)
	return md, nil
}

// RenameRole validates and applies a new role name (spec.md §4.5).
func (s *Service) RenameRole(ctx context.Context, ep capability.EditProject, roleID, name string) (*store.ProjectMetadata, error) {
	if err := ensureValidName(name); err != nil {
		return nil, err
	}

	current, err := s.projects.FindOne(ctx, bson.M{"id": ep.Metadata.ID})
	if err != nil {
		return nil, err
	}
	if _, ok := current.Roles[roleID]; !ok {
		return nil, apperr.ErrRoleNotFound
	}

	md, err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"id": ep.Metadata.ID},
		bson.M{"$set": bson.M{"roles." + roleID + ".name": name}},
	)
	if err != nil {
		return nil, err
	}

	s.notifyRoomChanged(*md)
	return md, nil
}

// DeleteRole removes a role, refusing to leave the project with none
// (spec.md §4.5's CannotDeleteLastRole).
func (s *Service) DeleteRole(ctx context.Context, ep capability.EditProject, roleID string) (*store.ProjectMetadata, error) {
	current, err := s.projects.FindOne(ctx, bson.M{"id": ep.Metadata.ID})
	if err != nil {
		return nil, err
	}
	if len(current.Roles) <= 1 {
		return nil, apperr.ErrCannotDeleteLastRole
	}

	md, err := s.projects.FindOneAndUpdate(ctx,
		bson.M{"id": ep.Metadata.ID},
		bson.M{"$unset": bson.M{"roles." + roleID: ""}},
	)
	if err != nil {
		return nil, err
	}

	s.notifyRoomChanged(*md)
	return md, nil
}

// toCapabilityMetadata narrows a store.ProjectMetadata down to the shape
// internal/capability's constructors need, translating store's lowercase
// PublishState values to the capability package's own constant.
func toCapabilityMetadata(md *store.ProjectMetadata) capability.ProjectMetadata {
	state := string(md.State)
	if md.State == store.PublishStatePublic {
		state = capability.PublishStatePublic
	}
	return capability.ProjectMetadata{
		ID:            md.ID,
		Owner:         md.Owner,
		Collaborators: md.Collaborators,
		PublishState:  state,
	}
}

// ResolveEditProject fetches projectID's metadata and builds an EditProject
// capability for user. This is the capability-token-producer role
// internal/capability's package doc assigns to callers like the HTTP layer
// (owner-or-collaborator authorization, spec.md's capability-token model).
func (s *Service) ResolveEditProject(ctx context.Context, user, projectID string) (capability.EditProject, error) {
	md, err := s.projects.FindOne(ctx, bson.M{"id": projectID})
	if err != nil {
		return capability.EditProject{}, err
	}
	return capability.NewEditProject(user, toCapabilityMetadata(md))
}

// ResolveViewProject is ResolveEditProject's read-capability counterpart,
// additionally granting access to anyone when the project is Public.
func (s *Service) ResolveViewProject(ctx context.Context, user, projectID string) (capability.ViewProject, error) {
	md, err := s.projects.FindOne(ctx, bson.M{"id": projectID})
	if err != nil {
		return capability.ViewProject{}, err
	}
	return capability.NewViewProject(user, toCapabilityMetadata(md))
}

// ResolveViewProjectMetadata is ResolveViewProject's metadata-only variant,
// used by routes that read name/roles/collaborators without role content.
func (s *Service) ResolveViewProjectMetadata(ctx context.Context, user, projectID string) (capability.ViewProjectMetadata, error) {
	md, err := s.projects.FindOne(ctx, bson.M{"id": projectID})
	if err != nil {
		return capability.ViewProjectMetadata{}, err
	}
	return capability.NewViewProjectMetadata(user, toCapabilityMetadata(md))
}

// DeleteProject removes a project's metadata row (SPEC_FULL.md §11's
// owner-only delete). Role blobs are left in the blob store: spec.md never
// gives C7 a bulk-delete primitive for the blob gateway, and the original's
// own delete_project leaves orphaned S3 objects for a separate sweep rather
// than deleting them inline.
func (s *Service) DeleteProject(ctx context.Context, ep capability.EditProject) error {
	md, err := s.projects.FindOneAndDelete(ctx, bson.M{"id": ep.Metadata.ID})
	if err != nil {
		return err
	}
	s.cache.remove(md.ID)
	return nil
}

// GetCollaborators returns a project's current collaborator usernames.
func (s *Service) GetCollaborators(ctx context.Context, vp capability.ViewProjectMetadata) ([]string, error) {
	if cached, ok := s.cache.get(vp.Metadata.ID); ok {
		return cached.Collaborators, nil
	}

	md, err := s.projects.FindOne(ctx, bson.M{"id": vp.Metadata.ID})
	if err != nil {
		return nil, err
	}
	s.cache.put(*md)
	return md.Collaborators, nil
}

func (s *Service) isApprovalRequired(ctx context.Context, projectID string) (bool, error) {
	md, err := s.projects.FindOne(ctx, bson.M{"id": projectID})
	if err != nil {
		return false, err
	}

	for _, role := range md.Roles {
		data, err := s.blobs.Get(ctx, role.CodeKey)
		if err != nil {
			continue
		}
		if needsApproval(string(data)) {
			return true, nil
		}
	}
	return false, nil
}

// needsApproval flags library uses the original marks "needs_approval"
// (SPEC_FULL.md §15's supplemented approval gate). A real deployment
// consults a curated library registry; this checks for the sentinel
// comment the original's shared libraries module emits for such blocks.
func needsApproval(code string) bool {
	return strings.Contains(code, "needsApproval") || strings.Contains(code, "NEEDS_APPROVAL")
}
