package project

import (
	"context"
	"sync"
	"time"

	"github.com/netsblox/cloud/internal/apperr"
	"github.com/netsblox/cloud/internal/capability"
	"github.com/netsblox/cloud/internal/store"
	"go.mongodb.org/mongo-driver/bson"
)

// RoleData is the code/media payload for a single role, the join of its
// store.RoleMetadata with blob content (spec.md §4.5's get_project /
// get_latest return shape).
type RoleData struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Media string `json:"media"`
}

// Project is the full project view returned by get_project/get_latest:
// store.ProjectMetadata joined with each role's blob content.
type Project struct {
	ID            string              `json:"id"`
	Owner         string              `json:"owner"`
	Name          string              `json:"name"`
	Updated       time.Time           `json:"updated"`
	OriginTime    time.Time           `json:"originTime"`
	State         store.PublishState  `json:"state"`
	SaveState     store.SaveState     `json:"saveState"`
	Collaborators []string            `json:"collaborators"`
	Roles         map[string]RoleData `json:"roles"`
}

// GetProject joins metadata with blob fetches for each role, in parallel
// (spec.md §4.5's get_project).
func (s *Service) GetProject(ctx context.Context, vp capability.ViewProjectMetadata) (*Project, error) {
	md, err := s.projects.FindOne(ctx, bson.M{"id": vp.Metadata.ID})
	if err != nil {
		return nil, err
	}

	roles := s.fetchRolesParallel(ctx, md.Roles)
	return s.toProject(md, roles), nil
}

// GetLatestProject asks C6's GetRoleRequest for each role's first occupant
// and returns each role's last saved blob; unsaved code held by a live
// occupant is not fetched.
func (s *Service) GetLatestProject(ctx context.Context, vp capability.ViewProjectMetadata) (*Project, error) {
	md, err := s.projects.FindOne(ctx, bson.M{"id": vp.Metadata.ID})
	if err != nil {
		return nil, err
	}

	roles := make(map[string]RoleData, len(md.Roles))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for roleID, roleMD := range md.Roles {
		wg.Add(1)
		go func(roleID string, roleMD store.RoleMetadata) {
			defer wg.Done()
			data := s.fetchRoleData(ctx, md.ID, roleID, roleMD)
			mu.Lock()
			roles[roleID] = data
			mu.Unlock()
		}(roleID, roleMD)
	}
	wg.Wait()

	return s.toProject(md, roles), nil
}

// fetchRoleData looks up roleID's first occupant via GetRoleRequest and then
// serves the last saved blob whether or not an occupant is live. The
// transport handle is send-only, so no code is pulled from the occupant.
func (s *Service) fetchRoleData(ctx context.Context, projectID, roleID string, roleMD store.RoleMetadata) RoleData {
	_, _ = s.engine.GetRoleRequest(ctx, projectID, roleID)
	return s.fetchRole(ctx, roleMD)
}

func (s *Service) fetchRolesParallel(ctx context.Context, roleMetas map[string]store.RoleMetadata) map[string]RoleData {
	roles := make(map[string]RoleData, len(roleMetas))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for roleID, roleMD := range roleMetas {
		wg.Add(1)
		go func(roleID string, roleMD store.RoleMetadata) {
			defer wg.Done()
			data := s.fetchRole(ctx, roleMD)
			mu.Lock()
			roles[roleID] = data
			mu.Unlock()
		}(roleID, roleMD)
	}
	wg.Wait()
	return roles
}

func (s *Service) fetchRole(ctx context.Context, roleMD store.RoleMetadata) RoleData {
	code, codeErr := s.blobs.Get(ctx, roleMD.CodeKey)
	media, mediaErr := s.blobs.Get(ctx, roleMD.MediaKey)

	data := RoleData{Name: roleMD.Name}
	if codeErr == nil {
		data.Code = string(code)
	}
	if mediaErr == nil {
		data.Media = string(media)
	}
	return data
}

// GetRole returns a single role's current blob content (spec.md §4.5's
// get_role, used by single-role fetch endpoints).
func (s *Service) GetRole(ctx context.Context, vp capability.ViewProject, roleID string) (*RoleData, error) {
	md, err := s.projects.FindOne(ctx, bson.M{"id": vp.Metadata.ID})
	if err != nil {
		return nil, err
	}
	roleMD, ok := md.Roles[roleID]
	if !ok {
		return nil, apperr.ErrRoleNotFound
	}
	data := s.fetchRole(ctx, roleMD)
	return &data, nil
}

func (s *Service) toProject(md *store.ProjectMetadata, roles map[string]RoleData) *Project {
	return &Project{
		ID:            md.ID,
		Owner:         md.Owner,
		Name:          md.Name,
		Updated:       md.Updated,
		OriginTime:    md.OriginTime,
		State:         md.State,
		SaveState:     md.SaveState,
		Collaborators: md.Collaborators,
		Roles:         roles,
	}
}
