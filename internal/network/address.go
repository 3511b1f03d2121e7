package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/netsblox/cloud/internal/bus"
	"github.com/netsblox/cloud/internal/store"
	"go.mongodb.org/mongo-driver/bson"
)

// DefaultAppID is the built-in app identifier the wire syntax's app list
// defaults to when no "#app1,app2,..." suffix is present (spec.md §6).
const DefaultAppID = "netsblox"

// Address is a parsed `[role@]project@owner[#app1,app2,...]` string
// (spec.md §4.1, §6). Role is empty when unspecified, meaning "all roles of
// the resolved project". RawAddress is everything before the '#' suffix,
// used verbatim as the External Index's lookup key (DESIGN NOTES: "the
// entire address string" is intentionally the key for non-default apps).
type Address struct {
	Role       string
	Project    string
	Owner      string
	AppIDs     []string
	RawAddress string
}

// ParseAddress parses the wire address syntax. The part before any '#' is
// split on '@': the last chunk is the owner, the one before it is the
// project, and any earlier chunks (rejoined with '@') form the role.
func ParseAddress(s string) (Address, error) {
	raw, appPart, _ := strings.Cut(s, "#")
	if raw == "" {
		return Address{}, fmt.Errorf("empty address")
	}

	appIDs := []string{DefaultAppID}
	if appPart != "" {
		parts := strings.Split(appPart, ",")
		appIDs = make([]string, 0, len(parts))
		for _, p := range parts {
			appIDs = append(appIDs, strings.ToLower(strings.TrimSpace(p)))
		}
	}

	chunks := strings.Split(raw, "@")
	addr := Address{AppIDs: appIDs, RawAddress: raw}

	switch len(chunks) {
	case 1:
		return Address{}, fmt.Errorf("address %q missing project@owner", s)
	case 2:
		addr.Project = chunks[0]
		addr.Owner = chunks[1]
	default:
		n := len(chunks)
		addr.Role = strings.Join(chunks[:n-2], "@")
		addr.Project = chunks[n-2]
		addr.Owner = chunks[n-1]
	}

	return addr, nil
}

// BrowserTarget is one concrete (project_id, role_id) destination resolved
// from a default-app address.
type BrowserTarget struct {
	ProjectID string
	RoleID    string
}

type projectMetadataEntry struct {
	ProjectID string `json:"projectId"`
}

// Resolver is C1: resolves default-app addresses to concrete role targets by
// consulting the Project Store Gateway, optionally through a
// circuit-broken cache keyed by (owner,name) (spec.md §4.1: "No caching is
// mandated, but implementations may cache (owner,name) -> project_id").
type Resolver struct {
	projects *store.ProjectStore
	cache    *bus.Service
}

// NewResolver builds a Resolver over the given project store and optional
// address-resolution cache (nil disables caching, degrading gracefully).
func NewResolver(projects *store.ProjectStore, cache *bus.Service) *Resolver {
	return &Resolver{projects: projects, cache: cache}
}

func cacheKey(owner, name string) string {
	return "addr:" + owner + "@" + name
}

// ResolveBrowser implements spec.md §4.1's default-app resolution: look up
// the project by (owner, name), then yield {project_id, role_id} for each
// requested role name, or every role if addr.Role is empty.
func (r *Resolver) ResolveBrowser(ctx context.Context, addr Address) ([]BrowserTarget, error) {
	projectID, err := r.resolveProjectID(ctx, addr.Owner, addr.Project)
	if err != nil || projectID == "" {
		return nil, nil
	}

	md, err := r.projects.FindOne(ctx, bson.M{"id": projectID})
	if err != nil {
		// Cached id is stale (project renamed/deleted since); invalidate and
		// fall through empty rather than propagate a resolution error.
		r.invalidate(ctx, addr.Owner, addr.Project)
		return nil, nil
	}

	nameToID := make(map[string]string, len(md.Roles))
	for id, role := range md.Roles {
		nameToID[role.Name] = id
	}

	var roleNames []string
	if addr.Role != "" {
		roleNames = []string{addr.Role}
	} else {
		for _, role := range md.Roles {
			roleNames = append(roleNames, role.Name)
		}
	}

	targets := make([]BrowserTarget, 0, len(roleNames))
	for _, name := range roleNames {
		if roleID, ok := nameToID[name]; ok {
			targets = append(targets, BrowserTarget{ProjectID: md.ID, RoleID: roleID})
		}
	}
	return targets, nil
}

func (r *Resolver) resolveProjectID(ctx context.Context, owner, name string) (string, error) {
	key := cacheKey(owner, name)

	var cached projectMetadataEntry
	if found, _ := r.cache.CacheGet(ctx, key, &cached); found {
		return cached.ProjectID, nil
	}

	md, err := r.projects.FindOne(ctx, bson.M{"name": name, "owner": owner})
	if err != nil {
		return "", err
	}

	_ = r.cache.CacheSet(ctx, key, projectMetadataEntry{ProjectID: md.ID}, 0)
	return md.ID, nil
}

// Invalidate drops the cached (owner,name) -> project_id mapping, called on
// any room-state change affecting that project (rename, role add/remove).
func (r *Resolver) Invalidate(ctx context.Context, owner, name string) {
	r.invalidate(ctx, owner, name)
}

func (r *Resolver) invalidate(ctx context.Context, owner, name string) {
	_ = r.cache.CacheInvalidate(ctx, cacheKey(owner, name))
}
