package apiserver

import (
	"net/http"
	"strconv"

	"github.com/netsblox/cloud/internal/capability"
	"github.com/netsblox/cloud/internal/middleware"
	"github.com/netsblox/cloud/internal/project"
	"github.com/gin-gonic/gin"
)

// ProjectHandlers adapts C7's Service onto the routes SPEC_FULL.md §11
// lists under /api/projects.
type ProjectHandlers struct {
	projects *project.Service
}

// NewProjectHandlers builds the project route handlers.
func NewProjectHandlers(projects *project.Service) *ProjectHandlers {
	return &ProjectHandlers{projects: projects}
}

type roleInput struct {
	Name  string `json:"name"`
	Code  string `json:"code"`
	Media string `json:"media"`
}

type createProjectRequest struct {
	Name  string      `json:"name"`
	Roles []roleInput `json:"roles"`
}

// Create handles POST /api/projects (create_project).
func (h *ProjectHandlers) Create(c *gin.Context) {
	username, ok := middleware.Username(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	roles := make([]project.RoleInput, 0, len(req.Roles))
	for _, r := range req.Roles {
		roles = append(roles, project.RoleInput{Name: r.Name, Code: r.Code, Media: r.Media})
	}

	md, err := h.projects.CreateProject(c.Request.Context(), username, req.Name, roles)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, md)
}

// Get handles GET /api/projects/:id (get_project).
func (h *ProjectHandlers) Get(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")

	vp, err := h.projects.ResolveViewProjectMetadata(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	proj, err := h.projects.GetProject(c.Request.Context(), vp)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proj)
}

// GetLatest handles GET /api/projects/:id/latest (get_latest).
func (h *ProjectHandlers) GetLatest(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")

	vp, err := h.projects.ResolveViewProjectMetadata(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	proj, err := h.projects.GetLatestProject(c.Request.Context(), vp)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, proj)
}

// GetThumbnail handles GET /api/projects/:id/thumbnail?aspectRatio=
// (get_thumbnail).
func (h *ProjectHandlers) GetThumbnail(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")

	vp, err := h.projects.ResolveViewProjectMetadata(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	var aspectRatio *float64
	if raw := c.Query("aspectRatio"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "aspectRatio must be a number"})
			return
		}
		aspectRatio = &v
	}

	png, err := h.projects.GetThumbnail(c.Request.Context(), vp, aspectRatio)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

type renameProjectRequest struct {
	Name string `json:"name"`
}

// Rename handles PATCH /api/projects/:id (rename_project).
func (h *ProjectHandlers) Rename(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")

	var req renameProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	md, err := h.projects.RenameProject(c.Request.Context(), ep, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

// Delete handles DELETE /api/projects/:id, owner-only per SPEC_FULL.md §11
// (stricter than EditProject's owner-or-collaborator rule).
func (h *ProjectHandlers) Delete(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}
	if ep.Metadata.Owner != username {
		writeError(c, &capability.Forbidden{Op: "DeleteProject", User: username})
		return
	}

	if err := h.projects.DeleteProject(c.Request.Context(), ep); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Publish handles POST /api/projects/:id/publish.
func (h *ProjectHandlers) Publish(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	state, err := h.projects.PublishProject(c.Request.Context(), ep)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// Unpublish handles POST /api/projects/:id/unpublish.
func (h *ProjectHandlers) Unpublish(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	state, err := h.projects.UnpublishProject(c.Request.Context(), ep)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// AddRole handles POST /api/projects/:id/roles.
func (h *ProjectHandlers) AddRole(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")

	var req roleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	md, err := h.projects.AddRole(c.Request.Context(), ep, project.RoleInput{Name: req.Name, Code: req.Code, Media: req.Media})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, md)
}

type renameRoleRequest struct {
	Name string `json:"name"`
}

// RenameRole handles PATCH /api/projects/:id/roles/:roleId.
func (h *ProjectHandlers) RenameRole(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")
	roleID := c.Param("roleId")

	var req renameRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	md, err := h.projects.RenameRole(c.Request.Context(), ep, roleID, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

// DeleteRole handles DELETE /api/projects/:id/roles/:roleId.
func (h *ProjectHandlers) DeleteRole(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")
	roleID := c.Param("roleId")

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	md, err := h.projects.DeleteRole(c.Request.Context(), ep, roleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

// AddCollaborator handles POST /api/projects/:id/collaborators/:username.
func (h *ProjectHandlers) AddCollaborator(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")
	collaborator := c.Param("username")

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	md, err := h.projects.AddCollaborator(c.Request.Context(), ep, collaborator)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}

// RemoveCollaborator handles DELETE /api/projects/:id/collaborators/:username.
func (h *ProjectHandlers) RemoveCollaborator(c *gin.Context) {
	username, _ := middleware.Username(c)
	id := c.Param("id")
	collaborator := c.Param("username")

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), username, id)
	if err != nil {
		writeError(c, err)
		return
	}

	md, err := h.projects.RemoveCollaborator(c.Request.Context(), ep, collaborator)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, md)
}
