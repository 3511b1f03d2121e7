package apiserver

import (
	"net/http"
	"strings"

	"github.com/netsblox/cloud/internal/capability"
	"github.com/netsblox/cloud/internal/invites"
	"github.com/netsblox/cloud/internal/middleware"
	"github.com/netsblox/cloud/internal/project"
	"github.com/gin-gonic/gin"
)

// InviteHandlers adapts C8's Service onto the routes SPEC_FULL.md §11
// lists for collaboration invites.
type InviteHandlers struct {
	invites  *invites.Service
	projects *project.Service
}

// NewInviteHandlers builds the invite route handlers.
func NewInviteHandlers(invites *invites.Service, projects *project.Service) *InviteHandlers {
	return &InviteHandlers{invites: invites, projects: projects}
}

// List handles GET /api/users/:recipient/invites (list_invites).
func (h *InviteHandlers) List(c *gin.Context) {
	caller, ok := middleware.Username(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	recipient := c.Param("recipient")

	vu, err := capability.NewViewUser(caller, recipient)
	if err != nil {
		writeError(c, err)
		return
	}

	list, err := h.invites.ListInvites(c.Request.Context(), vu)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Send handles POST /api/projects/:id/invite/:recipient (send_invite). The
// sender must hold edit access to the project being shared.
func (h *InviteHandlers) Send(c *gin.Context) {
	sender, ok := middleware.Username(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	projectID := c.Param("id")
	recipient := c.Param("recipient")

	ep, err := h.projects.ResolveEditProject(c.Request.Context(), sender, projectID)
	if err != nil {
		writeError(c, err)
		return
	}

	invite, err := h.invites.SendInvite(c.Request.Context(), ep, sender, recipient)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invite)
}

type respondRequest struct {
	State string `json:"state"`
}

// Respond handles POST /api/invites/:id (respond). Body: {"state":
// "Accepted"|"Rejected"}, matching the original's CollaborationInvite
// state values.
func (h *InviteHandlers) Respond(c *gin.Context) {
	caller, ok := middleware.Username(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	inviteID := c.Param("id")

	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	accepted := strings.EqualFold(req.State, "Accepted")
	if !accepted && !strings.EqualFold(req.State, "Rejected") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state must be Accepted or Rejected"})
		return
	}

	vu := capability.ViewUser{Username: caller}
	if err := h.invites.Respond(c.Request.Context(), vu, inviteID, accepted); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
