package apiserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gin-gonic/gin"
)

// ServiceHost is a third-party service endpoint a client may call
// alongside the cloud (api-common's ServiceHost), carried here as an
// always-empty placeholder since group/service-host management itself
// stays out of scope.
type ServiceHost struct {
	URL        string   `json:"url"`
	Categories []string `json:"categories"`
}

// ClientConfig is handed to every client on connect, grounded on
// api-common/src/lib.rs's ClientConfig: a fresh opaque client id, the
// cloud's own base URL, and the service hosts available to it.
type ClientConfig struct {
	ClientID      string        `json:"clientId"`
	Username      *string       `json:"username,omitempty"`
	ServicesHosts []ServiceHost `json:"servicesHosts"`
	CloudURL      string        `json:"cloudUrl"`
}

// ConfigHandlers serves GET /api/config, unauthenticated: clients fetch it
// before they hold a token in order to learn their assigned client id.
type ConfigHandlers struct {
	cloudURL string
}

// NewConfigHandlers builds the config route handler.
func NewConfigHandlers(cloudURL string) *ConfigHandlers {
	return &ConfigHandlers{cloudURL: cloudURL}
}

// GetConfig handles GET /api/config. It runs ahead of the /api group's
// bearer-auth middleware (clients call it before they hold a token), so
// Username is always omitted here rather than reading a session identity
// the original's cookie-based config endpoint had available.
func (h *ConfigHandlers) GetConfig(c *gin.Context) {
	cfg := ClientConfig{
		ClientID:      "_" + uuid.NewString(),
		ServicesHosts: []ServiceHost{},
		CloudURL:      h.cloudURL,
	}
	c.JSON(http.StatusOK, cfg)
}
