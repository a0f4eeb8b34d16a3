package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appping "github.com/pingboard/backend/internal/application/ping"
)

// ForwardHandler serves the public click-through links embedded in ping
// messages. It lives outside the versioned API so the links stay short.
type ForwardHandler struct {
	BaseHandler
	pingService *appping.PingService
}

// NewForwardHandler creates a new forward handler
func NewForwardHandler(pingService *appping.PingService) *ForwardHandler {
	return &ForwardHandler{pingService: pingService}
}

// RegisterRoutes registers the forwarder on the engine root
func (h *ForwardHandler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/ping/:pingId", h.Forward)
}

// Forward records the click and redirects to the rendered survey URL
func (h *ForwardHandler) Forward(c *gin.Context) {
	pingID, err := uuid.Parse(c.Param("pingId"))
	if err != nil {
		h.NotFound(c, "Not found")
		return
	}
	code := c.Query("code")
	if code == "" {
		h.NotFound(c, "Not found")
		return
	}

	target, err := h.pingService.Forward(c.Request.Context(), pingID, code)
	if err != nil {
		h.NotFound(c, "Not found")
		return
	}

	c.Redirect(http.StatusFound, target)
}
