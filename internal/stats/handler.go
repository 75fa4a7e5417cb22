package stats

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
)

// Handler serves dashboard aggregates
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new stats handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers stats routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/stats/dashboard", h.dashboard)
}

func (h *Handler) dashboard(c *gin.Context) {
	result, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		status := apperrors.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("dashboard aggregation failed", zap.Error(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
