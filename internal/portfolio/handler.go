package portfolio

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
)

// Handler serves balance queries from the ledger projection
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers balance routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/portfolio/:holderId", h.getPortfolio)
	router.GET("/projects/:id/balances", h.getProjectBalances)
}

func (h *Handler) getPortfolio(c *gin.Context) {
	holderID := c.Param("holderId")
	result, err := h.service.GetPortfolio(c.Request.Context(), holderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getProjectBalances(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	balances, err := h.service.GetProjectBalances(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("balance query failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
