package holdings

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
)

// Handler handles HTTP requests for holding operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new holdings handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers holding routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/holdings")
	{
		group.POST("/:purchaseId/retire", h.retire)
		group.POST("/:purchaseId/offers", h.postTradeOffer)
	}
}

func (h *Handler) retire(c *gin.Context) {
	id, err := uuid.Parse(c.Param("purchaseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
		return
	}

	holderID := c.GetHeader("X-Actor-ID")
	purchase, err := h.service.Retire(c.Request.Context(), id, holderID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchase)
}

type tradeOfferRequest struct {
	AskQuantity decimal.Decimal `json:"ask_quantity"`
	AskPrice    decimal.Decimal `json:"ask_price"`
}

func (h *Handler) postTradeOffer(c *gin.Context) {
	id, err := uuid.Parse(c.Param("purchaseId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid purchase id"})
		return
	}

	var req tradeOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	holderID := c.GetHeader("X-Actor-ID")
	listing, err := h.service.PostTradeOffer(c.Request.Context(), id, holderID, req.AskQuantity, req.AskPrice)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("holdings request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
