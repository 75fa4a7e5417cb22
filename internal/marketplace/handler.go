package marketplace

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
)

// Handler handles HTTP requests for marketplace operations
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new marketplace handler
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers marketplace routes
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/marketplace")
	{
		group.GET("/listings", h.listListings)
		group.GET("/listings/:id", h.getListing)
		group.POST("/listings/:id/purchase", h.purchase)
		group.POST("/batches/:id/listings", h.postListing)
		group.GET("/purchases", h.listPurchases)
	}
}

func (h *Handler) listListings(c *gin.Context) {
	onlyOpen := c.Query("available") == "true"
	listings, err := h.service.ListListings(c.Request.Context(), onlyOpen)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

func (h *Handler) getListing(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	listing, err := h.service.GetListing(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

type purchaseRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

func (h *Handler) purchase(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	buyerID := c.GetHeader("X-Actor-ID")
	purchase, err := h.service.Purchase(c.Request.Context(), id, buyerID, req.Quantity)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, purchase)
}

type postListingRequest struct {
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

func (h *Handler) postListing(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
		return
	}

	var req postListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sellerID := c.GetHeader("X-Actor-ID")
	listing, err := h.service.PostListing(c.Request.Context(), batchID, sellerID, req.Quantity, req.UnitPrice)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func (h *Handler) listPurchases(c *gin.Context) {
	buyerID := c.GetHeader("X-Actor-ID")
	purchases, err := h.service.ListPurchases(c.Request.Context(), buyerID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("marketplace request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
