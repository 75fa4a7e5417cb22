package v1

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/01phanto/EcoLedger/internal/apperrors"
	"github.com/01phanto/EcoLedger/internal/ledger"
	"github.com/01phanto/EcoLedger/pkg/ledgercsv"
)

// LedgerHandler serves the audit surface of the ledger: raw entries,
// CSV export and hash-chain verification.
type LedgerHandler struct {
	store  ledger.Store
	logger *zap.Logger
}

// NewLedgerHandler creates a ledger audit handler.
func NewLedgerHandler(store ledger.Store, logger *zap.Logger) *LedgerHandler {
	return &LedgerHandler{store: store, logger: logger}
}

// RegisterRoutes registers ledger audit routes
func (h *LedgerHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/ledger")
	{
		group.GET("", h.getLedger)
		group.GET("/export", h.exportLedger)
		group.GET("/verify", h.verifyLedger)
	}
}

func (h *LedgerHandler) getLedger(c *gin.Context) {
	from := uint64(1)
	if raw := c.Query("from"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from sequence"})
			return
		}
		from = parsed
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	entries, err := h.store.ReadFrom(c.Request.Context(), from, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *LedgerHandler) exportLedger(c *gin.Context) {
	entries, err := h.store.ReadFrom(c.Request.Context(), 1, 0)
	if err != nil {
		h.respondError(c, err)
		return
	}

	filename := fmt.Sprintf("ledger-%s.csv", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename="+filename)
	if err := ledgercsv.Write(c.Writer, entries); err != nil {
		h.logger.Error("ledger export failed", zap.Error(err))
	}
}

func (h *LedgerHandler) verifyLedger(c *gin.Context) {
	entries, err := h.store.ReadFrom(c.Request.Context(), 1, 0)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := ledger.VerifyChain(entries); err != nil {
		c.JSON(http.StatusConflict, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "entries": len(entries)})
}

func (h *LedgerHandler) respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("ledger request failed", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
