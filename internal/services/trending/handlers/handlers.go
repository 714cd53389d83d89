package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/trendflow-go/internal/services/trending/service"
	"github.com/trendflow-go/pkg/logger"
)

const visitorCookie = "tf_visitor"

const defaultLimit = 10

type TrendingHandlers struct {
	service    *service.TrendingService
	adminToken string
	logger     logger.Logger
}

func NewTrendingHandlers(svc *service.TrendingService, adminToken string, log logger.Logger) *TrendingHandlers {
	return &TrendingHandlers{
		service:    svc,
		adminToken: adminToken,
		logger:     log,
	}
}

func (h *TrendingHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *TrendingHandlers) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// TrackView records a view event. Always 200 unless the product id is
// malformed; the tracking itself is best-effort.
func (h *TrendingHandlers) TrackView(c *gin.Context) {
	productID, err := strconv.Atoi(c.Param("productId"))
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}

	h.service.TrackView(productID, h.visitorID(c))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TrackComparison records a comparison event between two products.
func (h *TrendingHandlers) TrackComparison(c *gin.Context) {
	productID1, err1 := strconv.Atoi(c.Query("product_id_1"))
	productID2, err2 := strconv.Atoi(c.Query("product_id_2"))
	if err1 != nil || err2 != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product ids"})
		return
	}

	if err := h.service.TrackComparison(productID1, productID2); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetTrending returns the ranked trending list, optionally category-scoped.
func (h *TrendingHandlers) GetTrending(c *gin.Context) {
	limit, ok := h.limitParam(c)
	if !ok {
		return
	}

	categoryID := 0
	if raw := c.Query("category_id"); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
			return
		}
		categoryID = id
	}

	instruments, err := h.service.GetTrendingProducts(c.Request.Context(), limit, categoryID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"instruments": instruments})
}

// GetComparisons returns the ranked popular comparison pairs.
func (h *TrendingHandlers) GetComparisons(c *gin.Context) {
	limit, ok := h.limitParam(c)
	if !ok {
		return
	}

	comparisons, err := h.service.GetPopularComparisons(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comparisons": comparisons})
}

// GetByCategory returns the per-category trending breakdown.
func (h *TrendingHandlers) GetByCategory(c *gin.Context) {
	categories, err := h.service.GetCategoryTrending(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetAnalytics returns the dashboard summary. Degradation shows up inside
// the payload, never as a failed response.
func (h *TrendingHandlers) GetAnalytics(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetSummary(c.Request.Context()))
}

// ClearCache drops all cached rankings. Admin-only.
func (h *TrendingHandlers) ClearCache(c *gin.Context) {
	if h.adminToken == "" || c.GetHeader("X-Admin-Token") != h.adminToken {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	if err := h.service.ClearCache(c.Request.Context()); err != nil {
		h.logger.Error("cache clear failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache clear failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cache cleared"})
}

// visitorID returns the caller-supplied visitor id, falling back to a
// cookie-based anonymous id so unique-view counts survive page reloads.
func (h *TrendingHandlers) visitorID(c *gin.Context) string {
	if visitor := c.Query("visitor_id"); visitor != "" {
		return visitor
	}

	if visitor, err := c.Cookie(visitorCookie); err == nil && visitor != "" {
		return visitor
	}

	visitor := uuid.NewString()
	c.SetCookie(visitorCookie, visitor, 365*24*3600, "/", "", false, true)
	return visitor
}

func (h *TrendingHandlers) limitParam(c *gin.Context) (int, bool) {
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func (h *TrendingHandlers) respondError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrInvalidArgument) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Ranking reads degrade rather than fail; anything else is unexpected
	h.logger.Error("trending request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
