package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jimdaga/newsdigest/internal/models"
	"github.com/jimdaga/newsdigest/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (h *handlers) getCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories": h.Catalog.CategoryKeys(),
		"sources":    h.Catalog.SourceKeys(),
	})
}

func (h *handlers) getSettings(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}

	settings, err := h.Store.GetSettings(c.Request.Context(), userID)
	if err != nil {
		h.storeError(c, err, "failed to load settings")
		return
	}
	c.JSON(http.StatusOK, newSettingsResponse(settings))
}

func (h *handlers) updateSettings(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}

	var req settingsUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.checkCatalogKeys(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := h.Store.UpdateSettings(c.Request.Context(), userID, func(s *models.UserSettings) error {
		req.apply(s)
		return nil
	})
	if err != nil {
		h.storeError(c, err, "failed to update settings")
		return
	}

	h.logger.Info("settings updated", "user_id", userID)
	c.JSON(http.StatusOK, newSettingsResponse(settings))
}

func (h *handlers) checkCatalogKeys(req settingsUpdate) error {
	if h.Catalog == nil {
		return nil
	}
	if req.Categories != nil {
		for _, key := range *req.Categories {
			if _, ok := h.Catalog.Categories[key]; !ok {
				return fmt.Errorf("unknown category %q", key)
			}
		}
	}
	if req.Sources != nil {
		for _, key := range *req.Sources {
			if _, ok := h.Catalog.Sources[key]; !ok {
				return fmt.Errorf("unknown source %q", key)
			}
		}
	}
	return nil
}

func (h *handlers) listDeliveries(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	limit := queryInt(c, "limit", defaultPageSize)
	limit = min(max(limit, 1), maxPageSize)
	offset := max(queryInt(c, "offset", 0), 0)

	entries, total, err := h.Store.ListDeliveries(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.storeError(c, err, "failed to list deliveries")
		return
	}

	page := deliveryPage{Items: make([]deliveryResponse, 0, len(entries)), Total: total, Limit: limit, Offset: offset}
	for _, e := range entries {
		page.Items = append(page.Items, newDeliveryResponse(e))
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) getDelivery(c *gin.Context) {
	userID, ok := uintParam(c, "user_id")
	if !ok {
		return
	}
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.Store.GetDelivery(c.Request.Context(), userID, id)
	if err != nil {
		h.storeError(c, err, "failed to load delivery")
		return
	}
	c.JSON(http.StatusOK, newDeliveryResponse(*entry))
}

// storeError maps store errors onto status codes.
func (h *handlers) storeError(c *gin.Context, err error, msg string) {
	var invalid *store.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": invalid.Error()})
	default:
		h.logger.Error(msg, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(n), true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return fallback
	}
	return n
}
