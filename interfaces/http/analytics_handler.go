package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"insight-hub/domain/model"
	"insight-hub/infrastructure/logger"
	"insight-hub/usecase"
)

type IAnalyticsHandler interface {
	GetCompanyAnalytics(ctx *gin.Context)
	GetSyncStatus(ctx *gin.Context)
}

type analyticsHandler struct {
	analytics usecase.IAnalyticsUsecase
}

func NewAnalyticsHandler(analytics usecase.IAnalyticsUsecase) IAnalyticsHandler {
	return &analyticsHandler{analytics: analytics}
}

// GetCompanyAnalytics serves GET /api/companies/:companyId/analytics with
// optional start_date, end_date, platforms (comma list) and no_cache query
// parameters.
func (h *analyticsHandler) GetCompanyAnalytics(c *gin.Context) {
	companyID, err := strconv.ParseInt(c.Param("companyId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}

	req := usecase.AnalyticsRequest{
		CompanyID: companyID,
		UserID:    c.GetString("user_id"),
		NoCache:   c.Query("no_cache") == "true" || c.Query("no_cache") == "1",
	}

	// Malformed dates are ignored rather than rejected; the orchestrator
	// repairs whatever range results.
	if s := c.Query("start_date"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			req.Range.Start = t
		}
	}
	if s := c.Query("end_date"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			req.Range.End = t
		}
	}

	if raw := c.Query("platforms"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			platform, err := model.ParsePlatform(name)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			req.Platforms = append(req.Platforms, platform)
		}
	}

	resp, err := h.analytics.GetCompanyAnalytics(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetSyncStatus serves GET /api/companies/:companyId/sync-status.
func (h *analyticsHandler) GetSyncStatus(c *gin.Context) {
	companyID, err := strconv.ParseInt(c.Param("companyId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid company id"})
		return
	}

	statuses, err := h.analytics.SyncStatus(c.Request.Context(), companyID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"companyId": companyID, "platforms": statuses})
}

func (h *analyticsHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrCompanyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrNoAccess):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrNoMappings):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.GetLogger().WithField("error", err).Error("Analytics request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
