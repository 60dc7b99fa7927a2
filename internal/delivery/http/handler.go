package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pricescout/backend/internal/domain"
	log "github.com/sirupsen/logrus"
)

const (
	errMissingKeyword = "Missing \"keyword\" query parameter"
	errInternal       = "Internal Server Error"
)

// ScrapeService is the aggregation use case the handler depends on
type ScrapeService interface {
	Scrape(ctx context.Context, request *domain.ScrapeRequest) (*domain.ScrapeResult, error)
	Sources() []domain.SourceInfo
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	scrapeService ScrapeService
}

// NewHandler creates a new HTTP handler
func NewHandler(scrapeService ScrapeService) *Handler {
	return &Handler{scrapeService: scrapeService}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "pricescout",
		"version": "1.0.0",
	})
}

// Scrape handles GET /api/v1/scrape
// Query: keyword (required), sources=a,b, sort=asc|desc|none, minPrice, maxPrice, report=true
func (h *Handler) Scrape(c *gin.Context) {
	if h.scrapeService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scrape service not configured"})
		return
	}

	request, errMsg := parseScrapeQuery(c)
	if errMsg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": errMsg})
		return
	}

	result, err := h.scrapeService.Scrape(c.Request.Context(), request)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": errMissingKeyword})
			return
		}
		log.WithFields(log.Fields{
			"keyword":    request.Keyword,
			"request_id": c.GetString(requestIDKey),
		}).WithError(err).Error("scrape failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternal})
		return
	}

	if report, _ := strconv.ParseBool(c.Query("report")); report {
		c.JSON(http.StatusOK, result)
		return
	}
	c.JSON(http.StatusOK, result.Products)
}

// Sources handles GET /api/v1/sources
func (h *Handler) Sources(c *gin.Context) {
	if h.scrapeService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scrape service not configured"})
		return
	}
	c.JSON(http.StatusOK, h.scrapeService.Sources())
}

// parseScrapeQuery builds a request from query parameters; a non-empty message means 400
func parseScrapeQuery(c *gin.Context) (*domain.ScrapeRequest, string) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		return nil, errMissingKeyword
	}

	request := &domain.ScrapeRequest{
		Keyword: keyword,
		Sort:    domain.ParseSortOrder(c.Query("sort")),
	}

	if raw := c.Query("sources"); raw != "" {
		for _, source := range strings.Split(raw, ",") {
			if source = strings.TrimSpace(source); source != "" {
				request.Sources = append(request.Sources, source)
			}
		}
	}

	var errMsg string
	if request.MinPrice, errMsg = parseBound(c, "minPrice"); errMsg != "" {
		return nil, errMsg
	}
	if request.MaxPrice, errMsg = parseBound(c, "maxPrice"); errMsg != "" {
		return nil, errMsg
	}
	return request, ""
}

func parseBound(c *gin.Context, name string) (*float64, string) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, ""
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) {
		return nil, "Invalid \"" + name + "\" query parameter"
	}
	return &value, ""
}
