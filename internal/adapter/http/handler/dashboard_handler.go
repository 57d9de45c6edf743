package handler

import (
	"math"
	"net/http"
	"time"

	"flowkora/internal/adapter/http/dto"
	"flowkora/internal/core/domain"
	"flowkora/internal/core/ports"
	"flowkora/pkg/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler handles dashboard & transaction list endpoints.
type DashboardHandler struct {
	reportingSvc ports.ReportingService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportingSvc ports.ReportingService) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc}
}

// GetStats handles GET /api/merchant/dashboard/stats.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	stats, err := h.reportingSvc.GetDashboardStats(c.Request.Context(), merchantID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// ListTransactions handles GET /api/merchant/transactions.
func (h *DashboardHandler) ListTransactions(c *gin.Context) {
	merchantID, ok := requireMerchant(c)
	if !ok {
		return
	}

	var q dto.TransactionListQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = dto.DefaultPageSize
	}

	params := ports.TransactionListParams{
		MerchantID: merchantID,
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	if q.Status != "" {
		status := domain.TransactionStatus(q.Status)
		params.Status = &status
	}
	if q.Currency != "" {
		currency := domain.Currency(q.Currency)
		params.Currency = &currency
	}

	txns, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, dto.NewTransactionResponse(&txns[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(q.PageSize)))

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	})
}

// HealthCheck handles GET /health, a deep check of every dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps := make(map[string]dto.DependencyStatus, len(checkers))
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = dto.DependencyStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = dto.DependencyStatus{Status: "healthy"}
			}
		}

		resp := dto.HealthResponse{
			Status:       "healthy",
			Dependencies: deps,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
		}
		if !allHealthy {
			resp.Status = "degraded"
			c.Header(response.RequestIDHeader, response.RequestID(c))
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		response.OK(c, resp)
	}
}
