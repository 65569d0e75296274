package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/KaramelBytes/dosifier-cli/internal/dosing"
	"github.com/KaramelBytes/dosifier-cli/internal/history"
	"github.com/KaramelBytes/dosifier-cli/internal/service"
	"github.com/KaramelBytes/dosifier-cli/internal/table"
)

// Form defaults of the plant's operator screen.
const (
	defaultPH   = 7.2
	defaultFlow = 200.0
)

type estimateRequest struct {
	Turbidity   *float64 `json:"turbidity"`
	PH          *float64 `json:"ph"`
	Flow        *float64 `json:"flow"`
	SkipHistory bool     `json:"skip_history"`
}

// statusFor maps dosing errors to HTTP status codes.
func statusFor(err error) int {
	var (
		invalid *dosing.InvalidInputError
		empty   *dosing.EmptyDatasetError
		noFlow  *dosing.NoFlowDataError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &empty), errors.As(err, &noFlow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// handleEstimate computes a dose
// POST /api/v1/estimate
func (s *Server) handleEstimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.Turbidity == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "turbidity is required"})
		return
	}
	q := service.Query{Turbidity: *req.Turbidity, PH: defaultPH, Flow: defaultFlow, SkipHistory: req.SkipHistory}
	if req.PH != nil {
		q.PH = *req.PH
	}
	if req.Flow != nil {
		q.Flow = *req.Flow
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	est, err := s.svc.Estimate(ctx, q)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": est})
}

// handleLimits returns accepted input ranges
// GET /api/v1/limits
func (s *Server) handleLimits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.svc.Limits()})
}

// parseFilter reads since/until (RFC3339), last_n_days and limit query params.
func parseFilter(c *gin.Context) (history.Filter, error) {
	var f history.Filter
	if daysStr := c.Query("last_n_days"); daysStr != "" {
		days, err := strconv.Atoi(daysStr)
		if err != nil || days <= 0 {
			return f, errors.New("invalid last_n_days")
		}
		f.Since = time.Now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	}
	if startStr := c.Query("since"); startStr != "" {
		t, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return f, errors.New("invalid since timestamp")
		}
		f.Since = t.UTC()
	}
	if endStr := c.Query("until"); endStr != "" {
		t, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return f, errors.New("invalid until timestamp")
		}
		f.Until = t.UTC()
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}
	return f, nil
}

// handleHistory lists logged estimates, newest first
// GET /api/v1/history
func (s *Server) handleHistory(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	entries, err := s.svc.History(ctx, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data": entries,
		"meta": gin.H{"count": len(entries)},
	})
}

// GET /api/v1/history/stats
func (s *Server) handleHistoryStats(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	tr, err := s.svc.Trend(ctx, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": tr})
}

// GET /api/v1/history/export
func (s *Server) handleHistoryExport(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	entries, err := s.svc.History(ctx, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	name := fmt.Sprintf("dosing_history_%s.csv", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := history.WriteCSV(c.Writer, entries); err != nil {
		_ = c.Error(err)
	}
}

// handleTable summarizes the loaded dosing table
// GET /api/v1/table
func (s *Server) handleTable(c *gin.Context) {
	t, loadedAt := s.svc.Table()
	c.JSON(http.StatusOK, gin.H{
		"data": table.Inspect(t),
		"meta": gin.H{"loaded_at": loadedAt.UTC()},
	})
}

// POST /api/v1/table/reload
func (s *Server) handleTableReload(c *gin.Context) {
	if err := s.svc.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	t, loadedAt := s.svc.Table()
	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{"name": t.Name, "rows": t.Rows, "warnings": t.Warnings},
		"meta": gin.H{"loaded_at": loadedAt.UTC()},
	})
}
