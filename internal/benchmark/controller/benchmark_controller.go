package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"agentbench/internal/benchmark/service"
	"agentbench/internal/common/http/middleware"
	"agentbench/pkg/utils/response"
)

// BenchmarkController handles benchmark catalogue HTTP endpoints.
type BenchmarkController struct {
	benchmarkService *service.BenchmarkService
}

// NewBenchmarkController creates a new BenchmarkController.
func NewBenchmarkController(benchmarkService *service.BenchmarkService) *BenchmarkController {
	return &BenchmarkController{benchmarkService: benchmarkService}
}

// List returns approved benchmarks, optionally filtered by industry and
// subdomain query parameters.
func (h *BenchmarkController) List(c *gin.Context) {
	benchmarks, err := h.benchmarkService.List(c.Request.Context(), c.Query("industry"), c.Query("subdomain"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, benchmarks)
}

// Get returns a single benchmark.
func (h *BenchmarkController) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid benchmark id")
		return
	}
	benchmark, err := h.benchmarkService.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, benchmark)
}

// Propose files a benchmark for admin review.
func (h *BenchmarkController) Propose(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	var req service.ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	benchmark, err := h.benchmarkService.Propose(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, benchmark)
}
