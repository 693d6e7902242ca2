package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	adminservice "agentbench/internal/admin/service"
	benchservice "agentbench/internal/benchmark/service"
	chservice "agentbench/internal/challenge/service"
	subservice "agentbench/internal/submission/service"
	"agentbench/pkg/utils/response"
)

// AdminController handles operator HTTP endpoints. Every route behind it is
// gated by the admin role in the router.
type AdminController struct {
	adminService      *adminservice.AdminService
	submissionService *subservice.SubmissionService
	benchmarkService  *benchservice.BenchmarkService
	challengeService  *chservice.ChallengeService
}

// NewAdminController creates a new AdminController.
func NewAdminController(
	adminService *adminservice.AdminService,
	submissionService *subservice.SubmissionService,
	benchmarkService *benchservice.BenchmarkService,
	challengeService *chservice.ChallengeService,
) *AdminController {
	return &AdminController{
		adminService:      adminService,
		submissionService: submissionService,
		benchmarkService:  benchmarkService,
		challengeService:  challengeService,
	}
}

// Stats returns the dashboard counters.
func (h *AdminController) Stats(c *gin.Context) {
	stats, err := h.adminService.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// RecentJobs returns the latest submissions across all users.
func (h *AdminController) RecentJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	jobs, err := h.adminService.RecentJobs(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, jobs)
}

// FlagSubmission marks a submission as malicious. Flagged is terminal and
// beats any in-flight evaluation result.
func (h *AdminController) FlagSubmission(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	if err := h.submissionService.Flag(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"flagged": id})
}

// PendingBenchmarks lists proposals awaiting review.
func (h *AdminController) PendingBenchmarks(c *gin.Context) {
	benchmarks, err := h.benchmarkService.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, benchmarks)
}

// ApproveBenchmark approves a pending proposal.
func (h *AdminController) ApproveBenchmark(c *gin.Context) {
	h.reviewBenchmark(c, true)
}

// RejectBenchmark rejects a pending proposal.
func (h *AdminController) RejectBenchmark(c *gin.Context) {
	h.reviewBenchmark(c, false)
}

func (h *AdminController) reviewBenchmark(c *gin.Context, approve bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid benchmark id")
		return
	}
	if err := h.benchmarkService.Review(c.Request.Context(), id, approve); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"benchmark_id": id, "approved": approve})
}

// ResetChallenge retires the current season and installs a new one.
func (h *AdminController) ResetChallenge(c *gin.Context) {
	var req chservice.ResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}
	challenge, err := h.challengeService.Reset(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, challenge)
}
