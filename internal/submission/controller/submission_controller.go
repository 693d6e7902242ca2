package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"agentbench/internal/common/http/middleware"
	"agentbench/internal/submission/service"
	"agentbench/pkg/utils/response"
)

// SubmissionController handles submission HTTP endpoints.
type SubmissionController struct {
	submissionService *service.SubmissionService
	artifactService   *service.ArtifactService
}

// NewSubmissionController creates a new SubmissionController.
func NewSubmissionController(submissionService *service.SubmissionService, artifactService *service.ArtifactService) *SubmissionController {
	return &SubmissionController{
		submissionService: submissionService,
		artifactService:   artifactService,
	}
}

// Create handles new agent submissions.
func (h *SubmissionController) Create(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	var req service.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	submission, err := h.submissionService.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// Get returns a submission with its version history.
func (h *SubmissionController) Get(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid submission id")
		return
	}

	detail, err := h.submissionService.Get(c.Request.Context(), userID, c.GetString("user_role"), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, detail)
}

// List returns the caller's submissions.
func (h *SubmissionController) List(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	submissions, err := h.submissionService.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, submissions)
}

// Leaderboard ranks completed submissions by score.
func (h *SubmissionController) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.submissionService.Leaderboard(
		c.Request.Context(),
		c.Query("industry"),
		c.Query("subdomain"),
		limit,
	)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, entries)
}

// UploadArtifact accepts a gzip archive and returns its object key, to be
// used as the source URL of an archive submission.
func (h *SubmissionController) UploadArtifact(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	file, header, err := c.Request.FormFile("artifact")
	if err != nil {
		response.BadRequest(c, "Missing artifact file")
		return
	}
	defer file.Close()

	key, err := h.artifactService.Upload(c.Request.Context(), userID, header.Filename, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ArtifactResponse{ObjectKey: key})
}

// ArtifactURL returns a presigned download URL for a stored artifact.
func (h *SubmissionController) ArtifactURL(c *gin.Context) {
	if _, ok := middleware.CurrentUserID(c); !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	key := c.Query("key")
	if key == "" {
		response.BadRequest(c, "Missing object key")
		return
	}
	url, err := h.artifactService.DownloadURL(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"url": url})
}

// ArtifactResponse carries the stored artifact's object key.
type ArtifactResponse struct {
	ObjectKey string `json:"object_key"`
}
