package controller

import (
	"github.com/gin-gonic/gin"

	"agentbench/internal/challenge/service"
	"agentbench/pkg/utils/response"
)

// ChallengeController handles seasonal challenge HTTP endpoints.
type ChallengeController struct {
	challengeService *service.ChallengeService
}

// NewChallengeController creates a new ChallengeController.
func NewChallengeController(challengeService *service.ChallengeService) *ChallengeController {
	return &ChallengeController{challengeService: challengeService}
}

// GetActive returns the current season.
func (h *ChallengeController) GetActive(c *gin.Context) {
	challenge, err := h.challengeService.GetActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, challenge)
}
