package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"agentbench/internal/common/http/middleware"
	"agentbench/internal/user/model"
	"agentbench/internal/user/service"
	"agentbench/pkg/utils/response"
)

// AuthController handles account and API key HTTP endpoints.
type AuthController struct {
	authService   *service.AuthService
	apiKeyService *service.APIKeyService
}

// NewAuthController creates a new AuthController.
func NewAuthController(authService *service.AuthService, apiKeyService *service.APIKeyService) *AuthController {
	return &AuthController{authService: authService, apiKeyService: apiKeyService}
}

// Register handles account creation.
func (h *AuthController) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	user, token, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, SessionResponse{Token: token, User: user})
}

// Login handles password login.
func (h *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	user, token, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, SessionResponse{Token: token, User: user})
}

// Profile returns the authenticated user's account.
func (h *AuthController) Profile(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	user, err := h.authService.Profile(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// CreateAPIKey mints a new API key. The raw key appears only in this
// response.
func (h *AuthController) CreateAPIKey(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	var req CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return
	}

	key, raw, err := h.apiKeyService.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, APIKeyResponse{Key: key, RawKey: raw})
}

// ListAPIKeys lists the caller's API keys.
func (h *AuthController) ListAPIKeys(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	keys, err := h.apiKeyService.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, keys)
}

// DeleteAPIKey revokes one of the caller's API keys.
func (h *AuthController) DeleteAPIKey(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	keyID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || keyID <= 0 {
		response.BadRequest(c, "Invalid API key id")
		return
	}
	if err := h.apiKeyService.Delete(c.Request.Context(), userID, keyID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": keyID})
}

// RegisterRequest defines the registration payload.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest defines the login payload.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SessionResponse carries a token and the account it belongs to.
type SessionResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// CreateAPIKeyRequest defines the API key creation payload.
type CreateAPIKeyRequest struct {
	Name string `json:"name" binding:"required"`
}

// APIKeyResponse carries a freshly minted key. RawKey is never retrievable
// again.
type APIKeyResponse struct {
	Key    *model.APIKey `json:"key"`
	RawKey string        `json:"raw_key"`
}
