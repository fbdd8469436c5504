package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/storefront/core"
	"github.com/layer-3/storefront/pkg/slogx"
	"github.com/layer-3/storefront/ports"
	"github.com/layer-3/storefront/service"
)

const (
	ActionGenerate = "generate"
	ActionVerify   = "verify"
)

// AuthRequest is the body of the wallet auth endpoint. Which fields are
// required depends on Action.
type AuthRequest struct {
	Action    string          `json:"action"`
	Address   string          `json:"address"`
	Payload   *core.Challenge `json:"payload,omitempty"`
	Signature string          `json:"signature,omitempty"`
}

// SessionUser is the identity part of a session response
type SessionUser struct {
	ID            string `json:"id"`
	WalletAddress string `json:"wallet_address"`
}

// SessionResponse is returned on successful verification
type SessionResponse struct {
	User        SessionUser `json:"user"`
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Wallet dispatches on the request action
func (h *AuthHandlers) Wallet(c *gin.Context) {
	// Decode the request body
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Well-formed JSON with a mistyped field is the caller's fault
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		slogx.FromContext(c.Request.Context()).Error("failed to decode auth request", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Dispatch on the action
	switch req.Action {
	case ActionGenerate:
		h.generate(c, req)
	case ActionVerify:
		h.verify(c, req)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
	}
}

func (h *AuthHandlers) generate(c *gin.Context, req AuthRequest) {
	// Issue a challenge bound to the requesting host
	payload, err := h.authService.IssueChallenge(req.Address, c.Request.Host)
	if err != nil {
		slogx.FromContext(c.Request.Context()).Error("failed to issue challenge", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payload": payload})
}

func (h *AuthHandlers) verify(c *gin.Context, req AuthRequest) {
	ctx := c.Request.Context()

	// Verify the signed challenge
	session, err := h.authService.Verify(ctx, req.Payload, req.Signature, req.Address)
	if err != nil {
		// Map the failure to a response
		var mismatch *core.AddressMismatchError

		switch {
		case errors.Is(err, core.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing payload, signature, or address"})
		case errors.As(err, &mismatch):
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":    "Invalid signature",
				"expected": mismatch.Expected,
				"received": mismatch.Received,
			})
		case errors.Is(err, core.ErrChallengeExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Challenge expired"})
		case errors.Is(err, core.ErrNonceReused):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Challenge already used"})
		case errors.Is(err, core.ErrSignatureRecovery):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, core.ErrIdentityStore):
			slogx.FromContext(ctx).Error("identity provisioning failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		case errors.Is(err, core.ErrSessionIssuance):
			slogx.FromContext(ctx).Error("session issuance failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate session"})
		default:
			slogx.FromContext(ctx).Error("verification error", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	// Return the session
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": SessionResponse{
			User: SessionUser{
				ID:            session.Identity.ID,
				WalletAddress: session.Identity.Address,
			},
			AccessToken: session.AccessToken,
			ExpiresAt:   session.ExpiresAt,
		},
	})
}

// Me returns the stored identity of the authenticated wallet
func (h *AuthHandlers) Me(c *gin.Context) {
	// Identity is set by the auth middleware
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	// Load the stored record for last_login
	stored, err := h.authService.CurrentIdentity(c.Request.Context(), identity.Address)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             stored.ID,
		"wallet_address": stored.Address,
		"last_login":     stored.LastLogin,
	})
}

// Livez reports that the process is up
func (h *AuthHandlers) Livez(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports whether dependencies are reachable
func (h *AuthHandlers) Readyz(c *gin.Context) {
	if err := h.authService.Ready(c.Request.Context()); err != nil {
		slogx.FromContext(c.Request.Context()).Warn("readiness check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
