package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Methdul/newkingdom/internal/api/dto"
	"github.com/Methdul/newkingdom/internal/auth"
	apperrors "github.com/Methdul/newkingdom/pkg/util"
)

// AuthHandler exposes the session lifecycle endpoints.
type AuthHandler struct {
	sessions *auth.SessionManager
}

// NewAuthHandler constructs handler.
func NewAuthHandler(sessions *auth.SessionManager) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	identity, session, err := h.sessions.Login(c.UserContext(), req.Email, req.Password, c.IP())
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"user":    dto.NewIdentityPayload(identity),
			"session": dto.NewSessionPayload(session, time.Now()),
		},
	})
}

// Refresh handles POST /auth/refresh-token.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.RefreshToken == "" {
		return apperrors.NewValidationError("refreshToken required", nil)
	}

	session, err := h.sessions.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"session": dto.NewSessionPayload(session, time.Now()),
		},
	})
}

// Logout handles POST /auth/logout. The route requires a valid access token
// but the response is 200 even when the upstream revoke fails.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no token")
	}

	var req dto.LogoutRequest
	_ = c.BodyParser(&req)

	h.sessions.Logout(c.UserContext(), identity.SubjectID(), req.RefreshToken)
	return c.JSON(fiber.Map{"data": fiber.Map{"loggedOut": true}})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no token")
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityPayload(identity)})
}

// ChangePassword handles POST /auth/change-password. Rotating the
// credential revokes every session for the subject, including the one
// making this call: the client must log in again.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no token")
	}

	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("currentPassword and newPassword required", nil)
	}
	if len(req.NewPassword) < 8 {
		return apperrors.NewValidationError("password must be at least 8 characters", nil)
	}

	revoked, err := h.sessions.ChangePassword(c.UserContext(), identity.SubjectID(), req.CurrentPassword, req.NewPassword)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data": fiber.Map{"passwordChanged": true, "revokedSessions": revoked},
	})
}

// RevokeAll handles POST /auth/sessions/revoke-all, the privileged forced
// sign-out for a subject.
func (h *AuthHandler) RevokeAll(c *fiber.Ctx) error {
	var req dto.RevokeAllRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.SubjectID == "" {
		return apperrors.NewValidationError("subjectId required", nil)
	}

	revoked, err := h.sessions.RevokeAll(c.UserContext(), req.SubjectID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"data": fiber.Map{"revokedSessions": revoked},
	})
}
