package dto

import (
	"time"

	"github.com/Methdul/newkingdom/internal/domain"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest payload for refresh-token.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// LogoutRequest optionally names the refresh token to revoke upstream.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RevokeAllRequest names the subject whose sessions are force-revoked.
type RevokeAllRequest struct {
	SubjectID string `json:"subjectId"`
}

// ChangePasswordRequest carries the credential rotation payload.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// SessionPayload is the wire shape of an issued session.
type SessionPayload struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	ExpiresIn    int64     `json:"expiresIn"`
}

// NewSessionPayload converts a session, computing ExpiresIn from now.
func NewSessionPayload(session domain.Session, now time.Time) SessionPayload {
	return SessionPayload{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		ExpiresAt:    session.AccessExpiresAt,
		ExpiresIn:    int64(session.AccessExpiresAt.Sub(now) / time.Second),
	}
}

// IdentityPayload is the wire shape of a resolved identity. Variant fields
// are populated per kind.
type IdentityPayload struct {
	SubjectID         string     `json:"subjectId"`
	Role              string     `json:"role"`
	HomeLocationID    string     `json:"homeLocationId"`
	Active            bool       `json:"active"`
	Permissions       []string   `json:"permissions,omitempty"`
	MembershipStatus  string     `json:"membershipStatus,omitempty"`
	MembershipEndDate *time.Time `json:"membershipEndDate,omitempty"`
}

// NewIdentityPayload converts an identity.
func NewIdentityPayload(identity domain.Identity) IdentityPayload {
	payload := IdentityPayload{
		SubjectID:      identity.SubjectID(),
		Role:           string(identity.Role()),
		HomeLocationID: identity.HomeLocationID(),
		Active:         identity.Active(),
	}
	switch id := identity.(type) {
	case domain.StaffIdentity:
		for _, cap := range id.Permissions.Slice() {
			payload.Permissions = append(payload.Permissions, string(cap))
		}
	case domain.MemberIdentity:
		payload.MembershipStatus = string(id.MembershipStatus)
		payload.MembershipEndDate = id.MembershipEndDate
	}
	return payload
}
