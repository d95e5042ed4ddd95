package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Methdul/newkingdom/internal/domain"
	"github.com/Methdul/newkingdom/internal/events"
	"github.com/Methdul/newkingdom/internal/repository"
	apperrors "github.com/Methdul/newkingdom/pkg/util"
)

// SessionManager owns the two-token session lifecycle: it mints the access
// and refresh pair at login, rotates it on refresh, and revokes it on
// logout or forced sign-out.
type SessionManager struct {
	tokens     *TokenManager
	staff      repository.StaffProfileRepository
	members    repository.MemberProfileRepository
	sessions   repository.SessionRepository
	dispatcher events.Dispatcher
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time
}

// NewSessionManager builds the manager.
func NewSessionManager(tokens *TokenManager, staff repository.StaffProfileRepository, members repository.MemberProfileRepository, sessions repository.SessionRepository, dispatcher events.Dispatcher, refreshTTL time.Duration, bcryptCost int) *SessionManager {
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &SessionManager{
		tokens:     tokens,
		staff:      staff,
		members:    members,
		sessions:   sessions,
		dispatcher: dispatcher,
		refreshTTL: refreshTTL,
		bcryptCost: bcryptCost,
		now:        time.Now,
	}
}

// WithClock overrides the manager's clock. Intended for tests.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

// Login checks credentials against both profile tables and mints a session.
// The failure message never reveals whether the email or the password was
// wrong. An inactive account is the one case surfaced distinctly, as 403.
func (m *SessionManager) Login(ctx context.Context, email, password, origin string) (domain.Identity, domain.Session, error) {
	identity, hash, err := m.findCredentials(ctx, email)
	if err != nil {
		// an unknown email is an auth failure; a broken profile store is not
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.Session{}, err
		}
		m.audit(ctx, events.EventAuthFailed, "", origin, "invalid credentials")
		return nil, domain.Session{}, apperrors.NewUnauthorized("invalid email or password")
	}

	if err := ComparePassword(hash, password); err != nil {
		m.audit(ctx, events.EventAuthFailed, identity.SubjectID(), origin, "invalid credentials")
		return nil, domain.Session{}, apperrors.NewUnauthorized("invalid email or password")
	}

	if !identity.Active() {
		m.audit(ctx, events.EventAuthFailed, identity.SubjectID(), origin, "account deactivated")
		return nil, domain.Session{}, apperrors.NewForbidden("account inactive")
	}

	session, err := m.mintSession(ctx, identity.SubjectID(), identity.Role())
	if err != nil {
		return nil, domain.Session{}, err
	}

	m.audit(ctx, events.EventSessionCreated, identity.SubjectID(), origin, "")
	return identity, session, nil
}

// Refresh rotates the pair: the presented token is consumed atomically
// before the replacement is minted, so it is single-use even under
// concurrent presentation and a failed rotation can never leave both the
// old and the new session live. An invalid, already-used, or expired token
// forces a full re-login.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string) (domain.Session, error) {
	record, err := m.sessions.Consume(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return domain.Session{}, apperrors.NewUnauthorized("invalid refresh token")
		}
		return domain.Session{}, err
	}

	if !m.now().Before(record.RefreshExpiresAt) {
		return domain.Session{}, apperrors.NewUnauthorized("refresh token expired")
	}

	return m.mintSession(ctx, record.SubjectID, record.Role)
}

// Logout revokes the presented refresh token upstream on a best-effort
// basis. It never fails: the caller always ends up logged out locally.
func (m *SessionManager) Logout(ctx context.Context, subjectID, refreshToken string) {
	if refreshToken != "" {
		_ = m.sessions.Delete(ctx, refreshToken)
	}
	m.audit(ctx, events.EventSessionRevoked, subjectID, "", "logout")
}

// RevokeAll invalidates every outstanding session for a subject. Privileged:
// used for forced sign-out after a suspected compromise or password change.
func (m *SessionManager) RevokeAll(ctx context.Context, subjectID string) (int, error) {
	revoked, err := m.sessions.DeleteAllForSubject(ctx, subjectID)
	if err != nil {
		return 0, err
	}
	m.audit(ctx, events.EventSessionRevoked, subjectID, "", "revoke_all")
	return revoked, nil
}

// ChangePassword re-hashes the subject's credential after verifying the
// current one, then revokes every outstanding session so stolen refresh
// tokens die with the old password. Returns the number of sessions revoked.
func (m *SessionManager) ChangePassword(ctx context.Context, subjectID, current, next string) (int, error) {
	if err := m.rotateCredential(ctx, subjectID, current, next); err != nil {
		return 0, err
	}
	return m.RevokeAll(ctx, subjectID)
}

func (m *SessionManager) rotateCredential(ctx context.Context, subjectID, current, next string) error {
	staff, err := m.staff.GetBySubjectID(ctx, subjectID)
	if err == nil {
		if err := ComparePassword(staff.PasswordHash, current); err != nil {
			m.audit(ctx, events.EventAuthFailed, subjectID, "", "invalid credentials")
			return apperrors.NewUnauthorized("current password is incorrect")
		}
		hash, err := HashPassword(next, m.bcryptCost)
		if err != nil {
			return err
		}
		staff.PasswordHash = hash
		return m.staff.Update(ctx, staff)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	member, err := m.members.GetBySubjectID(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := ComparePassword(member.PasswordHash, current); err != nil {
		m.audit(ctx, events.EventAuthFailed, subjectID, "", "invalid credentials")
		return apperrors.NewUnauthorized("current password is incorrect")
	}
	hash, err := HashPassword(next, m.bcryptCost)
	if err != nil {
		return err
	}
	member.PasswordHash = hash
	return m.members.Update(ctx, member)
}

func (m *SessionManager) mintSession(ctx context.Context, subjectID string, role domain.Role) (domain.Session, error) {
	accessToken, accessExpiresAt, err := m.tokens.Generate(subjectID, role)
	if err != nil {
		return domain.Session{}, err
	}

	refreshToken := uuid.NewString()
	refreshExpiresAt := m.now().Add(m.refreshTTL)

	if err := m.sessions.Save(ctx, repository.SessionRecord{
		SubjectID:        subjectID,
		Role:             role,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}); err != nil {
		return domain.Session{}, err
	}

	return domain.Session{
		SubjectID:        subjectID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

// findCredentials looks the email up in the staff table first, then the
// member table, mirroring profile resolution order.
func (m *SessionManager) findCredentials(ctx context.Context, email string) (domain.Identity, string, error) {
	staff, err := m.staff.GetByEmail(ctx, email)
	if err == nil {
		return staff.Identity(), staff.PasswordHash, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, "", err
	}

	member, err := m.members.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	return member.Identity(), member.PasswordHash, nil
}

func (m *SessionManager) audit(ctx context.Context, eventType events.EventType, subjectID, origin, reason string) {
	if m.dispatcher == nil {
		return
	}
	_ = m.dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		SubjectID: subjectID,
		Origin:    origin,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}
