package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Methdul/newkingdom/internal/domain"
	"github.com/Methdul/newkingdom/internal/events"
	"github.com/Methdul/newkingdom/internal/repository"
	apperrors "github.com/Methdul/newkingdom/pkg/util"
)

const identityKey = "auth_identity"

// Verifier confirms a bearer credential and yields the stable subject id.
// The JWT-backed TokenVerifier is the default; an external provider can
// replace it without touching the resolver.
type Verifier interface {
	Verify(ctx context.Context, token string) (subjectID string, err error)
}

// TokenVerifier verifies locally-minted JWT access tokens.
type TokenVerifier struct {
	tokens *TokenManager
}

// NewTokenVerifier wraps a TokenManager as a Verifier.
func NewTokenVerifier(tokens *TokenManager) *TokenVerifier {
	return &TokenVerifier{tokens: tokens}
}

// Verify parses the token and returns its subject.
func (v *TokenVerifier) Verify(_ context.Context, token string) (string, error) {
	claims, err := v.tokens.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.SubjectID, nil
}

// ResolverConfig carries the token carrier names and the verifier timeout.
type ResolverConfig struct {
	CookieName        string
	CustomTokenHeader string
	VerifierTimeout   time.Duration
}

// Resolver turns a bearer credential into a normalized Identity. It is
// stateless: every request builds its Identity fresh, nothing is cached.
type Resolver struct {
	verifier   Verifier
	staff      repository.StaffProfileRepository
	members    repository.MemberProfileRepository
	dispatcher events.Dispatcher
	cfg        ResolverConfig
}

// NewResolver constructs the resolver.
func NewResolver(verifier Verifier, staff repository.StaffProfileRepository, members repository.MemberProfileRepository, dispatcher events.Dispatcher, cfg ResolverConfig) *Resolver {
	if cfg.VerifierTimeout <= 0 {
		cfg.VerifierTimeout = 5 * time.Second
	}
	return &Resolver{verifier: verifier, staff: staff, members: members, dispatcher: dispatcher, cfg: cfg}
}

// ExtractToken pulls the bearer credential from the request, checking the
// Authorization header, then the session cookie, then the custom header.
func (r *Resolver) ExtractToken(c *fiber.Ctx) (string, bool) {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1], true
		}
	}
	if r.cfg.CookieName != "" {
		if cookie := c.Cookies(r.cfg.CookieName); cookie != "" {
			return cookie, true
		}
	}
	if r.cfg.CustomTokenHeader != "" {
		if header := c.Get(r.cfg.CustomTokenHeader); header != "" {
			return header, true
		}
	}
	return "", false
}

// Resolve verifies the token and loads whichever profile table holds the
// subject. The deactivated-account gate runs even when resolution itself
// succeeded. origin is the caller network origin, used for the audit trail.
func (r *Resolver) Resolve(ctx context.Context, token, origin string) (domain.Identity, error) {
	verifyCtx, cancel := context.WithTimeout(ctx, r.cfg.VerifierTimeout)
	defer cancel()

	subjectID, err := r.verifier.Verify(verifyCtx, token)
	if err != nil {
		r.audit(ctx, events.EventAuthFailed, "", origin, "invalid or expired token")
		return nil, apperrors.NewUnauthorized("invalid or expired token")
	}

	identity, err := r.lookupProfile(verifyCtx, subjectID)
	if err != nil {
		// only a genuinely absent profile is an auth failure; a broken
		// profile store must surface as an internal error, not a 401
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		r.audit(ctx, events.EventAuthFailed, subjectID, origin, "profile not found")
		return nil, apperrors.NewUnauthorized("profile not found")
	}

	if !identity.Active() {
		r.audit(ctx, events.EventAuthFailed, subjectID, origin, "account deactivated")
		return nil, apperrors.NewUnauthorized("account deactivated")
	}

	r.audit(ctx, events.EventAuthSucceeded, subjectID, origin, "")
	return identity, nil
}

// lookupProfile queries the staff table first, then the member table.
// Exactly one lookup must succeed; anything else fails resolution.
func (r *Resolver) lookupProfile(ctx context.Context, subjectID string) (domain.Identity, error) {
	staff, err := r.staff.GetBySubjectID(ctx, subjectID)
	if err == nil {
		return staff.Identity(), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	member, err := r.members.GetBySubjectID(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return member.Identity(), nil
}

// Middleware enforces authentication: any request without a resolvable,
// active identity is rejected with 401.
func (r *Resolver) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := r.ExtractToken(c)
		if !ok {
			r.audit(c.UserContext(), events.EventAuthFailed, "", c.IP(), "no token")
			return apperrors.NewUnauthorized("no token")
		}

		identity, err := r.Resolve(c.UserContext(), token, c.IP())
		if err != nil {
			return err
		}

		WithIdentity(c, identity)
		return c.Next()
	}
}

// OptionalMiddleware resolves an identity when one is presented but lets
// anonymous or failed resolutions through with no identity attached.
func (r *Resolver) OptionalMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := r.ExtractToken(c)
		if !ok {
			return c.Next()
		}

		if identity, err := r.Resolve(c.UserContext(), token, c.IP()); err == nil {
			WithIdentity(c, identity)
		}
		return c.Next()
	}
}

// WithIdentity attaches a resolved identity to the request context.
func WithIdentity(c *fiber.Ctx, identity domain.Identity) {
	c.Locals(identityKey, identity)
}

// IdentityFromContext retrieves the resolved identity, if any.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	val := c.Locals(identityKey)
	if val == nil {
		return nil, false
	}
	identity, ok := val.(domain.Identity)
	return identity, ok
}

func (r *Resolver) audit(ctx context.Context, eventType events.EventType, subjectID, origin, reason string) {
	if r.dispatcher == nil {
		return
	}
	_ = r.dispatcher.Publish(ctx, events.Event{
		Type:      eventType,
		SubjectID: subjectID,
		Origin:    origin,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
}
