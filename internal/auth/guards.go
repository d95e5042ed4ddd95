package auth

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/Methdul/newkingdom/internal/domain"
	"github.com/Methdul/newkingdom/internal/events"
	apperrors "github.com/Methdul/newkingdom/pkg/util"
)

// DenyReason identifies why a guard denied access. The most specific reason
// is recorded for the audit trail even when the wire message stays generic.
type DenyReason string

const (
	ReasonOK                 DenyReason = "ok"
	ReasonRoleIneligible     DenyReason = "role_ineligible"
	ReasonCapabilityMissing  DenyReason = "capability_missing"
	ReasonCrossLocation      DenyReason = "cross_location"
	ReasonMembershipInactive DenyReason = "membership_inactive"
	ReasonMembershipExpired  DenyReason = "membership_expired"
)

// PolicyDecision is the allow/deny-plus-reason result of one guard.
type PolicyDecision struct {
	Allowed bool
	Reason  DenyReason
}

func allow() PolicyDecision { return PolicyDecision{Allowed: true, Reason: ReasonOK} }

func deny(reason DenyReason) PolicyDecision { return PolicyDecision{Allowed: false, Reason: reason} }

// DecideRole denies unless the identity's role is in the allowed set.
func DecideRole(identity domain.Identity, allowed ...domain.Role) PolicyDecision {
	for _, role := range allowed {
		if identity.Role() == role {
			return allow()
		}
	}
	return deny(ReasonRoleIneligible)
}

// DecidePermission passes admins unconditionally, staff when their grants
// intersect the wanted capabilities, and never members. The reason
// distinguishes an ineligible role from a missing grant.
func DecidePermission(identity domain.Identity, any ...domain.Capability) PolicyDecision {
	switch id := identity.(type) {
	case domain.StaffIdentity:
		if id.IsAdmin() {
			return allow()
		}
		if id.Permissions.Intersects(any) {
			return allow()
		}
		return deny(ReasonCapabilityMissing)
	case domain.MemberIdentity:
		return deny(ReasonRoleIneligible)
	default:
		return deny(ReasonRoleIneligible)
	}
}

// DecideLocationScope passes admins for any location and everyone else only
// when the resource's location is absent or their own home location.
func DecideLocationScope(identity domain.Identity, resourceLocationID string) PolicyDecision {
	if staff, ok := identity.(domain.StaffIdentity); ok && staff.IsAdmin() {
		return allow()
	}
	if resourceLocationID == "" || resourceLocationID == identity.HomeLocationID() {
		return allow()
	}
	return deny(ReasonCrossLocation)
}

// DecideActiveMembership gates member identities on a live membership. It is
// a no-op for staff and admins. The reason distinguishes a non-active status
// from an end date in the past.
func DecideActiveMembership(identity domain.Identity, now time.Time) PolicyDecision {
	member, ok := identity.(domain.MemberIdentity)
	if !ok {
		return allow()
	}
	if member.MembershipStatus != domain.MembershipActive {
		return deny(ReasonMembershipInactive)
	}
	if member.MembershipEndDate != nil && member.MembershipEndDate.Before(now) {
		return deny(ReasonMembershipExpired)
	}
	return allow()
}

// Policy builds guard middlewares. Guards compose left-to-right on a route:
// the first denial short-circuits and is the one surfaced.
type Policy struct {
	dispatcher events.Dispatcher
	now        func() time.Time
}

// NewPolicy constructs the guard factory.
func NewPolicy(dispatcher events.Dispatcher) *Policy {
	return &Policy{dispatcher: dispatcher, now: time.Now}
}

// WithClock overrides the policy clock. Intended for tests.
func (p *Policy) WithClock(now func() time.Time) *Policy {
	p.now = now
	return p
}

// RequireRole ensures the resolved identity holds one of the allowed roles.
func (p *Policy) RequireRole(allowed ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("no token")
		}
		if decision := DecideRole(identity, allowed...); !decision.Allowed {
			return p.denyRequest(c, identity, decision, "insufficient role")
		}
		return c.Next()
	}
}

// RequirePermission ensures a staff identity holds at least one of the
// wanted capabilities. Admins always pass.
func (p *Policy) RequirePermission(any ...domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("no token")
		}
		decision := DecidePermission(identity, any...)
		if !decision.Allowed {
			message := "missing capability"
			if decision.Reason == ReasonRoleIneligible {
				message = "insufficient role"
			}
			return p.denyRequest(c, identity, decision, message)
		}
		return c.Next()
	}
}

// RequireLocationScope confines non-admin identities to their home location.
// The resource location is read from the path param, then the query param,
// then the body. The wire message stays generic so callers cannot probe
// which location ids exist.
func (p *Policy) RequireLocationScope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("no token")
		}
		decision := DecideLocationScope(identity, resourceLocationID(c))
		if !decision.Allowed {
			return p.denyRequest(c, identity, decision, "access denied")
		}
		return c.Next()
	}
}

// RequireActiveMembership gates member self-service routes on a live
// membership. Staff and admins pass through.
func (p *Policy) RequireActiveMembership() fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("no token")
		}
		decision := DecideActiveMembership(identity, p.now())
		if !decision.Allowed {
			message := "membership not active"
			if decision.Reason == ReasonMembershipExpired {
				message = "membership expired"
			}
			return p.denyRequest(c, identity, decision, message)
		}
		return c.Next()
	}
}

// resourceLocationID extracts the location the request targets, checking the
// path parameter, the query parameter, then the body, in that order.
func resourceLocationID(c *fiber.Ctx) string {
	if id := c.Params("location_id"); id != "" {
		return id
	}
	if id := c.Query("location_id"); id != "" {
		return id
	}
	var body struct {
		LocationID string `json:"location_id"`
	}
	if err := c.BodyParser(&body); err == nil && body.LocationID != "" {
		return body.LocationID
	}
	return ""
}

func (p *Policy) denyRequest(c *fiber.Ctx, identity domain.Identity, decision PolicyDecision, message string) error {
	p.auditDenial(c.UserContext(), identity, decision, c.Path())
	return apperrors.NewForbidden(message)
}

func (p *Policy) auditDenial(ctx context.Context, identity domain.Identity, decision PolicyDecision, path string) {
	if p.dispatcher == nil {
		return
	}
	_ = p.dispatcher.Publish(ctx, events.Event{
		Type:      events.EventAccessDenied,
		SubjectID: identity.SubjectID(),
		Reason:    string(decision.Reason),
		Timestamp: time.Now().UTC(),
		Payload:   map[string]string{"path": path},
	})
}
