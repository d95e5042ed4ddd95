package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/Methdul/newkingdom/internal/api/dto"
	"github.com/Methdul/newkingdom/internal/auth"
	"github.com/Methdul/newkingdom/internal/domain"
	"github.com/Methdul/newkingdom/internal/repository"
	apperrors "github.com/Methdul/newkingdom/pkg/util"
)

// MembersHandler exposes the operations views over members that the
// authorization engine scopes: the location-scoped listing and the manual
// reactivation of a suspended member.
type MembersHandler struct {
	members  repository.MemberRepository
	profiles repository.MemberProfileRepository
}

// NewMembersHandler constructs handler.
func NewMembersHandler(members repository.MemberRepository, profiles repository.MemberProfileRepository) *MembersHandler {
	return &MembersHandler{members: members, profiles: profiles}
}

// List handles GET /members. Admins see every location and may filter
// freely; staff are pinned to their home location no matter what location
// id the query carries.
func (h *MembersHandler) List(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no token")
	}

	filter := repository.MemberFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if status := c.Query("status"); status != "" {
		s := domain.MembershipStatus(status)
		filter.Status = &s
	}

	switch id := identity.(type) {
	case domain.StaffIdentity:
		if id.IsAdmin() {
			if location := c.Query("location_id"); location != "" {
				filter.LocationID = &location
			}
		} else {
			home := id.HomeLocationID()
			filter.LocationID = &home
		}
	default:
		return apperrors.NewForbidden("insufficient role")
	}

	profiles, err := h.members.List(c.UserContext(), filter)
	if err != nil {
		return err
	}

	summaries := make([]dto.MemberSummary, 0, len(profiles))
	for _, profile := range profiles {
		summaries = append(summaries, dto.NewMemberSummary(profile))
	}
	return c.JSON(fiber.Map{"data": summaries})
}

// Reactivate handles POST /members/:subject_id/reactivate, the manual
// un-suspend path. Nothing reactivates a member automatically when a
// suspension window elapses; staff do it here.
func (h *MembersHandler) Reactivate(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("no token")
	}

	subjectID := c.Params("subject_id")
	profile, err := h.profiles.GetBySubjectID(c.UserContext(), subjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("member", nil)
		}
		return err
	}

	// scope against the member's own location, not anything the caller sent
	if decision := auth.DecideLocationScope(identity, profile.HomeLocationID); !decision.Allowed {
		return apperrors.NewForbidden("access denied")
	}

	if profile.MembershipStatus != domain.MembershipSuspended {
		return apperrors.NewValidationError("member is not suspended", nil)
	}

	profile.MembershipStatus = domain.MembershipActive
	profile.SuspendedUntil = nil
	if err := h.profiles.Update(c.UserContext(), profile); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"data": dto.NewMemberSummary(*profile)})
}
