package handlers

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Methdul/newkingdom/internal/auth"
	"github.com/Methdul/newkingdom/internal/domain"
	"github.com/Methdul/newkingdom/internal/repository"
	apperrors "github.com/Methdul/newkingdom/pkg/util"
)

type memberListStub struct {
	lastFilter repository.MemberFilter
	results    []domain.MemberProfile
}

func (s *memberListStub) List(_ context.Context, filter repository.MemberFilter) ([]domain.MemberProfile, error) {
	s.lastFilter = filter
	return s.results, nil
}

type memberProfileStub struct {
	profiles map[string]*domain.MemberProfile
	updated  *domain.MemberProfile
}

func (s *memberProfileStub) GetBySubjectID(_ context.Context, subjectID string) (*domain.MemberProfile, error) {
	if profile, ok := s.profiles[subjectID]; ok {
		copied := *profile
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

func (s *memberProfileStub) GetByEmail(_ context.Context, email string) (*domain.MemberProfile, error) {
	for _, profile := range s.profiles {
		if profile.Email == email {
			copied := *profile
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *memberProfileStub) Update(_ context.Context, profile *domain.MemberProfile) error {
	s.updated = profile
	s.profiles[profile.SubjectID] = profile
	return nil
}

func handlerApp(identity domain.Identity, handler *MembersHandler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"error": domainErr.Message})
		},
	})
	pin := func(c *fiber.Ctx) error {
		if identity != nil {
			auth.WithIdentity(c, identity)
		}
		return c.Next()
	}
	app.Get("/members", pin, handler.List)
	app.Post("/members/:subject_id/reactivate", pin, handler.Reactivate)
	return app
}

func adminIdentity() domain.StaffIdentity {
	return domain.StaffIdentity{
		Subject:      "admin-1",
		StaffRole:    domain.RoleAdmin,
		HomeLocation: "loc-hq",
		ActiveFlag:   true,
	}
}

func staffAt(location string) domain.StaffIdentity {
	return domain.StaffIdentity{
		Subject:      "staff-1",
		StaffRole:    domain.RoleStaff,
		HomeLocation: location,
		Permissions:  domain.NewCapabilitySet(domain.CapMembersRead, domain.CapMembersWrite),
		ActiveFlag:   true,
	}
}

func TestListAdminSeesEveryLocation(t *testing.T) {
	members := &memberListStub{}
	app := handlerApp(adminIdentity(), NewMembersHandler(members, &memberProfileStub{}))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/members", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Nil(t, members.lastFilter.LocationID, "no filter means all locations for an admin")
}

func TestListAdminMayFilterByLocation(t *testing.T) {
	members := &memberListStub{}
	app := handlerApp(adminIdentity(), NewMembersHandler(members, &memberProfileStub{}))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/members?location_id=loc-b", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, members.lastFilter.LocationID)
	assert.Equal(t, "loc-b", *members.lastFilter.LocationID)
}

func TestListStaffPinnedToHomeLocation(t *testing.T) {
	members := &memberListStub{}
	app := handlerApp(staffAt("loc-a"), NewMembersHandler(members, &memberProfileStub{}))

	// the foreign location_id in the query is ignored, not an error
	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/members?location_id=loc-b", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, members.lastFilter.LocationID)
	assert.Equal(t, "loc-a", *members.lastFilter.LocationID)
}

func TestListRejectsMembers(t *testing.T) {
	identity := domain.MemberIdentity{
		Subject:          "member-1",
		HomeLocation:     "loc-a",
		MembershipStatus: domain.MembershipActive,
		ActiveFlag:       true,
	}
	app := handlerApp(identity, NewMembersHandler(&memberListStub{}, &memberProfileStub{}))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/members", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func suspendedProfile(subjectID, location string) *domain.MemberProfile {
	until := time.Now().Add(24 * time.Hour)
	return &domain.MemberProfile{
		SubjectID:        subjectID,
		Email:            subjectID + "@example.com",
		HomeLocationID:   location,
		MembershipStatus: domain.MembershipSuspended,
		SuspendedUntil:   &until,
	}
}

func TestReactivateSuspendedMember(t *testing.T) {
	profiles := &memberProfileStub{profiles: map[string]*domain.MemberProfile{
		"member-1": suspendedProfile("member-1", "loc-a"),
	}}
	app := handlerApp(staffAt("loc-a"), NewMembersHandler(&memberListStub{}, profiles))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/members/member-1/reactivate", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NotNil(t, profiles.updated)
	assert.Equal(t, domain.MembershipActive, profiles.updated.MembershipStatus)
	assert.Nil(t, profiles.updated.SuspendedUntil)
}

func TestReactivateCrossLocationDenied(t *testing.T) {
	profiles := &memberProfileStub{profiles: map[string]*domain.MemberProfile{
		"member-1": suspendedProfile("member-1", "loc-b"),
	}}
	app := handlerApp(staffAt("loc-a"), NewMembersHandler(&memberListStub{}, profiles))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/members/member-1/reactivate", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Nil(t, profiles.updated)
}

func TestReactivateAdminCrossesLocations(t *testing.T) {
	profiles := &memberProfileStub{profiles: map[string]*domain.MemberProfile{
		"member-1": suspendedProfile("member-1", "loc-b"),
	}}
	app := handlerApp(adminIdentity(), NewMembersHandler(&memberListStub{}, profiles))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/members/member-1/reactivate", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestReactivateRequiresSuspendedStatus(t *testing.T) {
	profile := suspendedProfile("member-1", "loc-a")
	profile.MembershipStatus = domain.MembershipActive
	profile.SuspendedUntil = nil
	profiles := &memberProfileStub{profiles: map[string]*domain.MemberProfile{"member-1": profile}}
	app := handlerApp(staffAt("loc-a"), NewMembersHandler(&memberListStub{}, profiles))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/members/member-1/reactivate", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReactivateUnknownMember(t *testing.T) {
	profiles := &memberProfileStub{profiles: map[string]*domain.MemberProfile{}}
	app := handlerApp(staffAt("loc-a"), NewMembersHandler(&memberListStub{}, profiles))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/members/ghost/reactivate", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
