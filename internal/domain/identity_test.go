package domain

import (
	"testing"
	"time"
)

func TestCapabilitySet(t *testing.T) {
	set := NewCapabilitySet(CapMembersRead, CapPaymentsRead)

	if !set.Has(CapMembersRead) {
		t.Error("expected members:read to be present")
	}
	if set.Has(CapMembersWrite) {
		t.Error("did not expect members:write")
	}
	if !set.Intersects([]Capability{CapPlansWrite, CapPaymentsRead}) {
		t.Error("expected intersection on payments:read")
	}
	if set.Intersects([]Capability{CapPlansWrite, CapCheckinsWrite}) {
		t.Error("did not expect intersection")
	}
	if set.Intersects(nil) {
		t.Error("empty want-set must not intersect")
	}
}

func TestMembershipStatusUsable(t *testing.T) {
	usable := map[MembershipStatus]bool{
		MembershipActive:    true,
		MembershipPending:   true,
		MembershipInactive:  false,
		MembershipSuspended: false,
		MembershipExpired:   false,
		MembershipCancelled: false,
	}
	for status, want := range usable {
		if got := status.Usable(); got != want {
			t.Errorf("Usable(%s) = %v, want %v", status, got, want)
		}
	}
}

func TestMemberProfileIdentity(t *testing.T) {
	end := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	profile := MemberProfile{
		SubjectID:         "m-1",
		HomeLocationID:    "loc-a",
		MembershipStatus:  MembershipPending,
		MembershipEndDate: &end,
	}

	identity := profile.Identity()
	if identity.Role() != RoleMember {
		t.Errorf("role = %s, want MEMBER", identity.Role())
	}
	if !identity.Active() {
		t.Error("pending membership should yield an active identity")
	}

	profile.MembershipStatus = MembershipSuspended
	if profile.Identity().Active() {
		t.Error("suspended membership must not yield an active identity")
	}
}

func TestSessionValidity(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	session := Session{
		AccessExpiresAt:  now.Add(time.Hour),
		RefreshExpiresAt: now.Add(24 * time.Hour),
	}

	if !session.AccessValid(now) {
		t.Error("access token should be valid before expiry")
	}
	if session.AccessValid(session.AccessExpiresAt) {
		t.Error("access token must be rejected at the exact expiry instant")
	}
	if !session.RefreshValid(now.Add(23 * time.Hour)) {
		t.Error("refresh token should be valid before expiry")
	}
	if session.RefreshValid(now.Add(25 * time.Hour)) {
		t.Error("refresh token must not outlive its expiry")
	}
}

func TestPlanAmountWithinTolerance(t *testing.T) {
	plan := Plan{PriceCents: 10000}

	cases := []struct {
		amount int64
		want   bool
	}{
		{1000, true},   // 10% floor
		{999, false},   // below floor
		{10000, true},  // exact price
		{11000, true},  // 110% ceiling
		{11001, false}, // above ceiling
	}
	for _, tc := range cases {
		if got := plan.AmountWithinTolerance(tc.amount); got != tc.want {
			t.Errorf("AmountWithinTolerance(%d) = %v, want %v", tc.amount, got, tc.want)
		}
	}

	if (Plan{}).AmountWithinTolerance(0) {
		t.Error("zero-priced plan must reject every amount")
	}
}
