package domain

import "time"

// MembershipStatus represents lifecycle states for a membership.
type MembershipStatus string

const (
	MembershipActive    MembershipStatus = "ACTIVE"
	MembershipInactive  MembershipStatus = "INACTIVE"
	MembershipSuspended MembershipStatus = "SUSPENDED"
	MembershipExpired   MembershipStatus = "EXPIRED"
	MembershipCancelled MembershipStatus = "CANCELLED"
	MembershipPending   MembershipStatus = "PENDING"
)

// Usable reports whether the status permits the member to authenticate at
// all. Pending members may sign in (to pay, update details) but fail the
// active-membership guard on member-only operations.
func (s MembershipStatus) Usable() bool {
	return s == MembershipActive || s == MembershipPending
}

// MemberProfile is the member-type profile row keyed by subject id.
type MemberProfile struct {
	SubjectID         string
	Name              string
	Email             string
	PasswordHash      string
	HomeLocationID    string
	MembershipStatus  MembershipStatus
	MembershipEndDate *time.Time
	// SuspendedUntil is informational only: nothing reactivates the member
	// when it elapses, staff do that manually via the reactivate endpoint.
	SuspendedUntil *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity builds the MemberIdentity for this profile.
func (p *MemberProfile) Identity() MemberIdentity {
	return MemberIdentity{
		Subject:           p.SubjectID,
		HomeLocation:      p.HomeLocationID,
		MembershipStatus:  p.MembershipStatus,
		MembershipEndDate: p.MembershipEndDate,
		ActiveFlag:        p.MembershipStatus.Usable(),
	}
}
