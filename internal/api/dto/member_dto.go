package dto

import (
	"time"

	"github.com/Methdul/newkingdom/internal/domain"
)

// MemberSummary is the listing shape for member rows. Password hashes never
// leave the repository layer.
type MemberSummary struct {
	SubjectID         string     `json:"subjectId"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	HomeLocationID    string     `json:"homeLocationId"`
	MembershipStatus  string     `json:"membershipStatus"`
	MembershipEndDate *time.Time `json:"membershipEndDate,omitempty"`
	SuspendedUntil    *time.Time `json:"suspendedUntil,omitempty"`
}

// NewMemberSummary converts a profile row.
func NewMemberSummary(profile domain.MemberProfile) MemberSummary {
	return MemberSummary{
		SubjectID:         profile.SubjectID,
		Name:              profile.Name,
		Email:             profile.Email,
		HomeLocationID:    profile.HomeLocationID,
		MembershipStatus:  string(profile.MembershipStatus),
		MembershipEndDate: profile.MembershipEndDate,
		SuspendedUntil:    profile.SuspendedUntil,
	}
}
