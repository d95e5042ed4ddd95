package domain

import "time"

// StaffProfile is the staff-type profile row keyed by subject id. Role is
// restricted to RoleAdmin or RoleStaff.
type StaffProfile struct {
	SubjectID      string
	Name           string
	Email          string
	PasswordHash   string
	Role           Role
	HomeLocationID string
	Permissions    CapabilitySet
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Identity builds the StaffIdentity for this profile.
func (p *StaffProfile) Identity() StaffIdentity {
	return StaffIdentity{
		Subject:      p.SubjectID,
		StaffRole:    p.Role,
		HomeLocation: p.HomeLocationID,
		Permissions:  p.Permissions,
		ActiveFlag:   p.Active,
	}
}
