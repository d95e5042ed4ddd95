package domain

import "time"

// Role enumerates the caller kinds the portal recognizes.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleStaff  Role = "STAFF"
	RoleMember Role = "MEMBER"
)

// Capability is a named grant held by staff, distinct from role.
type Capability string

const (
	CapMembersRead    Capability = "members:read"
	CapMembersWrite   Capability = "members:write"
	CapPaymentsRead   Capability = "payments:read"
	CapPaymentsWrite  Capability = "payments:write"
	CapPlansWrite     Capability = "plans:write"
	CapCheckinsWrite  Capability = "checkins:write"
	CapLocationsWrite Capability = "locations:write"
	CapReportsRead    Capability = "reports:read"
)

// Capabilities lists every known capability; unknown strings from storage
// are dropped at the repository boundary.
var Capabilities = []Capability{
	CapMembersRead,
	CapMembersWrite,
	CapPaymentsRead,
	CapPaymentsWrite,
	CapPlansWrite,
	CapCheckinsWrite,
	CapLocationsWrite,
	CapReportsRead,
}

// CapabilitySet holds a staff identity's grants.
type CapabilitySet map[Capability]struct{}

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, cap := range caps {
		set[cap] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the capability.
func (s CapabilitySet) Has(cap Capability) bool {
	_, ok := s[cap]
	return ok
}

// Intersects reports whether the set holds any of the given capabilities.
func (s CapabilitySet) Intersects(caps []Capability) bool {
	for _, cap := range caps {
		if s.Has(cap) {
			return true
		}
	}
	return false
}

// Slice returns the capabilities in an unspecified order.
func (s CapabilitySet) Slice() []Capability {
	out := make([]Capability, 0, len(s))
	for cap := range s {
		out = append(out, cap)
	}
	return out
}

// Identity is the normalized result of resolving a bearer credential.
// Exactly two variants exist: StaffIdentity and MemberIdentity. The union is
// closed by the unexported method; guards switch exhaustively on the
// concrete type.
type Identity interface {
	SubjectID() string
	Role() Role
	HomeLocationID() string
	Active() bool

	isIdentity()
}

// StaffIdentity is the resolved identity of an admin or staff operator.
type StaffIdentity struct {
	Subject      string
	StaffRole    Role // RoleAdmin or RoleStaff
	HomeLocation string
	Permissions  CapabilitySet
	ActiveFlag   bool
}

func (s StaffIdentity) SubjectID() string      { return s.Subject }
func (s StaffIdentity) Role() Role             { return s.StaffRole }
func (s StaffIdentity) HomeLocationID() string { return s.HomeLocation }
func (s StaffIdentity) Active() bool           { return s.ActiveFlag }
func (StaffIdentity) isIdentity()              {}

// IsAdmin reports whether the staff identity carries the admin role.
func (s StaffIdentity) IsAdmin() bool { return s.StaffRole == RoleAdmin }

// MemberIdentity is the resolved identity of a gym member.
type MemberIdentity struct {
	Subject           string
	HomeLocation      string
	MembershipStatus  MembershipStatus
	MembershipEndDate *time.Time
	ActiveFlag        bool
}

func (m MemberIdentity) SubjectID() string      { return m.Subject }
func (MemberIdentity) Role() Role               { return RoleMember }
func (m MemberIdentity) HomeLocationID() string { return m.HomeLocation }
func (m MemberIdentity) Active() bool           { return m.ActiveFlag }
func (MemberIdentity) isIdentity()              {}
