// Package client implements the portal's client-side session machinery: a
// file-persisted session store and a request pipeline that attaches the
// access token to every call and transparently refreshes it, at most once
// per call, when the server answers 401.
package client

import "time"

// Identity mirrors the wire shape the server returns for the resolved
// caller. Variant fields are populated per role.
type Identity struct {
	SubjectID         string     `json:"subjectId"`
	Role              string     `json:"role"`
	HomeLocationID    string     `json:"homeLocationId"`
	Active            bool       `json:"active"`
	Permissions       []string   `json:"permissions,omitempty"`
	MembershipStatus  string     `json:"membershipStatus,omitempty"`
	MembershipEndDate *time.Time `json:"membershipEndDate,omitempty"`
}

// Session mirrors the wire shape of an issued token pair.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	ExpiresIn    int64     `json:"expiresIn"`
}
