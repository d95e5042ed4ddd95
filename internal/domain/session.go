package domain

import "time"

// Session is the two-token credential pair minted at login. The access
// token authorizes calls until AccessExpiresAt; the refresh token is used
// solely to mint a replacement pair and never outlives RefreshExpiresAt.
// Invariant: AccessExpiresAt < RefreshExpiresAt.
type Session struct {
	SubjectID        string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AccessValid reports whether the access token is still usable at now.
// Validity is strict: at exactly AccessExpiresAt the token is rejected.
func (s Session) AccessValid(now time.Time) bool {
	return now.Before(s.AccessExpiresAt)
}

// RefreshValid reports whether the refresh token is still usable at now.
func (s Session) RefreshValid(now time.Time) bool {
	return now.Before(s.RefreshExpiresAt)
}
