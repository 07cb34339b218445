package models

// OktaStatus represents the lifecycle status of an identity in the Okta directory.
// The set of values follows the Okta users API user status model.
type OktaStatus string

const (
	// OktaStatusStaged indicates the account was created but not activated yet.
	OktaStatusStaged OktaStatus = "STAGED"
	// OktaStatusProvisioned indicates the account was activated but the user hasn't completed enrollment.
	OktaStatusProvisioned OktaStatus = "PROVISIONED"
	// OktaStatusActive indicates a fully active account.
	OktaStatusActive OktaStatus = "ACTIVE"
	// OktaStatusRecovery indicates the user is in a password recovery flow.
	OktaStatusRecovery OktaStatus = "RECOVERY"
	// OktaStatusPasswordExpired indicates the account password has expired.
	OktaStatusPasswordExpired OktaStatus = "PASSWORD_EXPIRED"
	// OktaStatusLockedOut indicates the account is locked out after failed attempts.
	OktaStatusLockedOut OktaStatus = "LOCKED_OUT"
	// OktaStatusSuspended indicates the account was suspended by an administrator.
	OktaStatusSuspended OktaStatus = "SUSPENDED"
	// OktaStatusDeprovisioned indicates the account was deactivated.
	OktaStatusDeprovisioned OktaStatus = "DEPROVISIONED"
)

// Valid reports whether the status is one of the known Okta lifecycle states.
func (s OktaStatus) Valid() bool {
	switch s {
	case OktaStatusStaged, OktaStatusProvisioned, OktaStatusActive,
		OktaStatusRecovery, OktaStatusPasswordExpired, OktaStatusLockedOut,
		OktaStatusSuspended, OktaStatusDeprovisioned:
		return true
	}

	return false
}
