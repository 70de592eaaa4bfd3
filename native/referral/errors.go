package referral

import "errors"

var (
	ErrAlreadyReferred = errors.New("referral: already referred")
	ErrSelfReferral    = errors.New("referral: self referral")
	ErrInvalidReferrer = errors.New("referral: invalid referrer")
	// ErrReferralCycle is returned when the new edge would make the referral
	// its own ancestor.
	ErrReferralCycle = errors.New("referral: cycle")
	ErrInvalidLevels = errors.New("referral: invalid level commissions")
)
