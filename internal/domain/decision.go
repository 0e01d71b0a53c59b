package domain

import "time"

// Outcome is the result class of an entitlement decision.
type Outcome string

const (
	OutcomeAdmitted             Outcome = "admitted"
	OutcomeRateLimited          Outcome = "rate_limited"
	OutcomeSubscriptionRequired Outcome = "subscription_required"
	OutcomeQuotaExceeded        Outcome = "quota_exceeded"
	OutcomeNotAuthenticated     Outcome = "not_authenticated"
)

// Decision is the gate's answer for one privileged action. Denials are
// values, not errors.
type Decision struct {
	Outcome Outcome
	Plan    Plan
	RetryAt time.Time // RateLimited only
	Used    int       // QuotaExceeded and Admitted
	Ceiling int       // QuotaExceeded and Admitted
}

// Admitted returns true if the action may proceed.
func (d Decision) Admitted() bool {
	return d.Outcome == OutcomeAdmitted
}

// Err converts a denial into the matching application error, or nil when admitted.
func (d Decision) Err(op string) error {
	switch d.Outcome {
	case OutcomeAdmitted:
		return nil
	case OutcomeRateLimited:
		return RateLimited(op, d.RetryAt)
	case OutcomeSubscriptionRequired:
		return SubscriptionRequired(op, "")
	case OutcomeQuotaExceeded:
		return QuotaExceeded(op, d.Plan, d.Used, d.Ceiling)
	case OutcomeNotAuthenticated:
		return Unauthorized(op, "Authentication required.")
	default:
		return Errorf(EINTERNAL, op, "unknown outcome %q", d.Outcome)
	}
}
