package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/podforge/internal/domain"
)

// Rule is a fixed-window limit: at most Rate admissions per Period.
type Rule struct {
	Rate   int
	Period time.Duration
}

func (r Rule) String() string {
	return fmt.Sprintf("%d/%s", r.Rate, r.Period)
}

// Validate checks that the rule admits at least one call per positive period.
func (r Rule) Validate() error {
	if r.Rate < 1 {
		return fmt.Errorf("rate must be at least 1, got %d", r.Rate)
	}
	if r.Period <= 0 {
		return fmt.Errorf("period must be positive, got %v", r.Period)
	}
	return nil
}

// Rules maps each action kind to its window.
type Rules map[domain.ActionKind]Rule

// DefaultRule is three calls per two minutes.
var DefaultRule = Rule{Rate: 3, Period: 2 * time.Minute}

// KindBilling limits the billing endpoints. It is not a metered action and
// never reaches the gate.
const KindBilling domain.ActionKind = "billing"

// DefaultBillingRule is ten billing calls per minute.
var DefaultBillingRule = Rule{Rate: 10, Period: time.Minute}

// DefaultRules applies DefaultRule to every action kind and
// DefaultBillingRule to KindBilling.
func DefaultRules() Rules {
	rules := make(Rules, len(domain.ActionKinds)+1)
	for _, kind := range domain.ActionKinds {
		rules[kind] = DefaultRule
	}
	rules[KindBilling] = DefaultBillingRule
	return rules
}

// ParseRule parses "rate/period", e.g. "3/2m" or "10/1h".
func ParseRule(s string) (Rule, error) {
	rateStr, periodStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rule{}, fmt.Errorf("rule %q: expected rate/period", s)
	}
	rate, err := strconv.Atoi(strings.TrimSpace(rateStr))
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: invalid rate: %w", s, err)
	}
	period, err := time.ParseDuration(strings.TrimSpace(periodStr))
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: invalid period: %w", s, err)
	}
	rule := Rule{Rate: rate, Period: period}
	if err := rule.Validate(); err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", s, err)
	}
	return rule, nil
}
