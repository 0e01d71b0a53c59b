// Package domain contains core business types and interfaces.
//
// This file defines plan tiers and their monthly quota ceilings.
package domain

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Plan is a subscription plan tier.
type Plan string

const (
	PlanFree       Plan = "Free"
	PlanPro        Plan = "Pro"
	PlanEnterprise Plan = "Enterprise"
)

// PlanCeilings maps each plan to its monthly action ceiling.
var PlanCeilings = map[Plan]int{
	PlanFree:       5,
	PlanPro:        30,
	PlanEnterprise: 100,
}

// Ceiling returns the monthly action ceiling for a plan, defaulting to the
// Free ceiling for unknown plans.
func (p Plan) Ceiling() int {
	if c, ok := PlanCeilings[p]; ok {
		return c
	}
	return PlanCeilings[PlanFree]
}

// IsPaid returns true for Pro and Enterprise.
func (p Plan) IsPaid() bool {
	return p == PlanPro || p == PlanEnterprise
}

func (p Plan) String() string {
	return string(p)
}

// ParsePlan canonicalises a plan name such as "pro", "PRO" or "Enterprise Annual".
// Only the first word is considered.
func ParsePlan(name string) (Plan, bool) {
	fields := strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	if len(fields) == 0 {
		return "", false
	}
	p := Plan(cases.Title(language.English).String(strings.ToLower(fields[0])))
	if _, ok := PlanCeilings[p]; !ok {
		return "", false
	}
	return p, true
}
