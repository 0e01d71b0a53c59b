package metrics

import "time"

// WebhookProcessed records the outcome of one billing event.
// result is one of "processed", "duplicate", "ignored", "failed" or "rejected".
func WebhookProcessed(eventType, result string, duration time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	WebhookEventsTotal.WithLabelValues(eventType, result).Inc()
	WebhookDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// TransitionResult records a deferred transition lifecycle step.
func TransitionResult(result string) {
	DeferredTransitions.WithLabelValues(result).Inc()
}

// Decision records a gate decision.
func Decision(kind, outcome string) {
	EntitlementDecisions.WithLabelValues(kind, outcome).Inc()
}
