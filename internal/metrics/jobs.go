package metrics

import "time"

// JobStarted records a dequeued attempt. lag is how far past its scheduled
// instant the job was picked up, which for a deferred transition is how long
// a cancelled subscriber kept paid access.
func JobStarted(jobType string, attempt int32, lag time.Duration) {
	if attempt > 1 {
		JobRetriesTotal.WithLabelValues(jobType).Inc()
	}
	if lag < 0 {
		lag = 0
	}
	JobLag.WithLabelValues(jobType).Observe(lag.Seconds())
}

// JobFinished records the end of an attempt. status is "completed",
// "retrying" or "failed".
func JobFinished(jobType, status string, d time.Duration) {
	JobsTotal.WithLabelValues(jobType, status).Inc()
	JobDuration.WithLabelValues(jobType).Observe(d.Seconds())
}
