package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	feedMergeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compass",
		Subsystem: "feed",
		Name:      "merged_rows_total",
		Help:      "Change-feed rows merged into an in-memory feed mirror.",
	}, []string{"table"})
	feedDiscardCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "compass",
		Subsystem: "feed",
		Name:      "discarded_refetches_total",
		Help:      "Stale or post-teardown re-fetch completions discarded by a feed.",
	}, []string{"table"})
	reminderScheduledCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "compass",
		Subsystem: "reminders",
		Name:      "scheduled_total",
		Help:      "Push reminders scheduled for approaching engagement deadlines.",
	})
	followupDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "compass",
		Subsystem: "followup",
		Name:      "generation_seconds",
		Help:      "Wall time spent generating follow-up messages.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(feedMergeCounter, feedDiscardCounter, reminderScheduledCounter, followupDuration)
}

// RecordFeedMerge counts a change-feed row merged into a feed mirror.
func RecordFeedMerge(table string) {
	feedMergeCounter.WithLabelValues(table).Inc()
}

// RecordFeedDiscard counts a discarded stale re-fetch completion.
func RecordFeedDiscard(table string) {
	feedDiscardCounter.WithLabelValues(table).Inc()
}

// RecordReminderScheduled counts a scheduled deadline reminder.
func RecordReminderScheduled() {
	reminderScheduledCounter.Inc()
}

// ObserveFollowupGeneration records the duration of one generation call.
func ObserveFollowupGeneration(seconds float64) {
	followupDuration.Observe(seconds)
}
