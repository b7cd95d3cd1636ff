package services

// VideoMetrics is the subset of the Prometheus collector the video service
// reports to.
type VideoMetrics interface {
	RecordSubmission(outcome string, bytes int64)
	RecordModeration(decision string)
}

type AuthMetrics interface {
	RecordAdminVerify(valid bool)
}

type nopMetrics struct{}

func (nopMetrics) RecordSubmission(string, int64) {}
func (nopMetrics) RecordModeration(string)        {}
func (nopMetrics) RecordAdminVerify(bool)         {}
