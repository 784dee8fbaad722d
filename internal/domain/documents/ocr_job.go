package documents

type OCRJobState string

const (
	OCRJobRunning   OCRJobState = "running"
	OCRJobSucceeded OCRJobState = "succeeded"
	OCRJobFailed    OCRJobState = "failed"
)

// OCRJobStatus is one poll result. Lines are in provider order.
type OCRJobStatus struct {
	State  OCRJobState `json:"status"`
	Lines  []string    `json:"lines,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

func (s OCRJobStatus) Terminal() bool {
	return s.State == OCRJobSucceeded || s.State == OCRJobFailed
}
