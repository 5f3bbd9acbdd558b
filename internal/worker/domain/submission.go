package domain

// SubmissionTask is a claimed submission request loaded for processing
type SubmissionTask struct {
	SubmissionID string
	JobID        string
	Milestone    int
	Actor        string
	PreviewRef   string
	Filename     string
	FileBytes    []byte
	Status       string
	RetryCount   int
	MaxRetries   int
}

// SubmissionMessage is a submission request message from RabbitMQ
type SubmissionMessage struct {
	SubmissionID string `json:"submission_id"`
	DeliveryTag  uint64 `json:"-"`
}
