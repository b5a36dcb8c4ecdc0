package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types
const (
	TaskTypeExtractInvoice = "invoice:extract"
)

// ExtractInvoicePayload identifies one image in the configured source
type ExtractInvoicePayload struct {
	SourceFile string `json:"source_file"`
	BatchID    string `json:"batch_id,omitempty"`
}

// NewExtractInvoiceTask builds a task for one invoice image
func NewExtractInvoiceTask(p ExtractInvoicePayload, maxRetries int, timeout time.Duration) (*asynq.Task, error) {
	if p.SourceFile == "" {
		return nil, fmt.Errorf("source file is required")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.MaxRetry(maxRetries), asynq.Queue("default")}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TaskTypeExtractInvoice, payload, opts...), nil
}

// ParseExtractInvoicePayload decodes a task payload
func ParseExtractInvoicePayload(t *asynq.Task) (ExtractInvoicePayload, error) {
	var p ExtractInvoicePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("invalid %s payload: %w", TaskTypeExtractInvoice, err)
	}
	if p.SourceFile == "" {
		return p, fmt.Errorf("invalid %s payload: missing source_file", TaskTypeExtractInvoice)
	}
	return p, nil
}
