package webhooks

import (
	"encoding/json"
	"fmt"
	"time"

	"vrptw/internal/model"
)

// Publisher turns run events into callback deliveries.
type Publisher struct {
	Queue *Queue
	// Secret signs every payload; empty disables the X-Signature header.
	Secret string
}

func NewPublisher(q *Queue, secret string) *Publisher {
	return &Publisher{Queue: q, Secret: secret}
}

// Emit enqueues evt for the run's callback URL. Runs without one are skipped.
func (p *Publisher) Emit(evt model.RunEvent) error {
	if evt.Run.CallbackURL == "" {
		return nil
	}
	payload := map[string]any{
		"id":       fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type":     evt.Type,
		"tenantId": evt.Run.TenantID,
		"ts":       evt.At.UTC().Format(time.RFC3339),
		"data":     evt.Run,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook payload: %w", err)
	}
	p.Queue.Enqueue(Delivery{
		TenantID:  evt.Run.TenantID,
		RunID:     evt.RunID,
		EventType: evt.Type,
		URL:       evt.Run.CallbackURL,
		Secret:    p.Secret,
		Payload:   body,
	})
	return nil
}
