package mailer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/devonik/email-api/internal/email"
	"github.com/devonik/email-api/internal/provider"
	"github.com/devonik/email-api/internal/scheduler"
)

type mockProvider struct {
	mu        sync.Mutex
	templates map[string]*email.Template
	messageID string
	sendErr   error
	bulkErrAt int // 1-based batch index that fails, 0 for none
	sent      []*email.Envelope
	batches   []*email.BulkBatch
	lookups   int
}

func newMockProvider() *mockProvider {
	return &mockProvider{
		templates: map[string]*email.Template{},
		messageID: "msg-1",
	}
}

func (m *mockProvider) Send(_ context.Context, env *email.Envelope) (*email.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, env)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return &email.SendResult{
		MessageID: m.messageID,
		Response:  map[string]string{"MessageId": m.messageID, "RequestId": "req-1"},
	}, nil
}

func (m *mockProvider) GetTemplate(_ context.Context, name string) (*email.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	tpl, ok := m.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrTemplateNotFound, name)
	}
	return tpl, nil
}

func (m *mockProvider) SendBulk(_ context.Context, batch *email.BulkBatch) (*email.BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	if m.bulkErrAt == len(m.batches) {
		return nil, fmt.Errorf("throttled")
	}
	res := &email.BulkResult{}
	for range batch.Destinations {
		res.Entries = append(res.Entries, email.BulkEntryResult{Status: "SUCCESS"})
	}
	return res, nil
}

func (m *mockProvider) Name() string { return "mock" }

type mockOrchestrator struct {
	startErr  error
	stopErr   error
	input     []byte
	stopArn   string
	stopCause string
}

func (m *mockOrchestrator) StartExecution(_ context.Context, input []byte) (*scheduler.Execution, error) {
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.input = input
	return &scheduler.Execution{ExecutionArn: "arn:exec:1"}, nil
}

func (m *mockOrchestrator) StopExecution(_ context.Context, executionArn, cause string) error {
	if m.stopErr != nil {
		return m.stopErr
	}
	m.stopArn = executionArn
	m.stopCause = cause
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(p *mockProvider, o Orchestrator) *Service {
	return New(p, o, Config{
		SenderLabel:   "Heiland",
		SenderAddress: "mail@example.com",
	}).WithLogger(discardLogger())
}
