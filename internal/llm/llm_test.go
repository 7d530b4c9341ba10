package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/gfhssssrdg-sys/ai-note-system/internal/apperr"
	"github.com/gfhssssrdg-sys/ai-note-system/internal/config"
)

type stubModel struct {
	reply     string
	failUntil int
	calls     int
}

func (m *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls++
	if m.calls <= m.failUntil {
		return nil, errors.New("upstream 503")
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.reply}},
	}, nil
}

func (m *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.reply, nil
}

func gatewayFor(m llms.Model) *ServiceGateway {
	g := NewServiceGateway(m, &config.LLMConfig{MaxRetries: 2, TimeoutSecs: 5, MaxTokens: 100, Temperature: 0.3})
	g.backoffBase = time.Millisecond
	return g
}

func TestComplete_PassesThroughReply(t *testing.T) {
	m := &stubModel{reply: "the answer [1]"}
	g := gatewayFor(m)
	got, err := g.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "the answer [1]" {
		t.Errorf("Complete = %q", got)
	}
	if m.calls != 1 {
		t.Errorf("calls = %d, want 1", m.calls)
	}
}

func TestComplete_RetriesThenSucceeds(t *testing.T) {
	m := &stubModel{reply: "ok", failUntil: 1}
	g := gatewayFor(m)
	got, err := g.Complete(context.Background(), "prompt")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "ok" || m.calls != 2 {
		t.Errorf("got %q after %d calls", got, m.calls)
	}
}

func TestComplete_ExhaustionSurfacesTypedError(t *testing.T) {
	m := &stubModel{failUntil: 100}
	g := gatewayFor(m)
	_, err := g.Complete(context.Background(), "prompt")
	if !apperr.Is(err, apperr.CodeLLMService) {
		t.Fatalf("err = %v, want LLM_SERVICE", err)
	}
	if m.calls != 3 {
		t.Errorf("calls = %d, want 3", m.calls)
	}
}

func TestComplete_Cancellation(t *testing.T) {
	m := &stubModel{failUntil: 100}
	g := gatewayFor(m)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Complete(ctx, "prompt")
	if !apperr.Is(err, apperr.CodeLLMService) {
		t.Fatalf("err = %v, want LLM_SERVICE", err)
	}
}
