package agent

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/hupe1980/agentflow/core"
)

// MockRunner for testing coordinators
type MockRunner struct {
	mock.Mock
	name string
}

func NewMockRunner(name string) *MockRunner {
	return &MockRunner{name: name}
}

func (m *MockRunner) Name() string { return m.name }

func (m *MockRunner) Run(ctx context.Context, prompt string) (StageResult, error) {
	args := m.Called(ctx, prompt)
	return args.Get(0).(StageResult), args.Error(1)
}

// ok builds a well-formed stage result carrying text.
func ok(stage, text string) StageResult {
	return StageResult{
		Stage:      stage,
		Text:       text,
		Iterations: 1,
		History:    []core.Message{core.NewUserMessage("in"), core.NewAssistantMessage(text)},
	}
}

// echoRunner answers with a transformation of its prompt.
type echoRunner struct {
	name string
	fn   func(ctx context.Context, prompt string) (string, error)
}

func (e *echoRunner) Name() string { return e.name }

func (e *echoRunner) Run(ctx context.Context, prompt string) (StageResult, error) {
	text, err := e.fn(ctx, prompt)
	if err != nil {
		return StageResult{}, err
	}
	return ok(e.name, text), nil
}
