package flow

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentflow/core"
	internalutil "github.com/hupe1980/agentflow/internal/util"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// InstructionsProcessor sets the system instruction, rendering template
// markers against Vars.
type InstructionsProcessor struct {
	Instructions string
	Vars         map[string]any
}

// NewInstructionsProcessor creates a new instructions processor.
func NewInstructionsProcessor(instructions string, vars map[string]any) *InstructionsProcessor {
	return &InstructionsProcessor{Instructions: instructions, Vars: vars}
}

// Name returns the processor's identifier.
func (p *InstructionsProcessor) Name() string { return "instructions" }

// ProcessRequest adds system instructions to the request.
func (p *InstructionsProcessor) ProcessRequest(_ context.Context, _ *core.ConversationState, req *model.Request) error {
	rendered, err := internalutil.RenderTemplate(p.Instructions, p.Vars)
	if err != nil {
		return fmt.Errorf("failed to render template: %w", err)
	}
	req.Instructions = rendered
	return nil
}

// ContentsProcessor copies the conversation history into the request.
// MaxHistory > 0 keeps only the most recent messages; a window never starts
// on an orphaned tool result.
type ContentsProcessor struct {
	MaxHistory int
}

// NewContentsProcessor creates a new contents processor.
func NewContentsProcessor(maxHistory int) *ContentsProcessor {
	return &ContentsProcessor{MaxHistory: maxHistory}
}

// Name returns the processor's identifier.
func (p *ContentsProcessor) Name() string { return "contents" }

// ProcessRequest adds the conversation history to the request.
func (p *ContentsProcessor) ProcessRequest(_ context.Context, state *core.ConversationState, req *model.Request) error {
	msgs := state.Snapshot()
	if p.MaxHistory > 0 && len(msgs) > p.MaxHistory {
		msgs = msgs[len(msgs)-p.MaxHistory:]
		for len(msgs) > 0 && msgs[0].Role == core.RoleTool {
			msgs = msgs[1:]
		}
	}
	req.Messages = msgs
	return nil
}

// ToolsProcessor advertises the registry's capabilities.
type ToolsProcessor struct {
	Registry *tool.Registry
}

// NewToolsProcessor creates a new tools processor.
func NewToolsProcessor(registry *tool.Registry) *ToolsProcessor {
	return &ToolsProcessor{Registry: registry}
}

// Name returns the processor's identifier.
func (p *ToolsProcessor) Name() string { return "tools" }

// ProcessRequest adds capability definitions to the request.
func (p *ToolsProcessor) ProcessRequest(_ context.Context, _ *core.ConversationState, req *model.Request) error {
	if p.Registry.Len() == 0 {
		req.Tools = nil
		return nil
	}
	req.Tools = p.Registry.Definitions()
	return nil
}
