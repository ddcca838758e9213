// Package draft adapts a contract template to a user request with a chat
// model.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"contract-assistant/internal/model"
	"contract-assistant/pkg/logger"

	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

var ErrServiceUnavailable = errors.New("draft generation unavailable")

type Generator struct {
	chain   compose.Runnable[map[string]any, *schema.Message]
	timeout time.Duration
}

func newDraftPrompt(systemPrompt string) prompt.ChatTemplate {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(draftPrompt),
	)
}

// NewGenerator compiles the prompt → chat model chain. A zero timeout means
// the caller's context alone bounds the call.
func NewGenerator(ctx context.Context, cm einoModel.BaseChatModel, systemPrompt string, timeout time.Duration) (*Generator, error) {
	chain, err := compose.NewChain[map[string]any, *schema.Message]().
		AppendChatTemplate(newDraftPrompt(systemPrompt)).
		AppendChatModel(cm).
		Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile draft chain: %w", err)
	}

	return &Generator{
		chain:   chain,
		timeout: timeout,
	}, nil
}

// Generate returns the model output verbatim.
func (g *Generator) Generate(ctx context.Context, tpl model.Template, description string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := g.chain.Invoke(ctx, map[string]any{
		"template":    tpl.Body,
		"description": description,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	if out == nil || strings.TrimSpace(out.Content) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrServiceUnavailable)
	}

	logger.Infof("Draft generated from template %s in %s (%d chars)", tpl.ID, time.Since(start).Round(time.Millisecond), len(out.Content))
	return out.Content, nil
}
