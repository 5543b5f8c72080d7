// Package ai runs the response-generation chain. It is the only place the
// chat model is invoked; the grounding context, history and trend note all
// arrive prepared by the orchestrator.
package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	trendanalysis "github.com/hoaquangthang/a-seed/backend/internal/analysis/trend"
	"github.com/hoaquangthang/a-seed/backend/internal/config"
	"github.com/hoaquangthang/a-seed/backend/internal/model/chat"
)

// Service encapsulates the generation collaborator.
type Service struct {
	cfg    config.AIConfig
	chain  compose.Runnable[map[string]any, *schema.Message]
	system string
}

// NewService compiles the generation chain against the configured Ark model.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		cfg:    cfg,
		chain:  runnable,
		system: loadBasePrompt(cfg.SystemPromptPath),
	}, nil
}

// StreamingEnabled reports whether SSE delta streaming is on.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Request carries everything one generation needs.
type Request struct {
	History   []chat.Turn
	Message   string
	Grounding []string
	Trend     trendanalysis.Report
}

// Generate produces the raw structured reply for one exchange.
func (s *Service) Generate(ctx context.Context, req Request) (string, error) {
	response, err := s.chain.Invoke(ctx, s.buildChainInput(req))
	if err != nil {
		return "", fmt.Errorf("failed to run generation chain: %w", err)
	}

	log.Printf("[ai] generated reply, length=%d", len(response.Content))
	return response.Content, nil
}

// Stream streams the raw reply chunk by chunk.
func (s *Service) Stream(ctx context.Context, req Request) (*schema.StreamReader[*schema.Message], error) {
	if !s.StreamingEnabled() {
		return nil, fmt.Errorf("streaming disabled in configuration")
	}

	stream, err := s.chain.Stream(ctx, s.buildChainInput(req))
	if err != nil {
		return nil, fmt.Errorf("failed to stream generation output: %w", err)
	}
	return stream, nil
}

func (s *Service) buildChainInput(req Request) map[string]any {
	return map[string]any{
		"system":  BuildSystemPrompt(s.system, req.Grounding, req.Trend),
		"history": buildHistoryMessages(req.History),
		"query":   req.Message,
	}
}

func buildHistoryMessages(turns []chat.Turn) []*schema.Message {
	if len(turns) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(turns))
	for _, turn := range turns {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Text))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Text, nil))
		}
	}
	return history
}
