package answer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/flightdeck/aerochat/internal/config"
	"github.com/flightdeck/aerochat/internal/model/fleet"
)

var (
	ErrUnavailable   = errors.New("answer service unavailable")
	ErrUnknownDomain = errors.New("unknown knowledge domain")
)

// Client is the contract consumed by the session machine: a black-box
// retrieval-augmented backend that answers one question within one domain.
type Client interface {
	Ask(ctx context.Context, domain, question string) (string, error)
}

// Service answers questions through a per-domain eino chain. Each domain
// compiles its own chain so that domains can route to different retrieval
// bots while sharing the prompt shape.
type Service struct {
	registry fleet.Registry
	chains   map[string]compose.Runnable[map[string]any, *schema.Message]
	timeout  time.Duration
}

// NewService compiles one chain per registered domain.
func NewService(ctx context.Context, registry fleet.Registry, cfg config.AnswerConfig) (*Service, error) {
	if !cfg.Enabled() {
		return nil, ErrUnavailable
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chains := make(map[string]compose.Runnable[map[string]any, *schema.Message])
	for _, domain := range registry.List() {
		chatModel, err := cfg.NewChatModel(ctx, cfg.ModelFor(domain.Tag))
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model for domain %s: %w", domain.Tag, err)
		}

		chain := compose.NewChain[map[string]any, *schema.Message]()
		chain.AppendChatTemplate(promptTemplate)
		chain.AppendChatModel(chatModel)

		runnable, err := chain.Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to compile chain for domain %s: %w", domain.Tag, err)
		}
		chains[domain.Tag] = runnable
	}

	return &Service{
		registry: registry,
		chains:   chains,
		timeout:  cfg.Timeout,
	}, nil
}

// Ask runs the question through the domain's chain under a bounded timeout.
func (s *Service) Ask(ctx context.Context, domain, question string) (string, error) {
	runnable, ok := s.chains[domain]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	meta, ok := s.registry.FindByTag(domain)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownDomain, domain)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := map[string]any{
		"system": buildSystemPrompt(meta),
		"query":  question,
	}

	response, err := runnable.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("answer chain failed for domain %s: %w", domain, err)
	}

	log.Printf("[answer] generated response domain=%s length=%d", domain, len(response.Content))
	return response.Content, nil
}

func buildSystemPrompt(domain fleet.Domain) string {
	var builder strings.Builder
	builder.WriteString(domain.PromptHint)
	if domain.KnowledgeBase != "" {
		builder.WriteString("\nGround every answer in the ")
		builder.WriteString(domain.KnowledgeBase)
		builder.WriteString(" knowledge base and cite the manual section when possible.")
	}
	builder.WriteString("\nIf the question falls outside this fleet's documentation, say so instead of guessing.")
	return builder.String()
}
