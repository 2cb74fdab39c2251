// Package completion adapts a gollem LLM client to the completion provider the
// resolver depends on.
package completion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
)

var (
	// ErrEmptyEmbedding is returned when the provider produced no vector
	ErrEmptyEmbedding = goerr.New("embedding generation returned empty result")
	// ErrEmptyResponse is returned when the provider produced neither text nor calls
	ErrEmptyResponse = goerr.New("model returned an empty response")
)

// Service implements interfaces.CompletionProvider with a gollem client
type Service struct {
	llmClient gollem.LLMClient
	dimension int
}

var _ interfaces.CompletionProvider = &Service{}

// Option is a functional option for Service configuration
type Option func(*Service)

// WithEmbeddingDimension overrides model.EmbeddingDimension
func WithEmbeddingDimension(dim int) Option {
	return func(s *Service) {
		s.dimension = dim
	}
}

// New creates a Service with the provided LLM client
func New(llmClient gollem.LLMClient, opts ...Option) (*Service, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}

	s := &Service{
		llmClient: llmClient,
		dimension: model.EmbeddingDimension,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Complete sends the transcript to a fresh session with the capability menu attached.
// System turns become the session system prompt; every other turn is rendered into
// the prompt text in order.
func (s *Service) Complete(ctx context.Context, transcript []*model.Turn, menu []gollem.ToolSpec) (*model.Completion, error) {
	system, prompt := render(transcript)

	tools := make([]gollem.Tool, len(menu))
	for i, spec := range menu {
		tools[i] = &menuTool{spec: spec}
	}

	options := []gollem.SessionOption{gollem.WithSessionTools(tools...)}
	if system != "" {
		options = append(options, gollem.WithSessionSystemPrompt(system))
	}

	session, err := s.llmClient.NewSession(ctx, options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(prompt))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content from LLM")
	}
	if resp == nil || (len(resp.Texts) == 0 && len(resp.FunctionCalls) == 0) {
		return nil, goerr.Wrap(ErrEmptyResponse, "no texts and no function calls")
	}

	completion := &model.Completion{Texts: resp.Texts}
	for _, fc := range resp.FunctionCalls {
		if fc == nil {
			continue
		}
		completion.Calls = append(completion.Calls, &model.CallRequest{
			ID:        types.CallID(fc.ID),
			Name:      fc.Name,
			Arguments: fc.Arguments,
		})
	}
	return completion, nil
}

// Embed returns the embedding of text as float32
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := s.llmClient.GenerateEmbedding(ctx, s.dimension, []string{text})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding", goerr.V("length", len(text)))
	}
	if len(embeddings) == 0 || len(embeddings[0]) == 0 {
		return nil, goerr.Wrap(ErrEmptyEmbedding, "no vector", goerr.V("length", len(text)))
	}

	embedding32 := make([]float32, len(embeddings[0]))
	for i, v := range embeddings[0] {
		embedding32[i] = float32(v)
	}
	return embedding32, nil
}

type summaryResponse struct {
	Summary string `json:"summary"`
}

// Summarize condenses prior conversation turns into a short paragraph
func (s *Service) Summarize(ctx context.Context, turns []*model.HistoryTurn) (string, error) {
	if len(turns) == 0 {
		return "", nil
	}

	schema := &gollem.Parameter{
		Type: gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"summary": {
				Type:        gollem.TypeString,
				Description: "At most five sentences: the user's skin situation, preferences, products discussed and any decisions made",
				Required:    true,
			},
		},
	}

	session, err := s.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(schema),
	)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create session for conversation summary")
	}

	var sb strings.Builder
	sb.WriteString("Summarize this earlier part of a skincare consultation so the conversation can continue without it. Write in the language the user writes in.\n\n")
	for _, t := range turns {
		fmt.Fprintf(&sb, "[%s] %s\n", t.Role, t.Content)
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(sb.String()))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate conversation summary")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return "", goerr.Wrap(ErrEmptyResponse, "no summary text")
	}

	var out summaryResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &out); err != nil {
		return "", goerr.Wrap(err, "failed to parse conversation summary", goerr.V("response", resp.Texts[0]))
	}
	return strings.TrimSpace(out.Summary), nil
}

// menuTool exposes a capability spec to the session. Calls are executed by the
// resolver, never by the session.
type menuTool struct {
	spec gollem.ToolSpec
}

func (t *menuTool) Spec() gollem.ToolSpec {
	return t.spec
}

func (t *menuTool) Run(ctx context.Context, args map[string]any) (map[string]any, error) {
	return nil, goerr.New("capability is executed by the resolver", goerr.V("name", t.spec.Name))
}
