package usecase

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"
	"text/template"
	"time"
	"unicode/utf8"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/dermis/pkg/agent/tool"
	"github.com/secmon-lab/dermis/pkg/agent/tool/capability"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/model/config"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/service/governor"
	"github.com/secmon-lab/dermis/pkg/utils/errutil"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

//go:embed prompt/resolve_system.md
var resolveSystemPromptTmpl string

var resolveSystemPrompt = template.Must(template.New("resolve_system").Parse(resolveSystemPromptTmpl))

const (
	providerFallbackMessage = "I can't reach my recommendation service right now. Please try again in a moment."
	budgetExhaustedMessage  = "Sorry, I couldn't finish putting together an answer this time. Could you ask again in a simpler way?"
	emptyAnswerMessage      = "Could you tell me a little more about your skin type and what you would like to improve?"

	summaryKeyPrefix  = "summary:"
	summaryHeader     = "Summary of the earlier conversation:\n"
	titleMaxRunes     = 48
	digestMaxRunes    = 160
	mentionedProducts = 3
)

// ChatUseCase resolves conversations into a reply and product recommendations
type ChatUseCase struct {
	repo         interfaces.Repository
	capabilities *capability.Set
	completion   interfaces.CompletionProvider
	summarizer   interfaces.Summarizer
	cache        *governor.Cache
	skin         *SkinUseCase
	cfg          config.ResolverConfig
}

// NewChatUseCase creates a ChatUseCase. completion, summarizer and skin may be nil.
func NewChatUseCase(
	repo interfaces.Repository,
	capabilities *capability.Set,
	completion interfaces.CompletionProvider,
	summarizer interfaces.Summarizer,
	cache *governor.Cache,
	skin *SkinUseCase,
	cfg config.ResolverConfig,
) *ChatUseCase {
	if cache == nil {
		cache = governor.New()
	}
	if skin == nil {
		skin = NewSkinUseCase(nil)
	}
	return &ChatUseCase{
		repo:         repo,
		capabilities: capabilities,
		completion:   completion,
		summarizer:   summarizer,
		cache:        cache,
		skin:         skin,
		cfg:          cfg,
	}
}

// Resolve answers the latest user message. Once the request is valid it always returns
// a resolution carrying a message; collaborator failures degrade the reply instead.
func (uc *ChatUseCase) Resolve(ctx context.Context, req *model.ResolveRequest) (*model.Resolution, error) {
	if req == nil {
		return nil, goerr.Wrap(ErrInvalidRequest, "request is nil")
	}
	if err := req.Validate(); err != nil {
		return nil, goerr.Wrap(ErrInvalidRequest, err.Error())
	}

	convID := req.ConversationID
	isNew := convID == ""
	if isNew {
		convID = types.NewConversationID()
	}

	logger := logging.From(ctx).With(ConversationIDKey, convID, UserIDKey, req.UserID)
	ctx = logging.With(ctx, logger)
	ctx = tool.WithUpdate(ctx, func(ctx context.Context, message string) {
		logging.From(ctx).Debug("capability progress", "note", message)
	})

	var prior []*model.HistoryTurn
	historyKnown := isNew
	if !isNew {
		prior, historyKnown = uc.loadHistory(ctx, convID)
	}

	conv, signal, err := uc.buildConversation(ctx, req, convID, prior)
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidRequest, err.Error(), goerr.V(ConversationIDKey, convID))
	}

	out := uc.resolve(ctx, capability.Scope{UserID: req.UserID}, conv)

	products := uc.capabilities.Normalizer().Normalize(ctx, out.products...)
	if len(products) > uc.cfg.MaxProducts {
		products = products[:uc.cfg.MaxProducts]
	}

	resolution := &model.Resolution{
		ConversationID: convID,
		Message:        finalMessage(out, products),
		Products:       products,
		State:          out.state,
		Rounds:         out.rounds,
		SideEffects:    out.sideEffects,
		Signal:         signal,
	}
	if historyKnown && len(prior) == 0 {
		resolution.Title = Title(firstUserMessage(req.Messages))
	}

	uc.persist(ctx, req, convID, resolution.Message)

	logger.Info("resolution finished",
		"state", out.state,
		"rounds", out.rounds,
		"products", len(products),
		"side_effects", len(out.sideEffects),
	)
	return resolution, nil
}

type outcome struct {
	text        string
	state       types.ResolutionState
	rounds      int
	products    [][]*model.ProductRecord
	sideEffects []*model.SideEffect
}

// resolve runs the round loop on conv until the model answers without calls, the
// provider fails, or MaxRounds completions have been made.
func (uc *ChatUseCase) resolve(ctx context.Context, scope capability.Scope, conv *model.Conversation) *outcome {
	menu := uc.capabilities.Menu()
	out := &outcome{}

	for round := 1; round <= uc.cfg.MaxRounds; round++ {
		out.rounds = round
		logger := logging.From(ctx).With("round", round)

		completion, err := uc.complete(ctx, conv, menu)
		if err != nil {
			logger.Warn("completion provider failed, using fallback reply", "error", err.Error())
			out.state = types.ResolutionProviderTimeout
			return out
		}

		if !completion.HasCalls() {
			out.text = completion.Text()
			out.state = types.ResolutionSuccess
			return out
		}

		calls := uc.parseCalls(completion.Calls)
		if err := conv.Append(&model.Turn{
			Role:    types.RoleAssistant,
			Content: completion.Text(),
			Calls:   calls,
		}); err != nil {
			_ = errutil.Handle(ctx, err, "failed to append assistant turn")
			out.state = types.ResolutionProviderTimeout
			return out
		}

		names := make([]string, len(calls))
		for i, c := range calls {
			names[i] = c.Name
		}
		logger.Debug("executing capability calls", "calls", names)

		for _, result := range uc.execute(ctx, scope, calls) {
			if err := conv.Append(&model.Turn{Role: types.RoleCapability, Result: result}); err != nil {
				_ = errutil.Handle(ctx, err, "failed to append capability result")
				continue
			}
			if len(result.Products) > 0 {
				out.products = append(out.products, result.Products)
			}
			if result.SideEffect != nil {
				out.sideEffects = append(out.sideEffects, result.SideEffect)
			}
		}
	}

	out.state = types.ResolutionBudgetExhausted
	logging.From(ctx).Warn("resolution budget exhausted",
		"max_rounds", uc.cfg.MaxRounds,
		"side_effects", len(out.sideEffects),
	)
	return out
}

func (uc *ChatUseCase) complete(ctx context.Context, conv *model.Conversation, menu []gollem.ToolSpec) (*model.Completion, error) {
	if uc.completion == nil {
		return nil, ErrProviderUnavailable
	}

	transcript := slices.Clone(conv.Turns())
	resp, err := governor.WithDeadline(ctx, uc.cfg.CompletionTimeout, (*model.Completion)(nil),
		func(ctx context.Context) (*model.Completion, error) {
			return uc.completion.Complete(ctx, transcript, menu)
		})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, goerr.New("completion provider returned no response")
	}
	return resp, nil
}

// parseCalls validates every request. Missing or repeated call IDs are replaced so
// each result stays addressable.
func (uc *ChatUseCase) parseCalls(reqs []*model.CallRequest) []*model.CapabilityCall {
	seen := make(map[types.CallID]bool, len(reqs))
	calls := make([]*model.CapabilityCall, 0, len(reqs))

	for _, req := range reqs {
		if req == nil {
			continue
		}
		fixed := *req
		if fixed.ID == "" || seen[fixed.ID] {
			fixed.ID = types.NewCallID()
		}
		seen[fixed.ID] = true
		calls = append(calls, uc.capabilities.Parse(&fixed))
	}
	return calls
}

// execute runs calls concurrently and returns results in call order
func (uc *ChatUseCase) execute(ctx context.Context, scope capability.Scope, calls []*model.CapabilityCall) []*model.CapabilityResult {
	results := make([]*model.CapabilityResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = uc.executeOne(ctx, scope, call)
		}()
	}
	wg.Wait()

	return results
}

func (uc *ChatUseCase) executeOne(ctx context.Context, scope capability.Scope, call *model.CapabilityCall) (result *model.CapabilityResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Error("capability execution panicked", "call_id", call.ID, "name", call.Name, "panic", r)
			result = model.NewErrorResult(call, fmt.Sprintf("%s failed unexpectedly", call.Name))
		}
	}()

	timedOut := model.NewErrorResult(call, fmt.Sprintf("%s timed out", call.Name))
	res, err := governor.WithDeadline(ctx, uc.cfg.CapabilityTimeout, timedOut,
		func(ctx context.Context) (*model.CapabilityResult, error) {
			return uc.capabilities.Execute(ctx, scope, call), nil
		})
	if err != nil {
		logging.From(ctx).Warn("capability did not finish in time",
			"call_id", call.ID,
			"name", call.Name,
			"error", err.Error(),
		)
	}
	if res == nil {
		return timedOut
	}
	return res
}

func (uc *ChatUseCase) buildConversation(ctx context.Context, req *model.ResolveRequest, convID types.ConversationID, prior []*model.HistoryTurn) (*model.Conversation, *model.VisualSignal, error) {
	conv := model.NewConversation(convID)

	system, err := RenderSystemPrompt(uc.capabilities.Menu(), req.UserID.IsAnonymous())
	if err != nil {
		_ = errutil.Handle(ctx, err, "failed to render system prompt")
	} else if err := conv.Append(&model.Turn{Role: types.RoleSystem, Content: system}); err != nil {
		return nil, nil, err
	}

	if summary := uc.summary(ctx, convID, prior); summary != "" {
		if err := conv.Append(&model.Turn{Role: types.RoleSystem, Content: summaryHeader + summary}); err != nil {
			return nil, nil, err
		}
	}

	var signal *model.VisualSignal
	if len(req.Images) > 0 {
		signal = uc.skin.estimate(ctx, req.UserID, req.Images)
		if signal != nil {
			if err := conv.Append(&model.Turn{Role: types.RoleSystem, Content: DescribeSignal(signal)}); err != nil {
				return nil, nil, err
			}
		}
	}

	for _, m := range req.Messages {
		if err := conv.Append(&model.Turn{Role: m.Role, Content: m.Content}); err != nil {
			return nil, nil, err
		}
	}

	return conv, signal, nil
}

// loadHistory returns recent turns and whether the history store answered
func (uc *ChatUseCase) loadHistory(ctx context.Context, convID types.ConversationID) ([]*model.HistoryTurn, bool) {
	if uc.cfg.HistoryLimit == 0 {
		return nil, false
	}

	prior, err := uc.repo.History().Recent(ctx, convID, uc.cfg.HistoryLimit)
	if err != nil {
		logging.From(ctx).Warn("failed to load conversation history", "error", err.Error())
		return nil, false
	}
	return prior, true
}

// SummaryKey is the cache key of a conversation summary
func SummaryKey(convID types.ConversationID) string {
	return summaryKeyPrefix + convID.String()
}

func (uc *ChatUseCase) summary(ctx context.Context, convID types.ConversationID, prior []*model.HistoryTurn) string {
	if len(prior) == 0 {
		return ""
	}

	summary, err := governor.Cached(ctx, uc.cache, SummaryKey(convID), uc.cfg.SummaryTTL,
		func(ctx context.Context) (string, error) {
			return uc.summarize(ctx, prior), nil
		})
	if err != nil {
		return Digest(prior)
	}
	return summary
}

func (uc *ChatUseCase) summarize(ctx context.Context, prior []*model.HistoryTurn) string {
	if uc.summarizer != nil {
		summary, err := governor.WithDeadline(ctx, uc.cfg.SummaryTimeout, "",
			func(ctx context.Context) (string, error) {
				return uc.summarizer.Summarize(ctx, prior)
			})
		if err != nil {
			logging.From(ctx).Warn("summarizer failed, using digest", "error", err.Error())
		} else if strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary)
		}
	}
	return Digest(prior)
}

func (uc *ChatUseCase) persist(ctx context.Context, req *model.ResolveRequest, convID types.ConversationID, reply string) {
	now := time.Now().UTC()

	var turns []*model.HistoryTurn
	if last := lastUserMessage(req.Messages); last != "" {
		turns = append(turns, &model.HistoryTurn{
			ConversationID: convID,
			UserID:         req.UserID,
			Role:           types.RoleUser,
			Content:        last,
			CreatedAt:      now,
		})
	}
	turns = append(turns, &model.HistoryTurn{
		ConversationID: convID,
		UserID:         req.UserID,
		Role:           types.RoleAssistant,
		Content:        reply,
		CreatedAt:      now,
	})

	if err := uc.repo.History().Append(ctx, convID, turns...); err != nil {
		_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to persist conversation history",
			goerr.V(ConversationIDKey, convID)), "history not persisted")
		return
	}
	uc.cache.Delete(SummaryKey(convID))
}

type resolvePromptData struct {
	Capabilities []gollem.ToolSpec
	Anonymous    bool
}

// RenderSystemPrompt builds the instruction preamble of every resolution
func RenderSystemPrompt(menu []gollem.ToolSpec, anonymous bool) (string, error) {
	var buf bytes.Buffer
	if err := resolveSystemPrompt.Execute(&buf, resolvePromptData{
		Capabilities: menu,
		Anonymous:    anonymous,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute system prompt template")
	}
	return buf.String(), nil
}

// DescribeSignal renders a visual signal as a system turn
func DescribeSignal(s *model.VisualSignal) string {
	concerns := "none"
	if len(s.Concerns) > 0 {
		concerns = strings.Join(s.Concerns, ", ")
	}
	return fmt.Sprintf("Photo analysis of the user's skin (heuristic, confidence %.2f): "+
		"hydration %.2f, oiliness %.2f, texture %.2f, likely %s skin. Concerns: %s. "+
		"Treat this as a hint; what the user tells you takes precedence.",
		s.Confidence, s.Hydration, s.Oiliness, s.Texture, s.DetectedType, concerns)
}

// Digest is the summary used when no summarizer is available
func Digest(turns []*model.HistoryTurn) string {
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		content := truncate(strings.Join(strings.Fields(t.Content), " "), digestMaxRunes)
		if content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Role, content))
	}
	return strings.Join(lines, "\n")
}

// Title derives a conversation title from the first user message
func Title(message string) string {
	text := strings.Join(strings.Fields(message), " ")
	if utf8.RuneCountInString(text) <= titleMaxRunes {
		return text
	}

	cut := string([]rune(text)[:titleMaxRunes])
	if i := strings.LastIndex(cut, " "); i > 0 && utf8.RuneCountInString(cut[:i]) > titleMaxRunes/2 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func finalMessage(out *outcome, products []*model.ProductRecord) string {
	switch out.state {
	case types.ResolutionSuccess:
		if out.text != "" {
			return out.text
		}
		if mention := productMention(products); mention != "" {
			return "Here are some products that may suit you: " + mention
		}
		return emptyAnswerMessage

	case types.ResolutionBudgetExhausted:
		if mention := productMention(products); mention != "" {
			return budgetExhaustedMessage + " These products came up so far: " + mention
		}
		return budgetExhaustedMessage

	default:
		return providerFallbackMessage
	}
}

func productMention(products []*model.ProductRecord) string {
	var names []string
	for _, p := range products {
		if len(names) == mentionedProducts {
			break
		}
		name := p.Name
		if name == "" {
			name = p.ID.String()
		}
		if p.Brand != "" {
			name = p.Brand + " " + name
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, ", ") + "."
}

func firstUserMessage(messages []*model.Message) string {
	for _, m := range messages {
		if m.Role == types.RoleUser {
			return m.Content
		}
	}
	return ""
}

func lastUserMessage(messages []*model.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
