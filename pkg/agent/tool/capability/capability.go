// Package capability implements the closed menu of operations the model may request
// while resolving a conversation.
package capability

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/service/catalog"
	"github.com/secmon-lab/dermis/pkg/service/governor"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

// Scope identifies who a resolution acts for
type Scope struct {
	UserID types.UserID
}

// Config tunes capability execution
type Config struct {
	SearchLimit         int
	MaxSearchLimit      int
	SimilarityThreshold float64
	EmbedTimeout        time.Duration

	ProfileTTL   time.Duration
	RoutineTTL   time.Duration
	ProductTTL   time.Duration
	SearchTTL    time.Duration
	EmbeddingTTL time.Duration
}

// DefaultConfig returns the configuration used when none is supplied
func DefaultConfig() Config {
	return Config{
		SearchLimit:         5,
		MaxSearchLimit:      20,
		SimilarityThreshold: 0.55,
		EmbedTimeout:        3 * time.Second,
		ProfileTTL:          time.Minute,
		RoutineTTL:          time.Minute,
		ProductTTL:          10 * time.Minute,
		SearchTTL:           5 * time.Minute,
		EmbeddingTTL:        time.Hour,
	}
}

type outcome struct {
	payload    map[string]any
	products   []*model.ProductRecord
	sideEffect *model.SideEffect
}

type capability interface {
	Spec() gollem.ToolSpec
	parse(args map[string]any) (model.CapabilityArgs, error)
	run(ctx context.Context, scope Scope, args model.CapabilityArgs) (*outcome, error)
}

// Set holds the capability menu and the collaborators it executes against
type Set struct {
	repo       interfaces.Repository
	embedder   interfaces.Embedder
	cache      *governor.Cache
	normalizer *catalog.Normalizer
	cfg        Config

	order []types.CapabilityName
	items map[types.CapabilityName]capability
}

// Option configures a Set
type Option func(*Set)

// WithEmbedder enables similarity search. Without it search uses keywords only.
func WithEmbedder(e interfaces.Embedder) Option {
	return func(s *Set) {
		s.embedder = e
	}
}

// WithCache shares a result cache with other components
func WithCache(c *governor.Cache) Option {
	return func(s *Set) {
		s.cache = c
	}
}

// WithConfig replaces DefaultConfig
func WithConfig(cfg Config) Option {
	return func(s *Set) {
		s.cfg = cfg
	}
}

// New builds the capability menu
func New(repo interfaces.Repository, opts ...Option) *Set {
	s := &Set{
		repo: repo,
		cfg:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = governor.New()
	}
	s.normalizer = catalog.NewNormalizer(repo.Catalog())

	s.items = map[types.CapabilityName]capability{
		types.CapabilityGetProfile:      &getProfile{set: s},
		types.CapabilityGetRoutine:      &getRoutine{set: s},
		types.CapabilitySearchProducts:  &searchProducts{set: s},
		types.CapabilityGetProduct:      &getProduct{set: s},
		types.CapabilityCompareProducts: &compareProducts{set: s},
		types.CapabilityUpdateCart:      &updateCart{set: s},
		types.CapabilitySaveRoutine:     &saveRoutine{set: s},
	}
	s.order = types.AllCapabilityNames()
	return s
}

// Menu returns the capability specs in presentation order
func (s *Set) Menu() []gollem.ToolSpec {
	specs := make([]gollem.ToolSpec, 0, len(s.order))
	for _, name := range s.order {
		specs = append(specs, s.items[name].Spec())
	}
	return specs
}

// Normalizer returns the product normalizer capabilities use
func (s *Set) Normalizer() *catalog.Normalizer {
	return s.normalizer
}

// Parse validates a raw call against the closed schema. The result is either an
// accepted call with typed arguments or a rejected call carrying the reason.
func (s *Set) Parse(req *model.CallRequest) *model.CapabilityCall {
	name, err := types.ParseCapabilityName(req.Name)
	if err != nil {
		return model.NewRejectedCall(req.ID, req.Name, req.Arguments,
			fmt.Sprintf("unknown capability %q", req.Name))
	}

	args := req.Arguments
	if args == nil {
		args = map[string]any{}
	}

	typed, err := s.items[name].parse(args)
	if err != nil {
		return model.NewRejectedCall(req.ID, req.Name, req.Arguments, err.Error())
	}
	return model.NewAcceptedCall(req.ID, req.Arguments, typed)
}

// Execute runs an accepted call. It never panics and never returns an error: every
// failure, including a rejected call or a panic, becomes an error result.
func (s *Set) Execute(ctx context.Context, scope Scope, call *model.CapabilityCall) (result *model.CapabilityResult) {
	logger := logging.From(ctx).With("call_id", call.ID, nameKey, call.Name)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("capability panicked", "panic", r)
			result = model.NewErrorResult(call, fmt.Sprintf("%s failed unexpectedly", call.Name))
		}
	}()

	if call.Rejected() {
		logger.Warn("rejected capability call", "reason", call.Rejection)
		return model.NewErrorResult(call, "rejected: "+call.Rejection)
	}

	name := call.Args.Capability()
	if name.RequiresUser() && scope.UserID.IsAnonymous() {
		return model.NewErrorResult(call, ErrUserRequired.Error())
	}

	started := time.Now()
	out, err := s.items[name].run(ctx, scope, call.Args)
	if err != nil {
		var ge *goerr.Error
		attrs := []any{"error", err.Error(), "duration", time.Since(started).String()}
		if errors.As(err, &ge) {
			attrs = append(attrs, "values", ge.Values())
		}
		logger.Warn("capability failed", attrs...)
		return model.NewErrorResult(call, err.Error())
	}

	logger.Debug("capability completed", "duration", time.Since(started).String())

	res := &model.CapabilityResult{
		CallID:     call.ID,
		Name:       call.Name,
		Payload:    out.payload,
		Products:   out.products,
		SideEffect: out.sideEffect,
	}
	if res.SideEffect != nil {
		res.SideEffect.CallID = call.ID
		res.SideEffect.Capability = name
	}
	return res
}

// cacheKey builds a fixed-length key from a namespace and a JSON-encodable value
func cacheKey(namespace string, v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = fmt.Appendf(nil, "%v", v)
	}
	sum := sha256.Sum256(raw)
	return namespace + ":" + hex.EncodeToString(sum[:16])
}

func profileKey(userID types.UserID) string {
	return "profile:" + userID.String()
}

func routineKey(userID types.UserID) string {
	return "routine:" + userID.String()
}

func productKey(id types.ProductID) string {
	return "product:" + id.String()
}

func summaries(products []*model.ProductRecord) []map[string]any {
	out := make([]map[string]any, len(products))
	for i, p := range products {
		out[i] = p.Summary()
	}
	return out
}
