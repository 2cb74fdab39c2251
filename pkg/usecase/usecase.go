package usecase

import (
	"github.com/secmon-lab/dermis/pkg/agent/tool/capability"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model/config"
	"github.com/secmon-lab/dermis/pkg/service/governor"
)

type UseCases struct {
	repo          interfaces.Repository
	completion    interfaces.CompletionProvider
	summarizer    interfaces.Summarizer
	photos        interfaces.PhotoStore
	cache         *governor.Cache
	resolverCfg   config.ResolverConfig
	capabilityCfg capability.Config

	Chat *ChatUseCase
	Skin *SkinUseCase
}

type Option func(*UseCases)

// WithCompletion sets the model provider. Without it every resolution degrades to
// the canned reply.
func WithCompletion(provider interfaces.CompletionProvider) Option {
	return func(uc *UseCases) {
		uc.completion = provider
	}
}

func WithSummarizer(summarizer interfaces.Summarizer) Option {
	return func(uc *UseCases) {
		uc.summarizer = summarizer
	}
}

func WithPhotoStore(photos interfaces.PhotoStore) Option {
	return func(uc *UseCases) {
		uc.photos = photos
	}
}

func WithCache(cache *governor.Cache) Option {
	return func(uc *UseCases) {
		uc.cache = cache
	}
}

func WithResolverConfig(cfg config.ResolverConfig) Option {
	return func(uc *UseCases) {
		uc.resolverCfg = cfg
	}
}

func WithCapabilityConfig(cfg capability.Config) Option {
	return func(uc *UseCases) {
		uc.capabilityCfg = cfg
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:          repo,
		resolverCfg:   config.DefaultResolverConfig(),
		capabilityCfg: capability.DefaultConfig(),
	}

	for _, opt := range opts {
		opt(uc)
	}

	if uc.cache == nil {
		uc.cache = governor.New()
	}

	capOpts := []capability.Option{
		capability.WithCache(uc.cache),
		capability.WithConfig(uc.capabilityCfg),
	}
	if uc.completion != nil {
		capOpts = append(capOpts, capability.WithEmbedder(uc.completion))
	}

	uc.Skin = NewSkinUseCase(uc.photos)
	uc.Chat = NewChatUseCase(repo, capability.New(repo, capOpts...), uc.completion,
		uc.summarizer, uc.cache, uc.Skin, uc.resolverCfg)

	return uc
}

// Cache returns the result cache shared by all use cases
func (uc *UseCases) Cache() *governor.Cache {
	return uc.cache
}
