// Package app assembles the services shared by the API server and the worker.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/suPer8Hu/chat-recall/internal/ai"
	"github.com/suPer8Hu/chat-recall/internal/chat"
	"github.com/suPer8Hu/chat-recall/internal/config"
	"github.com/suPer8Hu/chat-recall/internal/db"
	"github.com/suPer8Hu/chat-recall/internal/search"
	"github.com/suPer8Hu/chat-recall/internal/store/redisstore"
	"gorm.io/gorm"
)

type App struct {
	Cfg   config.Config
	DB    *gorm.DB
	Redis *redisstore.Store // nil when the in-process cache is used
	Chat  *chat.Service

	closers []func() error
}

// New connects the database, picks an embedding cache and builds the chat
// service. A Redis outage at startup only downgrades the cache.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	log := zerolog.Ctx(ctx)

	gdb, err := db.Open(cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	a := &App{Cfg: cfg, DB: gdb}
	if sqlDB, err := gdb.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}

	provider := ai.NewOpenAIProvider(ai.OpenAIConfig{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		EmbeddingModel: cfg.EmbeddingModel,
		Dimensions:     cfg.EmbeddingDimensions,
		Timeout:        cfg.ProviderTimeout,
	})

	cache, err := a.embeddingCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	embedder := ai.NewCachedEmbedder(provider, cache, provider.EmbeddingModel())

	gen := ai.NewGenerator(provider, cfg.ChatModel)
	searcher := search.NewService(embedder, search.WithConcurrency(cfg.SearchConcurrency))

	a.Chat = chat.NewService(chat.NewRepo(gdb), gen, searcher, embedder, chat.Options{
		SearchThreshold:     cfg.SearchThreshold,
		SearchTopK:          cfg.SearchTopK,
		SearchMaxCandidates: cfg.SearchMaxCandidates,
		SummaryEvery:        cfg.SummaryEvery,
	})

	log.Info().
		Str("chat_model", cfg.ChatModel).
		Str("embedding_model", provider.EmbeddingModel()).
		Bool("redis", a.Redis != nil).
		Msg("services ready")
	return a, nil
}

func (a *App) embeddingCache(ctx context.Context) (ai.EmbeddingCache, error) {
	log := zerolog.Ctx(ctx)
	if a.Cfg.RedisAddr != "" {
		rds := redisstore.New(a.Cfg.RedisAddr, a.Cfg.RedisPassword, a.Cfg.RedisDB)
		err := rds.Ping(ctx)
		if err == nil {
			a.Redis = rds
			a.closers = append(a.closers, rds.Close)
			return rds.EmbeddingCache(a.Cfg.EmbedCacheTTL), nil
		}
		log.Warn().Err(err).Str("addr", a.Cfg.RedisAddr).Msg("redis unavailable, using in-process embedding cache")
		_ = rds.Close()
	}
	return ai.NewLRUCache(a.Cfg.EmbedCacheSize, a.Cfg.EmbedCacheTTL)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
