package reviewmesh

import (
	"context"
	"fmt"
	"io"
	"net/http"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/reviewmesh/agent"
	"github.com/hupe1980/reviewmesh/cache"
	"github.com/hupe1980/reviewmesh/config"
	"github.com/hupe1980/reviewmesh/core"
	"github.com/hupe1980/reviewmesh/logging"
	"github.com/hupe1980/reviewmesh/metrics"
	"github.com/hupe1980/reviewmesh/model"
	"github.com/hupe1980/reviewmesh/model/anthropic"
	"github.com/hupe1980/reviewmesh/model/ollama"
	"github.com/hupe1980/reviewmesh/model/openai"
	"github.com/hupe1980/reviewmesh/orchestrator"
	"github.com/hupe1980/reviewmesh/retrieval"
	"github.com/hupe1980/reviewmesh/store"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// FromConfig builds every collaborator from cfg. optFns run last and may
// override any of them. Resources opened here are released by Shutdown.
func FromConfig(ctx context.Context, cfg config.Config, optFns ...func(o *Options)) (*ReviewMesh, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var closers []io.Closer
	fail := func(err error) (*ReviewMesh, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	level, _ := logging.ParseLevel(cfg.Logging.Level)
	logger := NewLogger(level, cfg.Logging.Format)

	var (
		rec     *metrics.Recorder
		handler http.Handler
	)
	if cfg.Metrics.Enabled {
		r, h, err := metrics.NewPrometheus(ctx, "reviewmesh")
		if err != nil {
			return fail(fmt.Errorf("init metrics: %w", err))
		}
		rec, handler = r, h
		closers = append(closers, closerFunc(func() error { return r.Shutdown(context.Background()) }))
	}

	gen, genClosers, err := NewGenerator(cfg, logger, rec)
	closers = append(closers, genClosers...)
	if err != nil {
		return fail(err)
	}

	agents, err := agent.Build(func(o *agent.BuildOptions) {
		o.Enabled = cfg.Agents.Enabled
		o.Generative = cfg.Agents.Generative
		o.Generator = gen
		o.Logger = logger
	})
	if err != nil {
		return fail(err)
	}

	mode, err := orchestrator.ParseMode(cfg.Orchestrator.Mode)
	if err != nil {
		return fail(err)
	}

	retriever, err := NewRetriever(ctx, cfg.Retrieval)
	if err != nil {
		return fail(err)
	}

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fail(fmt.Errorf("open store: %w", err))
	}
	closers = append(closers, st)

	m := New(func(o *Options) {
		o.Store = st
		o.Agents = agents
		o.Generator = gen
		o.Mode = mode
		o.Retriever = retriever
		o.ContextLimit = cfg.Retrieval.Limit
		o.MaxPending = cfg.Queue.MaxPending
		o.Logger = logger
		o.Metrics = rec
		o.MetricsHandler = handler
		for _, fn := range optFns {
			fn(o)
		}
	})
	m.closers = closers

	return m, nil
}

// NewLogger builds the process logger for a level and format.
func NewLogger(level logging.LogLevel, format string) logging.Logger {
	return logging.NewSlogLogger(level, format, false).WithComponent("reviewmesh")
}

// NewGenerator builds the configured generation backend wrapped with the
// call budget and cache. It returns nil for backend "none". Returned
// closers must be closed by the caller, even on error.
func NewGenerator(cfg config.Config, logger logging.Logger, rec *metrics.Recorder) (model.Generator, []io.Closer, error) {
	g := cfg.Generation
	var base model.Generator

	switch g.Backend {
	case "", "none":
		return nil, nil, nil
	case "mock":
		name := g.Model
		if name == "" {
			name = "mock"
		}
		m := model.NewMockModel(name, "mock")
		m.SetAdapter(g.Adapter)
		// Empty output sends every agent down its rule path.
		m.SetDefault("")
		base = m
	case "anthropic":
		base = anthropic.NewModel(func(o *anthropic.Options) {
			if g.Model != "" {
				o.Model = anthropicsdk.Model(g.Model)
			}
			o.Temperature = g.Temperature
			if g.MaxTokens > 0 {
				o.MaxTokens = int64(g.MaxTokens)
			}
			o.APIKey = g.APIKey
			o.BaseURL = g.BaseURL
			o.Adapter = g.Adapter
			if g.BatchConcurrency > 0 {
				o.BatchConcurrency = g.BatchConcurrency
			}
			o.Logger = logger
		})
	case "openai":
		base = openai.NewModel(func(o *openai.Options) {
			if g.Model != "" {
				o.Model = g.Model
			}
			o.Temperature = g.Temperature
			if g.MaxTokens > 0 {
				o.MaxCompletionTokens = int64(g.MaxTokens)
			}
			o.APIKey = g.APIKey
			o.BaseURL = g.BaseURL
			o.Adapter = g.Adapter
			if g.BatchConcurrency > 0 {
				o.BatchConcurrency = g.BatchConcurrency
			}
			o.Logger = logger
		})
	case "ollama":
		m, err := ollama.NewModel(func(o *ollama.Options) {
			if g.Model != "" {
				o.Model = g.Model
			}
			o.Temperature = g.Temperature
			o.NumPredict = g.MaxTokens
			o.BaseURL = g.BaseURL
			o.Adapter = g.Adapter
			if g.BatchConcurrency > 0 {
				o.BatchConcurrency = g.BatchConcurrency
			}
			o.Logger = logger
		})
		if err != nil {
			return nil, nil, err
		}
		base = m
	default:
		return nil, nil, fmt.Errorf("%w: generation.backend %q", config.ErrInvalid, g.Backend)
	}

	if g.MaxCalls > 0 {
		base = model.Limit(base, core.NewCallLimiter(g.MaxCalls), func(o *model.LimitOptions) { o.Logger = logger })
	}

	var (
		c       cache.Cache
		closers []io.Closer
	)
	switch cfg.Cache.Backend {
	case "", "none":
		return base, nil, nil
	case "lru":
		c = cache.NewLRU(cfg.Cache.Capacity)
	case "redis":
		r, err := cache.NewRedis(cfg.Cache.RedisURL, func(o *cache.RedisOptions) {
			o.TTL = cfg.Cache.TTL
			o.Logger = logger
		})
		if err != nil {
			return nil, nil, err
		}
		c = r
		closers = append(closers, r)
	default:
		return nil, nil, fmt.Errorf("%w: cache.backend %q", config.ErrInvalid, cfg.Cache.Backend)
	}

	return cache.NewGenerator(base, c, func(o *cache.GeneratorOptions) {
		if cfg.Cache.TTL > 0 {
			o.TTL = cfg.Cache.TTL
		}
		o.Logger = logger
		o.OnLookup = rec.RecordCacheLookup
	}), closers, nil
}

// NewRetriever builds the configured context retriever, indexing
// cfg.Paths up front. It returns nil for backend "none".
func NewRetriever(ctx context.Context, cfg config.RetrievalConfig) (core.ContextRetriever, error) {
	if cfg.Backend == "" || cfg.Backend == "none" {
		return nil, nil
	}

	chunks, err := retrieval.LoadFiles(cfg.Paths...)
	if err != nil {
		return nil, fmt.Errorf("load retrieval paths: %w", err)
	}

	switch cfg.Backend {
	case "keyword":
		return retrieval.NewKeywordIndexFromChunks(chunks), nil
	case "embedding":
		emb, err := retrieval.NewOllamaEmbedder(func(o *retrieval.OllamaEmbedderOptions) {
			if cfg.EmbeddingModel != "" {
				o.Model = cfg.EmbeddingModel
			}
			o.BaseURL = cfg.OllamaURL
		})
		if err != nil {
			return nil, err
		}
		idx := retrieval.NewEmbeddingIndex(emb)
		if err := idx.Add(ctx, chunks...); err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("%w: retrieval.backend %q", config.ErrInvalid, cfg.Backend)
	}
}
