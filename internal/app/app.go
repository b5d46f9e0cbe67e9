// Package app assembles an engine from configuration.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"hsindex/internal/config"
	"hsindex/internal/dataset"
	"hsindex/internal/domain"
	"hsindex/internal/embedding"
	"hsindex/internal/embedding/fastembed"
	"hsindex/internal/embedding/openai"
	"hsindex/internal/embedding/tfidf"
	"hsindex/internal/index"
	"hsindex/internal/metrics"
	"hsindex/internal/search"
	"hsindex/internal/service"
	"hsindex/internal/summarizer"
	"hsindex/internal/vectorstore"
	"hsindex/internal/vectorstore/chromem"
	"hsindex/internal/vectorstore/memory"
	"hsindex/internal/vectorstore/qdrant"
)

// Options carries the process-level collaborators that do not come from
// the config file.
type Options struct {
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Progress index.ProgressFunc
}

// NewEngine returns an engine that has not been built yet. Embedder and
// store construction errors surface on the first build.
func NewEngine(cfg *config.AppConfig, opts Options) (*service.Engine, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	sum, err := NewSummarizer(cfg.Summarizer)
	if err != nil {
		return nil, err
	}
	paths := service.Paths{
		DataDir: cfg.Data.Dir,
		Files: dataset.Files{
			Nomenclature: cfg.Data.Nomenclature,
			Decisions:    cfg.Data.Decisions,
			Extraction:   cfg.Data.Extraction,
			Contents:     cfg.Data.Contents,
		},
		HeadingsDir:   cfg.Data.HeadingsDir,
		HeadingsCache: cfg.HeadingsCachePath(),
		IndexArtifact: cfg.IndexPath(),
	}
	searchCfg := search.Config{
		DefaultFile:      cfg.Search.DefaultFile,
		ChapterNote:      cfg.Search.ChapterNote,
		ExcerptSentences: cfg.Search.ExcerptSentences,
	}
	return service.New(paths, searchCfg, cfg.Search.TopK, service.Deps{
		NewEmbedder: EmbedderFactory(cfg.Embedder),
		NewStore:    StoreFactory(cfg.VectorStore),
		Summarizer:  sum,
		Logger:      opts.Logger,
		Metrics:     opts.Metrics,
		Progress:    opts.Progress,
	}), nil
}

// EmbedderFactory returns a constructor for the configured embedder.
func EmbedderFactory(cfg config.EmbedderConfig) func() (embedding.Embedder, error) {
	return func() (embedding.Embedder, error) {
		switch cfg.Type {
		case "tfidf", "":
			return tfidf.NewEmbedder(), nil
		case "openai":
			client, err := openai.NewClient(openai.Config{
				BaseURL:   cfg.OpenAI.BaseURL,
				APIKeyEnv: cfg.OpenAI.APIKeyEnv,
				Model:     cfg.OpenAI.Model,
				Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
				BatchSize: cfg.OpenAI.BatchSize,
			})
			if err != nil {
				return nil, fmt.Errorf("openai embedder init failed: %w", err)
			}
			return client, nil
		case "fastembed":
			emb, err := fastembed.New(fastembed.Config{
				Model:     cfg.FastEmbed.Model,
				CacheDir:  cfg.FastEmbed.CacheDir,
				MaxLength: cfg.FastEmbed.MaxLength,
				BatchSize: cfg.FastEmbed.BatchSize,
			})
			if err != nil {
				return nil, fmt.Errorf("fastembed init failed: %w", err)
			}
			return emb, nil
		default:
			return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
		}
	}
}

// StoreFactory returns a constructor for the configured vector store.
func StoreFactory(cfg config.VectorStoreConfig) func() (vectorstore.Storage, error) {
	return func() (vectorstore.Storage, error) {
		switch cfg.Type {
		case "memory", "":
			metric := vectorstore.MetricL2
			if cfg.Metric == "cosine" {
				metric = vectorstore.MetricCosine
			}
			return memory.NewStorage(metric), nil
		case "chromem":
			return chromem.NewStorage(cfg.Chromem.Collection), nil
		case "qdrant":
			st, err := qdrant.NewStorage(qdrant.Config{
				Host:       cfg.Qdrant.Host,
				Port:       cfg.Qdrant.Port,
				APIKey:     cfg.Qdrant.APIKey,
				UseTLS:     cfg.Qdrant.UseTLS,
				Collection: cfg.Qdrant.Collection,
				BatchSize:  cfg.Qdrant.BatchSize,
			})
			if err != nil {
				return nil, fmt.Errorf("qdrant init failed: %w", err)
			}
			return st, nil
		default:
			return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
		}
	}
}

// NewSummarizer returns the configured excerpt summarizer.
func NewSummarizer(cfg config.SummarizerConfig) (domain.Summarizer, error) {
	switch cfg.Type {
	case "frequency", "":
		return summarizer.NewFrequencySummarizer(), nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Type)
	}
}
