package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix marks environment overrides. Nested keys use a double
// underscore: HSINDEX_VECTOR_STORE__TYPE sets vector_store.type.
const EnvPrefix = "HSINDEX_"

// DataConfig locates the source tables and heading documents.
type DataConfig struct {
	Dir          string `yaml:"dir" koanf:"dir"`
	Nomenclature string `yaml:"nomenclature" koanf:"nomenclature"`
	Decisions    string `yaml:"decisions" koanf:"decisions"`
	Extraction   string `yaml:"extraction" koanf:"extraction"`
	Contents     string `yaml:"contents" koanf:"contents"`
	HeadingsDir  string `yaml:"headings_dir" koanf:"headings_dir"`
}

// ArtifactsConfig names the persisted build outputs. Relative file names
// resolve against Dir.
type ArtifactsConfig struct {
	Dir           string `yaml:"dir" koanf:"dir"`
	HeadingsCache string `yaml:"headings_cache" koanf:"headings_cache"`
	Index         string `yaml:"index" koanf:"index"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url" koanf:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" koanf:"api_key_env"`
	Model       string `yaml:"model" koanf:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size" koanf:"batch_size"`
}

// FastEmbedConfig configures the local ONNX embedder.
type FastEmbedConfig struct {
	Model     string `yaml:"model" koanf:"model"`
	CacheDir  string `yaml:"cache_dir" koanf:"cache_dir"`
	MaxLength int    `yaml:"max_length" koanf:"max_length"`
	BatchSize int    `yaml:"batch_size" koanf:"batch_size"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string               `yaml:"type" koanf:"type"`
	OpenAI    OpenAIEmbedderConfig `yaml:"openai" koanf:"openai"`
	FastEmbed FastEmbedConfig      `yaml:"fastembed" koanf:"fastembed"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type    string        `yaml:"type" koanf:"type"`
	Metric  string        `yaml:"metric" koanf:"metric"`
	Chromem ChromemConfig `yaml:"chromem" koanf:"chromem"`
	Qdrant  QdrantConfig  `yaml:"qdrant" koanf:"qdrant"`
}

// ChromemConfig configures the embedded chromem-go collection.
type ChromemConfig struct {
	Collection string `yaml:"collection" koanf:"collection"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host       string `yaml:"host" koanf:"host"`
	Port       int    `yaml:"port" koanf:"port"`
	APIKey     string `yaml:"api_key" koanf:"api_key"`
	UseTLS     bool   `yaml:"use_tls" koanf:"use_tls"`
	Collection string `yaml:"collection" koanf:"collection"`
	BatchSize  int    `yaml:"batch_size" koanf:"batch_size"`
}

// SearchConfig tunes the semantic query path.
type SearchConfig struct {
	TopK             int    `yaml:"top_k" koanf:"top_k"`
	DefaultFile      string `yaml:"default_file" koanf:"default_file"`
	ChapterNote      string `yaml:"chapter_note" koanf:"chapter_note"`
	ExcerptSentences int    `yaml:"excerpt_sentences" koanf:"excerpt_sentences"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type" koanf:"type"`
	MaxSentences int    `yaml:"max_sentences" koanf:"max_sentences"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Data        DataConfig        `yaml:"data" koanf:"data"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts" koanf:"artifacts"`
	Embedder    EmbedderConfig    `yaml:"embedder" koanf:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store" koanf:"vector_store"`
	Search      SearchConfig      `yaml:"search" koanf:"search"`
	Summarizer  SummarizerConfig  `yaml:"summarizer" koanf:"summarizer"`
	Logging     LoggingConfig     `yaml:"logging" koanf:"logging"`
}

// HeadingsCachePath returns the headings cache location.
func (c *AppConfig) HeadingsCachePath() string {
	return c.artifact(c.Artifacts.HeadingsCache)
}

// IndexPath returns the index artifact location.
func (c *AppConfig) IndexPath() string {
	return c.artifact(c.Artifacts.Index)
}

func (c *AppConfig) artifact(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Artifacts.Dir, name)
}

// Validate rejects settings no component can honour.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "tfidf", "openai", "fastembed":
	default:
		return fmt.Errorf("unknown embedder type %q", c.Embedder.Type)
	}
	switch c.VectorStore.Type {
	case "memory", "chromem", "qdrant":
	default:
		return fmt.Errorf("unknown vector store type %q", c.VectorStore.Type)
	}
	if m := c.VectorStore.Metric; m != "l2" && m != "cosine" {
		return fmt.Errorf("unknown metric %q", m)
	}
	if c.Search.TopK <= 0 {
		return errors.New("search.top_k must be positive")
	}
	if c.Search.ExcerptSentences < 0 {
		return errors.New("search.excerpt_sentences must be non-negative")
	}
	return nil
}

// Load reads a config from path, then overlays HSINDEX_* environment
// variables. A missing file yields the defaults plus the overlay.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// LoadDefault tries ./config.yaml first, then ~/.config/hsindex/config.yaml.
// If neither exists, it writes defaults to ~/.config/hsindex/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "hsindex", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig { return defaultConfig() }

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Data: DataConfig{
			Dir:          "data",
			Nomenclature: "hs_code.csv",
			Decisions:    "df1_updated.csv",
			Extraction:   "df_Extraction_final.csv",
			Contents:     "df_full_content.csv",
			HeadingsDir:  "data/headings",
		},
		Artifacts: ArtifactsConfig{
			Dir:           "artifacts",
			HeadingsCache: "headings_dict.json",
			Index:         "index.db",
		},
		Embedder:    EmbedderConfig{Type: "tfidf"},
		VectorStore: VectorStoreConfig{Type: "memory", Metric: "l2"},
		Search: SearchConfig{
			TopK:             5,
			DefaultFile:      "à partir de hs_codes.csv",
			ChapterNote:      "Chapitre %s.docx",
			ExcerptSentences: 3,
		},
		Summarizer: SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Logging:    LoggingConfig{Level: "info", Format: "console"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 5
	}
	if cfg.VectorStore.Metric == "" {
		cfg.VectorStore.Metric = "l2"
	}
	if cfg.VectorStore.Type == "chromem" || cfg.VectorStore.Type == "qdrant" {
		cfg.VectorStore.Metric = "cosine"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "fastembed" && cfg.Embedder.FastEmbed.Model == "" {
		cfg.Embedder.FastEmbed.Model = "fast-all-MiniLM-L6-v2"
	}
}
