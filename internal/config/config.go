package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the intake API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Index     IndexConfig     `yaml:"index"`
	WhatsApp  WhatsAppConfig  `yaml:"whatsapp"`
	WebSearch WebSearchConfig `yaml:"websearch"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	AdminKeys []string `yaml:"admin_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"`
}

// ChatConfig holds chat completion settings.
type ChatConfig struct {
	APIKey      string   `yaml:"api_key"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Temperature *float64 `yaml:"temperature"`
	Refine      bool     `yaml:"refine"` // second pass rewriting for lay readers
}

// RetrievalConfig holds the selection policy thresholds. Read once at startup
// and immutable for the process lifetime. The threshold fields are pointers
// so that an explicit 0 in the file (a valid boundary setting) is kept apart
// from an absent key, which gets the default.
type RetrievalConfig struct {
	MinChunkScore      *float64 `yaml:"min_chunk_score"`
	MaxChunksPerDoc    int      `yaml:"max_chunks_per_document"`
	DiversityWeight    *float64 `yaml:"diversity_weight"`
	FallbackConfidence *float64 `yaml:"fallback_confidence"`
	TopK               int      `yaml:"top_k"`
	CandidateOverfetch int      `yaml:"candidate_overfetch"`
	UseWebFallback     bool     `yaml:"use_web_fallback"`
	AppendCoverageNote bool     `yaml:"append_coverage_note"`
	MaxWebResults      int      `yaml:"max_web_results"`
}

// IndexConfig holds PDF indexing settings. ChunkOverlap is a pointer for the
// same reason as the retrieval thresholds: 0 (no overlap) is configurable.
type IndexConfig struct {
	Dir          string `yaml:"dir"`     // where the chunk store lives
	PDFDir       string `yaml:"pdf_dir"` // source documents
	ChunkChars   int    `yaml:"chunk_chars"`
	ChunkOverlap *int   `yaml:"chunk_overlap"`
}

// WhatsAppConfig holds Z-API settings.
type WhatsAppConfig struct {
	BaseURL       string `yaml:"base_url"`
	InstanceID    string `yaml:"instance_id"`
	InstanceToken string `yaml:"instance_token"`
	ClientToken   string `yaml:"client_token"`
	WebhookSecret string `yaml:"webhook_secret"`
}

// WebSearchConfig holds Tavily fallback settings.
type WebSearchConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	SearchDepth string `yaml:"search_depth"` // basic | advanced
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 5050
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/intake.db"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 16
	}
	if c.Chat.Model == "" {
		c.Chat.Model = "gpt-4o-mini"
	}
	if c.Chat.Temperature == nil {
		c.Chat.Temperature = floatPtr(0.2)
	}
	if c.Retrieval.MinChunkScore == nil {
		c.Retrieval.MinChunkScore = floatPtr(0.3)
	}
	if c.Retrieval.MaxChunksPerDoc == 0 {
		c.Retrieval.MaxChunksPerDoc = 3
	}
	if c.Retrieval.DiversityWeight == nil {
		c.Retrieval.DiversityWeight = floatPtr(0.6)
	}
	if c.Retrieval.FallbackConfidence == nil {
		c.Retrieval.FallbackConfidence = floatPtr(0.45)
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 6
	}
	if c.Retrieval.CandidateOverfetch <= 0 {
		c.Retrieval.CandidateOverfetch = 5
	}
	if c.Retrieval.MaxWebResults <= 0 {
		c.Retrieval.MaxWebResults = 4
	}
	if c.Index.Dir == "" {
		c.Index.Dir = "index/chunks"
	}
	if c.Index.PDFDir == "" {
		c.Index.PDFDir = "data/pdfs"
	}
	if c.Index.ChunkChars <= 0 {
		c.Index.ChunkChars = 1200
	}
	if c.Index.ChunkOverlap == nil {
		c.Index.ChunkOverlap = intPtr(150)
	}
	if c.WhatsApp.BaseURL == "" {
		c.WhatsApp.BaseURL = "https://api.z-api.io"
	}
	if c.WebSearch.BaseURL == "" {
		c.WebSearch.BaseURL = "https://api.tavily.com"
	}
	if c.WebSearch.SearchDepth == "" {
		c.WebSearch.SearchDepth = "advanced"
	}
}

// Validate checks the configuration for correctness. Malformed selection
// parameters are rejected here, never at retrieval time. Validate expects
// ApplyDefaults to have run first.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if s := *c.Retrieval.MinChunkScore; s < 0 || s > 1 {
		return fmt.Errorf("retrieval.min_chunk_score must be in [0,1], got %v", s)
	}
	if w := *c.Retrieval.DiversityWeight; w < 0 || w > 1 {
		return fmt.Errorf("retrieval.diversity_weight must be in [0,1], got %v", w)
	}
	if c.Retrieval.MaxChunksPerDoc < 1 {
		return fmt.Errorf("retrieval.max_chunks_per_document must be >= 1, got %d", c.Retrieval.MaxChunksPerDoc)
	}
	if f := *c.Retrieval.FallbackConfidence; f < 0 || f > 1 {
		return fmt.Errorf("retrieval.fallback_confidence must be in [0,1], got %v", f)
	}
	if o := *c.Index.ChunkOverlap; o < 0 {
		return fmt.Errorf("index.chunk_overlap must be >= 0, got %d", o)
	} else if o >= c.Index.ChunkChars {
		return fmt.Errorf("index.chunk_overlap (%d) must be smaller than index.chunk_chars (%d)",
			o, c.Index.ChunkChars)
	}
	switch c.WebSearch.SearchDepth {
	case "basic", "advanced":
	default:
		return fmt.Errorf("websearch.search_depth must be \"basic\" or \"advanced\", got %q", c.WebSearch.SearchDepth)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
