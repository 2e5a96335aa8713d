package rag

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dsilvera/ragpipe/pkg/session"
)

// Thresholds contains the retrieval tuning knobs.
//
// These are part of the pipeline's contract surface, not hardcoded logic:
// every value can be set from configuration, and the defaults mirror the
// latest tuned production configuration.
type Thresholds struct {
	// Similarity is the minimum score for a retrieved document to be kept.
	Similarity float64 `json:"similarity"`

	// MinConfidenceDrop is the minimum score gap between rank 1 and rank 2
	// required to keep both. A smaller gap means the ranking is ambiguous,
	// so retrieval collapses to the single strongest document.
	MinConfidenceDrop float64 `json:"min_confidence_drop"`

	// MinContentLength drops documents shorter than this many bytes.
	// 0 disables the length filter.
	MinContentLength int `json:"min_content_length"`

	// MatchCount is the result cap requested from the search collaborator.
	MatchCount int `json:"match_count"`

	// KeepTop is the maximum number of documents retrieval returns.
	KeepTop int `json:"keep_top"`

	// SourceConfidence is the minimum similarity for a document to be
	// cited as a source. Stricter than Similarity: a document can ground
	// the answer without being confident enough to cite.
	SourceConfidence float64 `json:"source_confidence"`
}

// PersonaConfig describes the assistant persona and the subject of the
// knowledge base.
type PersonaConfig struct {
	// AssistantName is the assistant's self-identification in prompts.
	AssistantName string `json:"assistant_name"`

	// SubjectName is the person the knowledge base is about.
	SubjectName string `json:"subject_name"`

	// FastPathPhrases are high-confidence substrings that route a query to
	// retrieval without consulting the classifier. The subject's name
	// variants belong here.
	FastPathPhrases []string `json:"fast_path_phrases"`

	// FallbackKeywords is the keyword list used when the classifier call
	// fails. Matching is case-insensitive substring.
	FallbackKeywords []string `json:"fallback_keywords"`
}

// GenerationConfig contains text-generation settings.
type GenerationConfig struct {
	// Model is the generation model identifier, recorded in every
	// LogEntry.
	Model string `json:"model"`

	// GroundedTemperature is used when retrieved context is present;
	// lower favors grounded determinism.
	GroundedTemperature float64 `json:"grounded_temperature"`

	// OpenTemperature is used when no context is present; higher favors
	// open-ended fluency.
	OpenTemperature float64 `json:"open_temperature"`

	// TopP is the nucleus sampling parameter.
	TopP float64 `json:"top_p"`

	// MaxOutputTokens caps the generated response length.
	MaxOutputTokens int `json:"max_output_tokens"`

	// FallbackMessage is the fixed user-facing response when generation
	// fails.
	FallbackMessage string `json:"fallback_message"`
}

// Config is the complete pipeline configuration.
type Config struct {
	// EmbeddingDims is the knowledge base's embedding dimension. Query
	// vectors of any other length are rejected before search.
	EmbeddingDims int `json:"embedding_dims"`

	// CacheMaxEntries caps the embedding cache. 0 means unbounded.
	CacheMaxEntries int `json:"cache_max_entries"`

	// Thresholds holds the retrieval tuning knobs.
	Thresholds Thresholds `json:"thresholds"`

	// Persona describes the assistant and subject.
	Persona PersonaConfig `json:"persona"`

	// Generation holds text-generation settings.
	Generation GenerationConfig `json:"generation"`

	// Registry holds session registry and memory settings.
	Registry session.RegistryConfig `json:"registry"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingDims: 768,
		Thresholds: Thresholds{
			Similarity:        0.62,
			MinConfidenceDrop: 0.15,
			MinContentLength:  250,
			MatchCount:        5,
			KeepTop:           2,
			SourceConfidence:  0.60,
		},
		Persona: PersonaConfig{
			AssistantName: "Bob",
			SubjectName:   "David",
		},
		Generation: GenerationConfig{
			Model:               "gpt-4o-mini",
			GroundedTemperature: 0.2,
			OpenTemperature:     0.7,
			TopP:                0.9,
			MaxOutputTokens:     800,
			FallbackMessage:     "⚠️ Temporary error. Please try again.",
		},
		Registry: session.RegistryConfig{
			IdleTimeout:   30 * time.Minute,
			SweepInterval: 5 * time.Minute,
			Manager: session.Config{
				MaxShortTerm:  10,
				MaxContentLen: 500,
			},
		},
	}
}

// LoadConfigFromEnv builds a Config from environment variables, layered on
// top of DefaultConfig.
//
// The function first loads a .env file when one can be found (searching up
// to 5 directory levels up, for local development), then reads:
//
//	RAG_EMBEDDING_DIMS, RAG_CACHE_MAX_ENTRIES
//	RAG_SIMILARITY_THRESHOLD, RAG_MIN_CONFIDENCE_DROP,
//	RAG_MIN_CONTENT_LENGTH, RAG_MATCH_COUNT, RAG_KEEP_TOP,
//	RAG_SOURCE_CONFIDENCE
//	RAG_ASSISTANT_NAME, RAG_SUBJECT_NAME, RAG_FAST_PATH_PHRASES,
//	RAG_KEYWORDS (comma-separated lists)
//	RAG_MODEL, RAG_GROUNDED_TEMPERATURE, RAG_OPEN_TEMPERATURE, RAG_TOP_P,
//	RAG_MAX_OUTPUT_TOKENS, RAG_FALLBACK_MESSAGE
//	SESSION_IDLE_TIMEOUT, SESSION_SWEEP_INTERVAL (Go durations),
//	SESSION_MAX_SHORT_TERM, SESSION_MAX_CONTENT_LEN, SESSION_WRITE_BACKUPS
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	cfg.EmbeddingDims = getEnvInt("RAG_EMBEDDING_DIMS", cfg.EmbeddingDims)
	cfg.CacheMaxEntries = getEnvInt("RAG_CACHE_MAX_ENTRIES", cfg.CacheMaxEntries)

	cfg.Thresholds.Similarity = getEnvFloat("RAG_SIMILARITY_THRESHOLD", cfg.Thresholds.Similarity)
	cfg.Thresholds.MinConfidenceDrop = getEnvFloat("RAG_MIN_CONFIDENCE_DROP", cfg.Thresholds.MinConfidenceDrop)
	cfg.Thresholds.MinContentLength = getEnvInt("RAG_MIN_CONTENT_LENGTH", cfg.Thresholds.MinContentLength)
	cfg.Thresholds.MatchCount = getEnvInt("RAG_MATCH_COUNT", cfg.Thresholds.MatchCount)
	cfg.Thresholds.KeepTop = getEnvInt("RAG_KEEP_TOP", cfg.Thresholds.KeepTop)
	cfg.Thresholds.SourceConfidence = getEnvFloat("RAG_SOURCE_CONFIDENCE", cfg.Thresholds.SourceConfidence)

	cfg.Persona.AssistantName = getEnvOrDefault("RAG_ASSISTANT_NAME", cfg.Persona.AssistantName)
	cfg.Persona.SubjectName = getEnvOrDefault("RAG_SUBJECT_NAME", cfg.Persona.SubjectName)
	cfg.Persona.FastPathPhrases = getEnvList("RAG_FAST_PATH_PHRASES", cfg.Persona.FastPathPhrases)
	cfg.Persona.FallbackKeywords = getEnvList("RAG_KEYWORDS", cfg.Persona.FallbackKeywords)

	cfg.Generation.Model = getEnvOrDefault("RAG_MODEL", cfg.Generation.Model)
	cfg.Generation.GroundedTemperature = getEnvFloat("RAG_GROUNDED_TEMPERATURE", cfg.Generation.GroundedTemperature)
	cfg.Generation.OpenTemperature = getEnvFloat("RAG_OPEN_TEMPERATURE", cfg.Generation.OpenTemperature)
	cfg.Generation.TopP = getEnvFloat("RAG_TOP_P", cfg.Generation.TopP)
	cfg.Generation.MaxOutputTokens = getEnvInt("RAG_MAX_OUTPUT_TOKENS", cfg.Generation.MaxOutputTokens)
	cfg.Generation.FallbackMessage = getEnvOrDefault("RAG_FALLBACK_MESSAGE", cfg.Generation.FallbackMessage)

	cfg.Registry.IdleTimeout = getEnvDuration("SESSION_IDLE_TIMEOUT", cfg.Registry.IdleTimeout)
	cfg.Registry.SweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", cfg.Registry.SweepInterval)
	cfg.Registry.Manager.MaxShortTerm = getEnvInt("SESSION_MAX_SHORT_TERM", cfg.Registry.Manager.MaxShortTerm)
	cfg.Registry.Manager.MaxContentLen = getEnvInt("SESSION_MAX_CONTENT_LEN", cfg.Registry.Manager.MaxContentLen)
	cfg.Registry.Manager.WriteBackups = os.Getenv("SESSION_WRITE_BACKUPS") == "true"

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.EmbeddingDims <= 0 {
		return NewPipelineError("Validate", ErrInvalidConfig)
	}
	if c.Thresholds.Similarity < 0 || c.Thresholds.Similarity > 1 {
		return NewPipelineError("Validate", ErrInvalidConfig)
	}
	if c.Thresholds.KeepTop <= 0 || c.Thresholds.MatchCount <= 0 {
		return NewPipelineError("Validate", ErrInvalidConfig)
	}
	if c.Generation.Model == "" {
		return NewPipelineError("Validate", ErrInvalidConfig)
	}
	return nil
}

// FindEnvFile searches for a .env or .env.example file in the current
// directory and up to 5 levels above it.
//
// Returns the path of the first file found and whether one was found.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
