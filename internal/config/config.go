// Package config builds the single configuration value handed to every
// component at process start.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	KindVertex = "vertex"
	KindChat   = "chat"
)

// OCR engine names.
const (
	EngineChat      = "chat"
	EngineVertex    = "vertex"
	EngineTesseract = "tesseract"
	EngineNone      = "none"
)

// ConfigEnv names the environment variable pointing at an optional YAML file.
const ConfigEnv = "DOCREVIEW_CONFIG"

// ErrMissingSetting marks a required setting that was left empty.
var ErrMissingSetting = errors.New("missing required setting")

// Configuration validation errors.
var (
	ErrEmptyChain          = errors.New("providers.chain must list at least one provider")
	ErrUnknownProvider     = errors.New("provider is not defined under providers.endpoints")
	ErrUnknownProviderKind = errors.New("provider kind must be 'vertex' or 'chat'")
	ErrInvalidMaxTokens    = errors.New("llm.max_tokens must be at least 1")
	ErrInvalidTimeout      = errors.New("timeout must be positive")
	ErrAgentTimeoutBudget  = errors.New("review.agent_timeout must exceed the provider chain length times llm.request_timeout")
	ErrInvalidMinChars     = errors.New("ocr.min_text_chars must be at least 1")
	ErrInvalidDimension    = errors.New("ocr.max_image_dimension must be at least 64")
	ErrInvalidConcurrency  = errors.New("concurrency must be at least 1")
	ErrInvalidOCREngine    = errors.New("ocr.engine must be one of: chat, vertex, tesseract, none")
	ErrInvalidLogLevel     = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat    = errors.New("logging.format must be 'json' or 'text'")
)

// ValidationError enumerates every problem found by Validate.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("invalid configuration (%d problems): %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap exposes the individual problems to errors.Is.
func (e *ValidationError) Unwrap() []error { return e.Problems }

// Config is the complete service configuration.
type Config struct {
	GCP       GCPConfig       `yaml:"gcp"`
	Providers ProvidersConfig `yaml:"providers"`
	LLM       LLMConfig       `yaml:"llm"`
	OCR       OCRConfig       `yaml:"ocr"`
	Review    ReviewConfig    `yaml:"review"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// GCPConfig holds project-level resource names.
type GCPConfig struct {
	ProjectID           string `yaml:"project_id"`
	VertexRegion        string `yaml:"vertex_region"`
	FirestoreDatabase   string `yaml:"firestore_database"`
	FirestoreCollection string `yaml:"firestore_collection"`
	SourceBucket        string `yaml:"source_bucket"`
	ReportBucket        string `yaml:"report_bucket"`
	WorkflowID          string `yaml:"workflow_id"`
	WorkflowLocation    string `yaml:"workflow_location"`
}

// ProvidersConfig declares the LLM fallback chain and each provider's endpoint.
type ProvidersConfig struct {
	Chain     []string                  `yaml:"chain"`
	Endpoints map[string]ProviderConfig `yaml:"endpoints"`
}

// ProviderConfig describes one LLM backend.
type ProviderConfig struct {
	Kind    string `yaml:"kind"`
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// LLMConfig controls AI-backed review.
type LLMConfig struct {
	Enabled        bool          `yaml:"enabled"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float32       `yaml:"temperature"`
	CacheEnabled   bool          `yaml:"cache_enabled"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// OCRConfig controls page-level method selection and OCR dispatch.
type OCRConfig struct {
	Engine            string        `yaml:"engine"`
	Fallback          []string      `yaml:"fallback"`
	Model             string        `yaml:"model"`
	MinTextChars      int           `yaml:"min_text_chars"`
	MaxImageDimension int           `yaml:"max_image_dimension"`
	DPI               int           `yaml:"dpi"`
	Timeout           time.Duration `yaml:"timeout"`
	Concurrency       int           `yaml:"concurrency"`
}

// ReviewConfig controls the agent run.
type ReviewConfig struct {
	Agents           []string      `yaml:"agents"`
	AgentTimeout     time.Duration `yaml:"agent_timeout"`
	AgentConcurrency int           `yaml:"agent_concurrency"`
	MaxPromptChars   int           `yaml:"max_prompt_chars"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		GCP: GCPConfig{
			VertexRegion:        "us-central1",
			FirestoreCollection: "reviewSessions",
			WorkflowLocation:    "us-central1",
		},
		Providers: ProvidersConfig{
			Chain: []string{"groq", "vertex"},
			Endpoints: map[string]ProviderConfig{
				"groq": {
					Kind:    KindChat,
					BaseURL: "https://api.groq.com/openai/v1",
					Model:   "llama3-70b-8192",
				},
				"mistral": {
					Kind:    KindChat,
					BaseURL: "https://api.mistral.ai/v1",
					Model:   "pixtral-12b-2409",
				},
				"vertex": {
					Kind:  KindVertex,
					Model: "gemini-1.5-flash",
				},
			},
		},
		LLM: LLMConfig{
			Enabled:        true,
			MaxTokens:      2000,
			Temperature:    0.3,
			CacheEnabled:   true,
			CacheTTL:       24 * time.Hour,
			RequestTimeout: 60 * time.Second,
		},
		OCR: OCRConfig{
			Engine:            EngineChat,
			Model:             "pixtral-12b-2409",
			MinTextChars:      50,
			MaxImageDimension: 2048,
			DPI:               300,
			Timeout:           60 * time.Second,
			Concurrency:       4,
		},
		Review: ReviewConfig{
			Agents:           []string{"technical", "formatting", "brand", "diagram", "summary"},
			AgentTimeout:     3 * time.Minute,
			AgentConcurrency: 4,
			MaxPromptChars:   12000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// DOCREVIEW_CONFIG (if set) and the process environment, then validates it.
func Load() (*Config, error) {
	return LoadWith(os.Getenv(ConfigEnv), os.LookupEnv)
}

// LoadWith is Load with an explicit file path and environment lookup.
func LoadWith(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables. Unset variables leave the
// current value alone.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("PROJECT_ID", &c.GCP.ProjectID)
	str("VERTEX_AI_REGION", &c.GCP.VertexRegion)
	str("FIRESTORE_DATABASE", &c.GCP.FirestoreDatabase)
	str("FIRESTORE_COLLECTION", &c.GCP.FirestoreCollection)
	str("SOURCE_BUCKET", &c.GCP.SourceBucket)
	str("REPORTS_BUCKET", &c.GCP.ReportBucket)
	str("WORKFLOW_ID", &c.GCP.WorkflowID)
	str("WORKFLOW_LOCATION", &c.GCP.WorkflowLocation)

	list("LLM_PROVIDER_CHAIN", &c.Providers.Chain)
	for name, p := range c.Providers.Endpoints {
		prefix := strings.ToUpper(name)
		str(prefix+"_API_KEY", &p.APIKey)
		str(prefix+"_BASE_URL", &p.BaseURL)
		str(prefix+"_MODEL", &p.Model)
		c.Providers.Endpoints[name] = p
	}

	boolean("LLM_ENABLED", &c.LLM.Enabled)
	integer("LLM_MAX_TOKENS", &c.LLM.MaxTokens)
	boolean("LLM_CACHE_ENABLED", &c.LLM.CacheEnabled)
	duration("LLM_CACHE_TTL", &c.LLM.CacheTTL)
	duration("LLM_REQUEST_TIMEOUT", &c.LLM.RequestTimeout)

	str("OCR_ENGINE", &c.OCR.Engine)
	list("OCR_FALLBACK_ENGINES", &c.OCR.Fallback)
	str("OCR_MODEL", &c.OCR.Model)
	integer("OCR_MIN_TEXT_CHARS", &c.OCR.MinTextChars)
	integer("OCR_MAX_IMAGE_DIMENSION", &c.OCR.MaxImageDimension)
	integer("OCR_DPI", &c.OCR.DPI)
	duration("OCR_TIMEOUT", &c.OCR.Timeout)
	integer("OCR_CONCURRENCY", &c.OCR.Concurrency)

	list("REVIEW_AGENTS", &c.Review.Agents)
	duration("REVIEW_AGENT_TIMEOUT", &c.Review.AgentTimeout)
	integer("REVIEW_AGENT_CONCURRENCY", &c.Review.AgentConcurrency)
	integer("REVIEW_MAX_PROMPT_CHARS", &c.Review.MaxPromptChars)

	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	if len(errs) > 0 {
		return &ValidationError{Problems: errs}
	}
	return nil
}

// Validate checks the configuration and reports every problem at once.
// Provider settings are only checked while AI-backed review is enabled.
func (c *Config) Validate() error {
	var problems []error
	add := func(err error, format string, args ...any) {
		if format == "" {
			problems = append(problems, err)
			return
		}
		problems = append(problems, fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...)))
	}

	if c.LLM.Enabled {
		if len(c.Providers.Chain) == 0 {
			add(ErrEmptyChain, "")
		}
		for _, name := range c.Providers.Chain {
			p, ok := c.Providers.Endpoints[name]
			if !ok {
				add(ErrUnknownProvider, "%s", name)
				continue
			}
			switch p.Kind {
			case KindChat:
				if p.APIKey == "" {
					add(ErrMissingSetting, "%s_API_KEY", strings.ToUpper(name))
				}
				if p.BaseURL == "" {
					add(ErrMissingSetting, "providers.endpoints.%s.base_url", name)
				}
				if p.Model == "" {
					add(ErrMissingSetting, "providers.endpoints.%s.model", name)
				}
			case KindVertex:
				if c.GCP.ProjectID == "" {
					add(ErrMissingSetting, "PROJECT_ID (required by provider %s)", name)
				}
				if c.GCP.VertexRegion == "" {
					add(ErrMissingSetting, "VERTEX_AI_REGION (required by provider %s)", name)
				}
			default:
				add(ErrUnknownProviderKind, "%s: %q", name, p.Kind)
			}
		}
		if c.LLM.MaxTokens < 1 {
			add(ErrInvalidMaxTokens, "")
		}
		if c.LLM.RequestTimeout <= 0 {
			add(ErrInvalidTimeout, "llm.request_timeout")
		}
		if c.LLM.CacheEnabled && c.LLM.CacheTTL <= 0 {
			add(ErrInvalidTimeout, "llm.cache_ttl")
		}
		if budget := time.Duration(len(c.Providers.Chain)) * c.LLM.RequestTimeout; c.LLM.RequestTimeout > 0 &&
			c.Review.AgentTimeout > 0 && c.Review.AgentTimeout <= budget {
			add(ErrAgentTimeoutBudget, "%s <= %d x %s", c.Review.AgentTimeout, len(c.Providers.Chain), c.LLM.RequestTimeout)
		}
	}

	for _, engine := range c.OCREngines() {
		switch engine {
		case EngineChat:
			if c.LLM.Enabled && c.OCRCredentials() == "" {
				add(ErrMissingSetting, "MISTRAL_API_KEY (required by ocr engine chat)")
			}
		case EngineVertex:
			if c.GCP.ProjectID == "" {
				add(ErrMissingSetting, "PROJECT_ID (required by ocr engine vertex)")
			}
		case EngineTesseract, EngineNone:
		default:
			add(ErrInvalidOCREngine, "%q", engine)
		}
	}
	if c.OCR.MinTextChars < 1 {
		add(ErrInvalidMinChars, "")
	}
	if c.OCR.MaxImageDimension < 64 {
		add(ErrInvalidDimension, "")
	}
	if c.OCR.Timeout <= 0 {
		add(ErrInvalidTimeout, "ocr.timeout")
	}
	if c.OCR.Concurrency < 1 {
		add(ErrInvalidConcurrency, "ocr.concurrency")
	}
	if c.Review.AgentTimeout <= 0 {
		add(ErrInvalidTimeout, "review.agent_timeout")
	}
	if c.Review.AgentConcurrency < 1 {
		add(ErrInvalidConcurrency, "review.agent_concurrency")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		add(ErrInvalidLogLevel, "")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		add(ErrInvalidLogFormat, "")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// OCREngines lists ocr.engine followed by ocr.fallback, without repeats.
func (c *Config) OCREngines() []string {
	out := []string{c.OCR.Engine}
	for _, e := range c.OCR.Fallback {
		if !slices.Contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}

// OCRCredentials returns the API key used by the chat OCR engine.
func (c *Config) OCRCredentials() string {
	return c.Providers.Endpoints["mistral"].APIKey
}

// Provider returns the named provider settings.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	p, ok := c.Providers.Endpoints[name]
	return p, ok
}

// String returns a short representation safe for logs.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{AI: %t, Chain: %v, OCR: %s, Agents: %v}",
		c.LLM.Enabled,
		c.Providers.Chain,
		c.OCR.Engine,
		c.Review.Agents,
	)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
