package model

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
)

// Config holds all claimcheck configuration
type Config struct {
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Search      SearchConfig      `mapstructure:"search" yaml:"search"`
	Rerank      RerankConfig      `mapstructure:"rerank" yaml:"rerank"`
	Extract     ExtractConfig     `mapstructure:"extract" yaml:"extract"`
	Verify      VerifyConfig      `mapstructure:"verify" yaml:"verify"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Timeouts    TimeoutConfig     `mapstructure:"timeouts" yaml:"timeouts"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Fetch       FetchConfig       `mapstructure:"fetch" yaml:"fetch"`
	Authority   AuthorityConfig   `mapstructure:"authority" yaml:"authority"`
	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
}

// LLMConfig configures the language model gateway
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" yaml:"provider" validate:"required,oneof=openai anthropic claude ollama gemini"`
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKey      string  `mapstructure:"api_key" yaml:"-"` // Never written to disk
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url,omitempty" validate:"omitempty,url"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=64"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
}

// SearchConfig configures the evidence retriever
type SearchConfig struct {
	Provider   string `mapstructure:"provider" yaml:"provider" validate:"required,oneof=tavily static"`
	APIKey     string `mapstructure:"api_key" yaml:"-"`
	BaseURL    string `mapstructure:"base_url" yaml:"base_url,omitempty" validate:"omitempty,url"`
	Depth      string `mapstructure:"depth" yaml:"depth" validate:"oneof=basic advanced"`
	MaxResults int    `mapstructure:"max_results" yaml:"max_results" validate:"gte=1,lte=20"`
	Fixtures   string `mapstructure:"fixtures" yaml:"fixtures,omitempty"` // YAML file for the static provider
}

// RerankConfig configures the optional evidence reranker
type RerankConfig struct {
	Provider string `mapstructure:"provider" yaml:"provider" validate:"omitempty,oneof=cohere"` // Empty disables reranking
	APIKey   string `mapstructure:"api_key" yaml:"-"`
	Model    string `mapstructure:"model" yaml:"model"`
}

// ExtractConfig configures claim extraction
type ExtractConfig struct {
	MaxChunkChars int `mapstructure:"max_chunk_chars" yaml:"max_chunk_chars" validate:"gte=500"`
	MaxClaims     int `mapstructure:"max_claims" yaml:"max_claims" validate:"gte=0"` // 0 = unlimited
}

// VerifyConfig configures evidence preparation and adjudication
type VerifyConfig struct {
	MaxEvidence      int     `mapstructure:"max_evidence" yaml:"max_evidence" validate:"gte=1,lte=20"`
	MaxSnippetChars  int     `mapstructure:"max_snippet_chars" yaml:"max_snippet_chars" validate:"gte=100"`
	MaxEvidenceChars int     `mapstructure:"max_evidence_chars" yaml:"max_evidence_chars" validate:"gtefield=MaxSnippetChars"`
	TolerancePercent float64 `mapstructure:"tolerance_percent" yaml:"tolerance_percent" validate:"gte=0,lte=50"`
	CheckLinks       bool    `mapstructure:"check_links" yaml:"check_links"`
}

// ConcurrencyConfig configures the worker pool and backend throttles
type ConcurrencyConfig struct {
	Workers   int     `mapstructure:"workers" yaml:"workers" validate:"gte=1,lte=64"`
	LLMRPS    float64 `mapstructure:"llm_rps" yaml:"llm_rps" validate:"gt=0"`
	SearchRPS float64 `mapstructure:"search_rps" yaml:"search_rps" validate:"gt=0"`
}

// TimeoutConfig holds per-call timeouts in seconds
type TimeoutConfig struct {
	LLM    int `mapstructure:"llm" yaml:"llm" validate:"gte=1"`
	Search int `mapstructure:"search" yaml:"search" validate:"gte=1"`
	HTTP   int `mapstructure:"http" yaml:"http" validate:"gte=1"` // Document fetch and link checks
}

// LLMTimeout returns the language model call timeout
func (t TimeoutConfig) LLMTimeout() time.Duration {
	return time.Duration(t.LLM) * time.Second
}

// SearchTimeout returns the retrieval call timeout
func (t TimeoutConfig) SearchTimeout() time.Duration {
	return time.Duration(t.Search) * time.Second
}

// HTTPTimeout returns the plain HTTP timeout
func (t TimeoutConfig) HTTPTimeout() time.Duration {
	return time.Duration(t.HTTP) * time.Second
}

// CacheConfig configures the response cache
type CacheConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend" validate:"oneof=none memory disk layered redis"`
	TTL           int    `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"` // seconds
	Dir           string `mapstructure:"dir" yaml:"dir,omitempty"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty" validate:"required_if=Backend redis"`
	RedisPassword string `mapstructure:"redis_password" yaml:"-"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db,omitempty"`
}

// TTLDuration returns the cache entry lifetime
func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// FetchConfig configures document fetching by URL
type FetchConfig struct {
	UserAgent     string `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes  int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes" validate:"gte=1024"`
	RespectRobots bool   `mapstructure:"respect_robots" yaml:"respect_robots"`
	HTTPProxy     string `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy    string `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
	NoProxy       string `mapstructure:"no_proxy" yaml:"no_proxy,omitempty"`
}

// AuthorityConfig configures source authority classification
type AuthorityConfig struct {
	PrimaryDomains   []string          `mapstructure:"primary_domains" yaml:"primary_domains"`
	SecondaryDomains []string          `mapstructure:"secondary_domains" yaml:"secondary_domains"`
	DomainMap        map[string]string `mapstructure:"domain_map" yaml:"domain_map,omitempty"` // host -> tier, overrides lists
	PathPatterns     []PathPattern     `mapstructure:"path_patterns" yaml:"path_patterns,omitempty" validate:"dive"`
}

// PathPattern assigns a tier to URLs whose path matches a regular expression
type PathPattern struct {
	Pattern string `mapstructure:"pattern" yaml:"pattern"`
	Tier    string `mapstructure:"tier" yaml:"tier" validate:"oneof=primary secondary tertiary"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr" validate:"required"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes" yaml:"max_body_bytes" validate:"gte=1024"`
}

// LogConfig configures logging
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "",
			MaxTokens:   2000,
			Temperature: 0,
		},
		Search: SearchConfig{
			Provider:   "tavily",
			Depth:      "advanced",
			MaxResults: 5,
		},
		Rerank: RerankConfig{
			Model: "rerank-v3.5",
		},
		Extract: ExtractConfig{
			MaxChunkChars: 10000,
			MaxClaims:     0,
		},
		Verify: VerifyConfig{
			MaxEvidence:      5,
			MaxSnippetChars:  1200,
			MaxEvidenceChars: 6000,
			TolerancePercent: 2.0,
		},
		Concurrency: ConcurrencyConfig{
			Workers:   4,
			LLMRPS:    2.0,
			SearchRPS: 2.0,
		},
		Timeouts: TimeoutConfig{
			LLM:    60,
			Search: 20,
			HTTP:   15,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     86400,
		},
		Fetch: FetchConfig{
			UserAgent:     "claimcheck/0.1 (+https://github.com/ppiankov/claimcheck)",
			MaxBodyBytes:  10 * 1024 * 1024,
			RespectRobots: true,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"ine.es", "ons.gov.uk", "bls.gov", "census.gov", "bea.gov", "sec.gov",
				"eurostat.ec.europa.eu", "europa.eu", "ecb.europa.eu", "oecd.org",
				"worldbank.org", "imf.org", "who.int", "un.org", "bis.org",
				"legislation.gov.uk", "doi.org", "arxiv.org", "pubmed.ncbi.nlm.nih.gov",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com", "apnews.com",
				"bbc.co.uk", "bbc.com", "ft.com", "bloomberg.com", "economist.com",
				"nytimes.com", "wsj.com", "theguardian.com", "statista.com",
			},
			PathPatterns: []PathPattern{
				{Pattern: `(?i)/(statistics|statistical-data|data-release)/`, Tier: "primary"},
				{Pattern: `(?i)/(blog|blogs|forum)/`, Tier: "tertiary"},
			},
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxBodyBytes: 2 * 1024 * 1024,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its field constraints
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, fe.Namespace()+" ("+fe.Tag()+")")
			}
		}
		return goerr.Wrap(err, "invalid configuration", goerr.V("fields", strings.Join(fields, ", ")))
	}
	return nil
}
