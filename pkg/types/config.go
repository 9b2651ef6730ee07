package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout bounds one adapter or lookup call including retries.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "orcid2taxid/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries bounds retries of transient failures (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// SourceConfig holds settings for the literature source adapters.
type SourceConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxResults caps the records requested from each source (default 100).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// Enabled lists the adapter names to use. Empty means all.
	Enabled []string `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Email is sent as the polite-pool contact to OpenAlex and Crossref.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Provider selects the oracle backend: "claude" or "gemini".
	Provider string `json:"provider" yaml:"provider"`

	// Model is the AI model identifier (e.g. "gemini-2.0-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout bounds a single oracle call (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// ExtractionConfig holds settings for the organism extraction stage.
type ExtractionConfig struct {
	AIConfig `yaml:",inline"`

	// FinderURL overrides the scientific-name finder endpoint.
	FinderURL string `json:"finder_url,omitempty" yaml:"finder_url,omitempty"`

	// WatchlistPath is a YAML watch-list file. Empty uses the built-in list.
	WatchlistPath string `json:"watchlist_path,omitempty" yaml:"watchlist_path,omitempty"`

	// DisableFullText skips the full-text tier.
	DisableFullText bool `json:"disable_full_text" yaml:"disable_full_text"`
}

// TaxonomyConfig holds settings for the taxonomy lookup service.
type TaxonomyConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the optional NCBI E-utilities key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Email is the contact address sent to NCBI.
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Sources    SourceConfig     `json:"sources" yaml:"sources"`
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction"`
	Taxonomy   TaxonomyConfig   `json:"taxonomy" yaml:"taxonomy"`

	// RequestRateLimit is the shared requests-per-minute ceiling for the
	// extraction oracle and taxonomy service (default 100).
	RequestRateLimit int `json:"request_rate_limit" yaml:"request_rate_limit"`

	// Concurrency bounds the per-publication worker pool (default 4).
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}
