// Package config loads the leaflet API configuration from environment variables
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes
	CORSOrigins       []string

	// Portal automation
	PortalSearchURL         string
	PortalNavigationTimeout time.Duration
	PDFCaptureTimeout       time.Duration
	BrowserHeadless         bool
	BrowserExecPath         string
	MaxBrowserSessions      int
	LowConfidenceThreshold  float64
	PortalNameColumn        int // -1 selects columns heuristically
	PortalSubstanceColumn   int

	// Indexing and answering
	ChunkSize         int
	ChunkOverlap      int
	RetrievalK        int
	RetrievalFetchK   int
	MMRLambda         float64
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	ChatModel         string
	VisionModel       string
	EmbeddingModel    string
	EmbeddingProvider string // openai or hashing
	LLMTemperature    float64
	LLMTimeout        time.Duration // per request bound of embedding and chat calls
	IndexCacheTTL     time.Duration // 0 rebuilds the index for every question
	Language          string
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               Environment(strings.ToLower(getEnvWithDefault("ENV", "dev"))),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 26214400), // 25MB default, leaflets travel base64 encoded
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),   // 1MB default
		CORSOrigins:       splitList(getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*")),

		PortalSearchURL:         getEnvWithDefault("PORTAL_SEARCH_URL", DefaultPortalSearchURL),
		PortalNavigationTimeout: getDurationEnvWithDefault("PORTAL_NAVIGATION_TIMEOUT", 10*time.Second),
		PDFCaptureTimeout:       getDurationEnvWithDefault("PDF_CAPTURE_TIMEOUT", 30*time.Second),
		BrowserHeadless:         getBoolEnvWithDefault("BROWSER_HEADLESS", true),
		BrowserExecPath:         os.Getenv("BROWSER_EXEC_PATH"),
		MaxBrowserSessions:      getIntEnvWithDefault("MAX_BROWSER_SESSIONS", 2),
		LowConfidenceThreshold:  getFloatEnvWithDefault("LOW_CONFIDENCE_THRESHOLD", 0.5),
		PortalNameColumn:        getIntEnvWithDefault("PORTAL_NAME_COLUMN", -1),
		PortalSubstanceColumn:   getIntEnvWithDefault("PORTAL_SUBSTANCE_COLUMN", -1),

		ChunkSize:         getIntEnvWithDefault("CHUNK_SIZE", 800),
		ChunkOverlap:      getIntEnvWithDefault("CHUNK_OVERLAP", 150),
		RetrievalK:        getIntEnvWithDefault("RETRIEVAL_K", 6),
		RetrievalFetchK:   getIntEnvWithDefault("RETRIEVAL_FETCH_K", 20),
		MMRLambda:         getFloatEnvWithDefault("MMR_LAMBDA", 0.5),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		ChatModel:         getEnvWithDefault("CHAT_MODEL", "gpt-4.1-nano"),
		VisionModel:       getEnvWithDefault("VISION_MODEL", "gpt-4.1-nano"),
		EmbeddingModel:    getEnvWithDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingProvider: strings.ToLower(getEnvWithDefault("EMBEDDING_PROVIDER", "openai")),
		LLMTemperature:    getFloatEnvWithDefault("LLM_TEMPERATURE", 0),
		LLMTimeout:        getDurationEnvWithDefault("LLM_TIMEOUT", 60*time.Second),
		IndexCacheTTL:     getDurationEnvWithDefault("INDEX_CACHE_TTL", 30*time.Minute),
		Language:          strings.ToLower(getEnvWithDefault("LANGUAGE", "pt")),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	// Validate PORT
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	// Validate ADDRESS
	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	// Validate ENV
	env, err := ParseEnvironment(string(cfg.Env))
	if err != nil {
		return fmt.Errorf("invalid ENV: %w", err)
	}
	cfg.Env = env

	// Validate LOG_LEVEL
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// Validate MAX_REQUEST_BODY
	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	// Validate MAX_HEADER_SIZE
	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	// Validate LOG_RETENTION_WEEKS
	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	// Validate MAX_LOG_FILE_SIZE
	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	if err := validatePortalURL(cfg.PortalSearchURL); err != nil {
		return fmt.Errorf("invalid PORTAL_SEARCH_URL: %w", err)
	}

	if err := validatePositiveDuration(cfg.PortalNavigationTimeout); err != nil {
		return fmt.Errorf("invalid PORTAL_NAVIGATION_TIMEOUT: %w", err)
	}

	if err := validatePositiveDuration(cfg.PDFCaptureTimeout); err != nil {
		return fmt.Errorf("invalid PDF_CAPTURE_TIMEOUT: %w", err)
	}

	if cfg.MaxBrowserSessions < 1 || cfg.MaxBrowserSessions > 16 {
		return fmt.Errorf("invalid MAX_BROWSER_SESSIONS: must be between 1 and 16, got: %d", cfg.MaxBrowserSessions)
	}

	if err := validateUnitInterval(cfg.LowConfidenceThreshold); err != nil {
		return fmt.Errorf("invalid LOW_CONFIDENCE_THRESHOLD: %w", err)
	}

	if cfg.PortalNameColumn < -1 || cfg.PortalSubstanceColumn < -1 {
		return fmt.Errorf("invalid PORTAL_NAME_COLUMN/PORTAL_SUBSTANCE_COLUMN: must be -1 or a column index")
	}

	if err := validateChunking(cfg.ChunkSize, cfg.ChunkOverlap); err != nil {
		return fmt.Errorf("invalid CHUNK_SIZE/CHUNK_OVERLAP: %w", err)
	}

	if cfg.RetrievalK < 1 || cfg.RetrievalFetchK < cfg.RetrievalK {
		return fmt.Errorf("invalid RETRIEVAL_K/RETRIEVAL_FETCH_K: need 1 <= K <= FETCH_K, got %d and %d", cfg.RetrievalK, cfg.RetrievalFetchK)
	}

	if err := validateUnitInterval(cfg.MMRLambda); err != nil {
		return fmt.Errorf("invalid MMR_LAMBDA: %w", err)
	}

	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return fmt.Errorf("invalid LLM_TEMPERATURE: must be between 0 and 2, got: %v", cfg.LLMTemperature)
	}

	if err := validatePositiveDuration(cfg.LLMTimeout); err != nil {
		return fmt.Errorf("invalid LLM_TIMEOUT: %w", err)
	}

	if cfg.EmbeddingProvider != "openai" && cfg.EmbeddingProvider != "hashing" {
		return fmt.Errorf("invalid EMBEDDING_PROVIDER: must be openai or hashing, got: %s", cfg.EmbeddingProvider)
	}

	if cfg.IndexCacheTTL < 0 {
		return fmt.Errorf("invalid INDEX_CACHE_TTL: must not be negative")
	}

	if cfg.Language != "pt" && cfg.Language != "en" {
		return fmt.Errorf("invalid LANGUAGE: must be pt or en, got: %s", cfg.Language)
	}

	return nil
}

// DefaultPortalSearchURL is the INFARMED advanced search page
const DefaultPortalSearchURL = "https://extranet.infarmed.pt/INFOMED-fo/pesquisa-avancada.xhtml"

// LLMConfigured reports whether an API key for the hosted models is present
func (c *Config) LLMConfigured() bool {
	return c.OpenAIAPIKey != ""
}

// validatePortalURL requires an absolute http(s) URL
func validatePortalURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	return nil
}

func validatePositiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("must be positive, got: %s", d)
	}
	if d > 5*time.Minute {
		return fmt.Errorf("is too large (max 5m), got: %s", d)
	}
	return nil
}

func validateUnitInterval(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("must be between 0 and 1, got: %v", v)
	}
	return nil
}

func validateChunking(size, overlap int) error {
	if size < 100 || size > 8000 {
		return fmt.Errorf("chunk size must be between 100 and 8000, got: %d", size)
	}
	if overlap < 0 || overlap >= size {
		return fmt.Errorf("overlap must be in [0, chunk size), got: %d", overlap)
	}
	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	// Check for localhost/loopback addresses first
	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		// This is acceptable for development
		return nil
	}

	// Check if it's a valid IP address
	if ip := net.ParseIP(address); ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Check for private network ranges (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
	ip := net.ParseIP(address)
	if ip != nil && !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// Environment is the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

func (e Environment) String() string {
	return string(e)
}

// ParseEnvironment accepts the short names and their long forms
func ParseEnvironment(env string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	case "":
		return EnvDevelopment, fmt.Errorf("ENV cannot be empty")
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", env)
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnvWithDefault gets an environment variable as float64 with a default value
func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getBoolEnvWithDefault gets an environment variable as bool with a default value
func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault accepts Go durations ("30s") or plain seconds ("30")
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// splitList parses a comma separated environment value
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"CORS_ALLOWED_ORIGINS",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"LOG_DIR",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"PORTAL_SEARCH_URL",
		"PORTAL_NAVIGATION_TIMEOUT",
		"PDF_CAPTURE_TIMEOUT",
		"BROWSER_HEADLESS",
		"BROWSER_EXEC_PATH",
		"MAX_BROWSER_SESSIONS",
		"LOW_CONFIDENCE_THRESHOLD",
		"PORTAL_NAME_COLUMN",
		"PORTAL_SUBSTANCE_COLUMN",
		"CHUNK_SIZE",
		"CHUNK_OVERLAP",
		"RETRIEVAL_K",
		"RETRIEVAL_FETCH_K",
		"MMR_LAMBDA",
		"OPENAI_API_KEY",
		"OPENAI_BASE_URL",
		"CHAT_MODEL",
		"VISION_MODEL",
		"EMBEDDING_MODEL",
		"EMBEDDING_PROVIDER",
		"LLM_TEMPERATURE",
		"LLM_TIMEOUT",
		"INDEX_CACHE_TTL",
		"LANGUAGE",
	}
}

// ValidateAllEnvVars checks if all required environment variables are set
func ValidateAllEnvVars() error {
	requiredVars := []string{"PORT"} // Only PORT is truly required
	missingVars := []string{}

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missingVars = append(missingVars, varName)
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
