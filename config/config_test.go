package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadValidConfig(t *testing.T) {
	// Set valid environment variables
	_ = os.Setenv("PORT", "8002")
	_ = os.Setenv("ADDRESS", "127.0.0.1")
	_ = os.Setenv("ENV", "dev")
	_ = os.Setenv("LOG_LEVEL", "info")
	defer cleanupEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "8002" {
		t.Errorf("Expected port 8002, got %s", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" {
		t.Errorf("Expected address 127.0.0.1, got %s", cfg.Address)
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("Expected env dev, got %s", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected log level info, got %s", cfg.LogLevel)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	// Clear environment variables to test defaults
	_ = os.Unsetenv("PORT")
	_ = os.Unsetenv("ADDRESS")
	_ = os.Unsetenv("ENV")
	_ = os.Unsetenv("LOG_LEVEL")
	defer cleanupEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("Expected default port 8000, got %s", cfg.Port)
	}
	if cfg.Address != "127.0.0.1" {
		t.Errorf("Expected default address 127.0.0.1, got %s", cfg.Address)
	}
	if cfg.Env != EnvDevelopment {
		t.Errorf("Expected default env dev, got %s", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.LogLevel)
	}
}

func TestInvalidPort(t *testing.T) {
	// Test invalid port values (excluding empty string since it uses default)
	testCases := []struct {
		port     string
		expected string
	}{
		{"abc", "PORT must be a valid number"},
		{"0", "PORT must be between 1 and 65535"},
		{"65536", "PORT must be between 1 and 65535"},
		{"80", "PORT 80 is privileged"},
	}

	for _, tc := range testCases {
		_ = os.Setenv("PORT", tc.port)
		_ = os.Setenv("ADDRESS", "127.0.0.1")
		_ = os.Setenv("ENV", "dev")
		_ = os.Setenv("LOG_LEVEL", "info")

		_, err := Load()
		if err == nil {
			t.Errorf("Expected error for port %s, got nil", tc.port)
		}
	}
}

func TestInvalidAddress(t *testing.T) {
	// Test invalid address values (excluding empty string since it uses default)
	testCases := []struct {
		address  string
		expected string
	}{
		{"invalid", "ADDRESS must be a valid IP address"},
	}

	for _, tc := range testCases {
		_ = os.Setenv("PORT", "8002")
		_ = os.Setenv("ADDRESS", tc.address)
		_ = os.Setenv("ENV", "dev")
		_ = os.Setenv("LOG_LEVEL", "info")

		_, err := Load()
		if err == nil {
			t.Errorf("Expected error for address %s, got nil", tc.address)
		}
	}
}

func TestInvalidEnv(t *testing.T) {
	// Test invalid env values (excluding empty string since it uses default)
	testCases := []struct {
		env      string
		expected string
	}{
		{"invalid", "ENV must be one of"},
	}

	for _, tc := range testCases {
		_ = os.Setenv("PORT", "8002")
		_ = os.Setenv("ADDRESS", "127.0.0.1")
		_ = os.Setenv("ENV", tc.env)
		_ = os.Setenv("LOG_LEVEL", "info")

		_, err := Load()
		if err == nil {
			t.Errorf("Expected error for env %s, got nil", tc.env)
		}
	}
}

func TestInvalidLogLevel(t *testing.T) {
	// Test invalid log level values (excluding empty string since it uses default)
	testCases := []struct {
		logLevel string
		expected string
	}{
		{"invalid", "LOG_LEVEL must be one of"},
	}

	for _, tc := range testCases {
		_ = os.Setenv("PORT", "8002")
		_ = os.Setenv("ADDRESS", "127.0.0.1")
		_ = os.Setenv("ENV", "dev")
		_ = os.Setenv("LOG_LEVEL", tc.logLevel)

		_, err := Load()
		if err == nil {
			t.Errorf("Expected error for log level %s, got nil", tc.logLevel)
		}
	}
}

func cleanupEnv() {
	_ = os.Unsetenv("PORT")
	_ = os.Unsetenv("ADDRESS")
	_ = os.Unsetenv("ENV")
	_ = os.Unsetenv("LOG_LEVEL")
}

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		input    string
		expected Environment
		hasError bool
	}{
		{"dev", EnvDevelopment, false},
		{"development", EnvDevelopment, false},
		{"staging", EnvStaging, false},
		{"prod", EnvProduction, false},
		{"production", EnvProduction, false},
		{"test", EnvTest, false},
		{"invalid", EnvDevelopment, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			env, err := ParseEnvironment(tt.input)
			if tt.hasError {
				if err == nil {
					t.Errorf("Expected error for %s, got none", tt.input)
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error for %s: %v", tt.input, err)
				}
				if env != tt.expected {
					t.Errorf("Expected %v, got %v", tt.expected, env)
				}
			}
		})
	}
}

func TestEnvironmentString(t *testing.T) {
	tests := []struct {
		env      Environment
		expected string
	}{
		{EnvDevelopment, "dev"},
		{EnvStaging, "staging"},
		{EnvProduction, "prod"},
		{EnvTest, "test"},
	}

	for _, tt := range tests {
		if got := tt.env.String(); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

func TestPipelineDefaults(t *testing.T) {
	cleanupEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.PortalSearchURL != DefaultPortalSearchURL {
		t.Errorf("Expected default portal URL, got %s", cfg.PortalSearchURL)
	}
	if cfg.PDFCaptureTimeout != 30*time.Second {
		t.Errorf("Expected 30s capture timeout, got %s", cfg.PDFCaptureTimeout)
	}
	if cfg.ChunkSize != 800 || cfg.ChunkOverlap != 150 {
		t.Errorf("Expected chunking 800/150, got %d/%d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if cfg.RetrievalK != 6 || cfg.RetrievalFetchK != 20 || cfg.MMRLambda != 0.5 {
		t.Errorf("Unexpected retrieval defaults: %d/%d/%v", cfg.RetrievalK, cfg.RetrievalFetchK, cfg.MMRLambda)
	}
	if cfg.PortalNameColumn != -1 || cfg.PortalSubstanceColumn != -1 {
		t.Error("Expected heuristic column selection by default")
	}
	if cfg.LLMTimeout != time.Minute {
		t.Errorf("Expected 1m LLM timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.IndexCacheTTL != 30*time.Minute {
		t.Errorf("Expected 30m cache ttl, got %s", cfg.IndexCacheTTL)
	}
	if !cfg.BrowserHeadless {
		t.Error("Expected headless browser by default")
	}
	if cfg.Language != "pt" {
		t.Errorf("Expected pt language, got %s", cfg.Language)
	}
}

func TestPipelineOverrides(t *testing.T) {
	cleanupEnv()
	t.Setenv("PDF_CAPTURE_TIMEOUT", "45")
	t.Setenv("PORTAL_NAVIGATION_TIMEOUT", "15s")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("INDEX_CACHE_TTL", "0")
	t.Setenv("EMBEDDING_PROVIDER", "Hashing")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_TIMEOUT", "20s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if cfg.PDFCaptureTimeout != 45*time.Second {
		t.Errorf("Expected plain seconds to parse, got %s", cfg.PDFCaptureTimeout)
	}
	if cfg.PortalNavigationTimeout != 15*time.Second {
		t.Errorf("Expected 15s, got %s", cfg.PortalNavigationTimeout)
	}
	if cfg.BrowserHeadless {
		t.Error("Expected headful browser")
	}
	if cfg.IndexCacheTTL != 0 {
		t.Errorf("Expected cache disabled, got %s", cfg.IndexCacheTTL)
	}
	if cfg.EmbeddingProvider != "hashing" {
		t.Errorf("Expected lower-cased provider, got %s", cfg.EmbeddingProvider)
	}
	if !cfg.LLMConfigured() {
		t.Error("Expected LLM to be configured")
	}
	if cfg.LLMTimeout != 20*time.Second {
		t.Errorf("Expected 20s LLM timeout, got %s", cfg.LLMTimeout)
	}
}

func TestInvalidPipelineConfig(t *testing.T) {
	testCases := map[string][2]string{
		"portal url":      {"PORTAL_SEARCH_URL", "ftp://infarmed.pt/search"},
		"capture timeout": {"PDF_CAPTURE_TIMEOUT", "10m"},
		"sessions":        {"MAX_BROWSER_SESSIONS", "0"},
		"confidence":      {"LOW_CONFIDENCE_THRESHOLD", "1.5"},
		"column":          {"PORTAL_NAME_COLUMN", "-2"},
		"overlap":         {"CHUNK_OVERLAP", "900"},
		"fetch k":         {"RETRIEVAL_FETCH_K", "3"},
		"lambda":          {"MMR_LAMBDA", "-0.1"},
		"temperature":     {"LLM_TEMPERATURE", "3"},
		"provider":        {"EMBEDDING_PROVIDER", "cohere"},
		"language":        {"LANGUAGE", "fr"},
	}

	for name, kv := range testCases {
		t.Run(name, func(t *testing.T) {
			cleanupEnv()
			t.Setenv(kv[0], kv[1])

			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%s", kv[0], kv[1])
			}
		})
	}
}
