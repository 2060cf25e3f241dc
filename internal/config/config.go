package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// BackendConfig holds settings for the outreach backend
type BackendConfig struct {
	// URL is the backend base URL (overridden by BACKEND_URL)
	URL string `json:"url"`

	// Timeout for plain JSON requests; streaming requests have no timeout
	Timeout string `json:"timeout"`
}

// FirestoreConfig holds settings for the remote user-document store
type FirestoreConfig struct {
	// CredentialsPath points to the Firebase service-account JSON
	// (overridden by FIREBASE_CREDENTIALS_PATH)
	CredentialsPath string `json:"credentials_path"`

	// ProjectID is the Firebase project (overridden by FIRESTORE_PROJECT_ID)
	ProjectID string `json:"project_id"`

	// Debug enables the read-after-write verification diagnostic
	Debug bool `json:"debug"`
}

// GmailConfig holds settings for sending from the user's own mailbox
type GmailConfig struct {
	Enabled         bool   `json:"enabled"`
	CredentialsPath string `json:"credentials_path"`
	TokenPath       string `json:"token_path"`
}

// Config holds all configuration for the Scout client
type Config struct {
	Backend   BackendConfig   `json:"backend"`
	Firestore FirestoreConfig `json:"firestore"`
	Gmail     GmailConfig     `json:"gmail"`

	// CachePath is the SQLite local fallback database path
	CachePath string `json:"cache_path"`

	// LogFile receives debug logging when set
	LogFile string `json:"log_file"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:     "http://localhost:8080",
			Timeout: "30s",
		},
		Firestore: FirestoreConfig{},
		Gmail:     GmailConfig{},
		CachePath: "",
		LogFile:   "",
	}
}

// LoadConfig loads configuration from the given path, applying defaults
// and environment overrides. A missing config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional; real environment wins either way
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg := DefaultConfig()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("FIREBASE_CREDENTIALS_PATH"); v != "" {
		cfg.Firestore.CredentialsPath = v
	}
	if v := os.Getenv("FIRESTORE_PROJECT_ID"); v != "" {
		cfg.Firestore.ProjectID = v
	}

	return cfg, nil
}

// GetBackendTimeout parses the configured request timeout
func (c *Config) GetBackendTimeout() time.Duration {
	d, err := time.ParseDuration(c.Backend.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() string {
	if p := os.Getenv("SCOUT_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "scout", "config.json")
}

// DefaultCredentialPaths returns the default Gmail credential and token paths
func DefaultCredentialPaths() (string, string) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", ""
	}
	configDir := filepath.Join(home, ".config", "scout")
	credentialsPath := filepath.Join(configDir, "credentials.json")
	tokenPath := filepath.Join(configDir, "token.json")

	if p := os.Getenv("SCOUT_CREDENTIALS"); p != "" {
		credentialsPath = p
	}
	if p := os.Getenv("SCOUT_TOKEN"); p != "" {
		tokenPath = p
	}
	return credentialsPath, tokenPath
}

// DefaultCachePath returns the default local fallback database path
func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "scout", "cache", "scout.db")
}
