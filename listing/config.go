package listing

import (
	"encoding/json"
	"errors"
	"os"
)

// Config holds the repository settings plus the optional generation and
// server sections.
type Config struct {
	Repo       RepoConfig `json:"repo"`
	LLM        *LLMConfig `json:"llm,omitempty"`
	ServerAddr string     `json:"server_addr,omitempty"`
	StorePath  string     `json:"store_path,omitempty"`
	// Fixed delay between items in a bulk generation pass, milliseconds.
	GenerateDelayMS int `json:"generate_delay_ms,omitempty"`
}

// RepoConfig identifies the upstream repository whose merged pull requests
// are listed.
type RepoConfig struct {
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	Token    string `json:"token,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// LLMConfig is the model configuration for the generation module.
type LLMConfig struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// LoadConfig reads JSON config from disk.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Repo.Owner == "" || cfg.Repo.Name == "" {
		return Config{}, errors.New("config must include repo.owner and repo.name")
	}
	return cfg, nil
}
