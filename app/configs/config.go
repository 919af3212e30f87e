package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type Config struct {
	Agent   AgentConfig   `json:"agent"`
	Backend BackendConfig `json:"backend"`
	Chat    ChatConfig    `json:"chat"`
	HTTP    HTTPConfig    `json:"http"`
}

type AgentConfig struct {
	Name string `json:"name"`
}

type BackendConfig struct {
	BaseURL    string `json:"base_url"`
	APIKeyEnv  string `json:"api_key_env"`
	Model      string `json:"model"`
	TimeoutSec int    `json:"timeout_sec"`
}

type ChatConfig struct {
	CLIUserID     string `json:"cli_user_id"`
	HistoryLimit  int    `json:"history_limit"`
	TitleMaxRunes int    `json:"title_max_runes"`
}

type HTTPConfig struct {
	Port int `json:"port"`
}

type Manager struct {
	path string
	mu   sync.RWMutex
	cfg  Config
}

func DefaultPath() string {
	return filepath.Join("config", "config.json")
}

func NewManager(path string) (*Manager, error) {
	cfg := defaultConfig()
	mgr := &Manager{
		path: path,
		cfg:  cfg,
	}
	if err := mgr.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	if err := mgr.save(); err != nil {
		return nil, err
	}
	return mgr, nil
}

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) Update(apply func(*Config)) (Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	apply(&m.cfg)
	applyDefaults(&m.cfg)
	if err := m.saveLocked(); err != nil {
		return Config{}, err
	}
	return m.cfg, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	var fileCfg Config
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		return err
	}
	m.cfg = fileCfg
	applyDefaults(&m.cfg)
	return nil
}

func (m *Manager) save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m.cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0644)
}

func defaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Name: "TaskPilot",
		},
		Backend: BackendConfig{
			BaseURL:    "http://localhost:8000/v1",
			APIKeyEnv:  "TASKPILOT_API_KEY",
			Model:      "gpt-4o-mini",
			TimeoutSec: 60,
		},
		Chat: ChatConfig{
			CLIUserID:     "local_user",
			HistoryLimit:  40,
			TitleMaxRunes: 30,
		},
		HTTP: HTTPConfig{
			Port: 8080,
		},
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Agent.Name) == "" {
		cfg.Agent.Name = "TaskPilot"
	}
	if strings.TrimSpace(cfg.Backend.BaseURL) == "" {
		cfg.Backend.BaseURL = "http://localhost:8000/v1"
	}
	if strings.TrimSpace(cfg.Backend.APIKeyEnv) == "" {
		cfg.Backend.APIKeyEnv = "TASKPILOT_API_KEY"
	}
	if strings.TrimSpace(cfg.Backend.Model) == "" {
		cfg.Backend.Model = "gpt-4o-mini"
	}
	if cfg.Backend.TimeoutSec <= 0 {
		cfg.Backend.TimeoutSec = 60
	}
	if strings.TrimSpace(cfg.Chat.CLIUserID) == "" {
		cfg.Chat.CLIUserID = "local_user"
	}
	if cfg.Chat.HistoryLimit <= 0 {
		cfg.Chat.HistoryLimit = 40
	}
	if cfg.Chat.TitleMaxRunes <= 0 {
		cfg.Chat.TitleMaxRunes = 30
	}
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
}
