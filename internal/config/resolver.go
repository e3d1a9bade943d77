// Package config resolves runtime configuration from the config file, the
// environment and CLI flags, in increasing order of precedence. Every value
// remembers where it came from so `feishu-notify config` can explain it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vgh186/feishu/internal/feishu"
	"github.com/vgh186/feishu/internal/history"
	"github.com/vgh186/feishu/internal/llm"
)

// DefaultConfigFile is looked up next to the executable.
const DefaultConfigFile = "feishu_config.json"

// Environment variable names. The credential names double as flat keys in
// the config file.
const (
	EnvConfigPath      = "FEISHU_NOTIFY_CONFIG"
	EnvAppID           = "FEISHU_APP_ID"
	EnvAppSecret       = "FEISHU_APP_SECRET"
	EnvBitableAppToken = "FEISHU_BITABLE_APP_TOKEN"
	EnvTableID         = "FEISHU_TABLE_ID"
	EnvVolcAPIKey      = "VOLC_API_KEY"
	EnvVolcEndpointID  = "VOLC_ENDPOINT_ID"
	EnvLLMProvider     = "FEISHU_NOTIFY_LLM"
	EnvHistoryPath     = "FEISHU_NOTIFY_HISTORY"
	EnvHistoryBackend  = "FEISHU_NOTIFY_HISTORY_BACKEND"
)

// ErrMalformedConfig wraps a config file that exists but cannot be parsed.
var ErrMalformedConfig = errors.New("malformed config file")

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

type ResolveOptions struct {
	ConfigPath     string
	HistoryPath    string
	HistoryBackend string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	AppID           ResolvedValue `json:"app_id"`
	AppSecret       ResolvedValue `json:"app_secret"`
	BitableAppToken ResolvedValue `json:"bitable_app_token"`
	TableID         ResolvedValue `json:"table_id"`
	FeishuBaseURL   ResolvedValue `json:"feishu_base_url"`

	LLMProvider ResolvedValue `json:"llm_provider"`
	LLMAPIKey   ResolvedValue `json:"llm_api_key"`
	LLMModel    ResolvedValue `json:"llm_model"`
	LLMBaseURL  ResolvedValue `json:"llm_base_url"`

	HistoryBackend ResolvedValue `json:"history_backend"`
	HistoryPath    ResolvedValue `json:"history_path"`

	Fields        feishu.FieldNames `json:"fields"`
	LLMTimeout    time.Duration     `json:"llm_timeout"`
	FeishuTimeout time.Duration     `json:"feishu_timeout"`
}

type fileConfig struct {
	// Flat keys of the original feishu_config.json.
	AppID           string `yaml:"FEISHU_APP_ID"`
	AppSecret       string `yaml:"FEISHU_APP_SECRET"`
	BitableAppToken string `yaml:"FEISHU_BITABLE_APP_TOKEN"`
	TableID         string `yaml:"FEISHU_TABLE_ID"`
	VolcAPIKey      string `yaml:"VOLC_API_KEY"`
	VolcEndpointID  string `yaml:"VOLC_ENDPOINT_ID"`

	Feishu struct {
		AppID       string `yaml:"app_id"`
		AppSecret   string `yaml:"app_secret"`
		AppToken    string `yaml:"bitable_app_token"`
		TableID     string `yaml:"table_id"`
		BaseURL     string `yaml:"base_url"`
		TimeoutSecs int    `yaml:"timeout_secs"`
	} `yaml:"feishu"`
	LLM struct {
		Provider    string `yaml:"provider"`
		APIKey      string `yaml:"api_key"`
		Model       string `yaml:"model"`
		BaseURL     string `yaml:"base_url"`
		TimeoutSecs int    `yaml:"timeout_secs"`
	} `yaml:"llm"`
	History struct {
		Backend string `yaml:"backend"`
		Path    string `yaml:"path"`
	} `yaml:"history"`
	Fields feishu.FieldNames `yaml:"fields"`
}

// AppDir is the directory holding the executable, or "." if unknown.
func AppDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func DefaultConfigPath() string {
	return filepath.Join(AppDir(), DefaultConfigFile)
}

// DefaultHistoryPath returns the history location for backend.
func DefaultHistoryPath(backend string) string {
	if strings.EqualFold(backend, history.BackendSQLite) {
		return filepath.Join(AppDir(), "notification_history.db")
	}
	return filepath.Join(AppDir(), history.DefaultJSONFile)
}

// ResolveConfig builds the effective configuration. A malformed config file
// is reported through the returned error (wrapping ErrMalformedConfig) while
// the result still carries env, CLI and default values.
func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if path == "" {
		path = DefaultConfigPath()
	}
	path = expandUserPath(path)

	out := ResolvedConfig{
		ConfigPath:    path,
		LLMTimeout:    llm.DefaultTimeout,
		FeishuTimeout: feishu.DefaultTimeout,
	}

	cfg, loadErr := loadConfig(path)
	if cfg != nil {
		apply(&out.AppID, firstNonEmpty(cfg.Feishu.AppID, cfg.AppID), SourceConfig, path)
		apply(&out.AppSecret, firstNonEmpty(cfg.Feishu.AppSecret, cfg.AppSecret), SourceConfig, path)
		apply(&out.BitableAppToken, firstNonEmpty(cfg.Feishu.AppToken, cfg.BitableAppToken), SourceConfig, path)
		apply(&out.TableID, firstNonEmpty(cfg.Feishu.TableID, cfg.TableID), SourceConfig, path)
		apply(&out.FeishuBaseURL, cfg.Feishu.BaseURL, SourceConfig, path)

		apply(&out.LLMProvider, cfg.LLM.Provider, SourceConfig, path)
		apply(&out.LLMAPIKey, firstNonEmpty(cfg.LLM.APIKey, cfg.VolcAPIKey), SourceConfig, path)
		apply(&out.LLMModel, firstNonEmpty(cfg.LLM.Model, cfg.VolcEndpointID), SourceConfig, path)
		apply(&out.LLMBaseURL, cfg.LLM.BaseURL, SourceConfig, path)

		apply(&out.HistoryBackend, cfg.History.Backend, SourceConfig, path)
		apply(&out.HistoryPath, cfg.History.Path, SourceConfig, path)

		out.Fields = cfg.Fields
		if cfg.LLM.TimeoutSecs > 0 {
			out.LLMTimeout = time.Duration(cfg.LLM.TimeoutSecs) * time.Second
		}
		if cfg.Feishu.TimeoutSecs > 0 {
			out.FeishuTimeout = time.Duration(cfg.Feishu.TimeoutSecs) * time.Second
		}
	}

	applyEnv(&out.AppID, EnvAppID)
	applyEnv(&out.AppSecret, EnvAppSecret)
	applyEnv(&out.BitableAppToken, EnvBitableAppToken)
	applyEnv(&out.TableID, EnvTableID)
	applyEnv(&out.LLMAPIKey, EnvVolcAPIKey)
	applyEnv(&out.LLMModel, EnvVolcEndpointID)
	applyEnv(&out.LLMProvider, EnvLLMProvider)
	applyEnv(&out.HistoryPath, EnvHistoryPath)
	applyEnv(&out.HistoryBackend, EnvHistoryBackend)

	apply(&out.HistoryPath, opts.HistoryPath, SourceCLI, "--history")
	apply(&out.HistoryBackend, opts.HistoryBackend, SourceCLI, "--history-backend")

	if out.LLMProvider.Value == "" {
		out.LLMProvider = ResolvedValue{Value: "volc", Source: SourceDefault, From: "built-in default"}
	}
	if out.HistoryBackend.Value == "" {
		out.HistoryBackend = ResolvedValue{Value: history.BackendJSON, Source: SourceDefault, From: "built-in default"}
	}
	if out.HistoryPath.Value == "" {
		out.HistoryPath = ResolvedValue{Value: DefaultHistoryPath(out.HistoryBackend.Value), Source: SourceDefault, From: "built-in default"}
	} else {
		out.HistoryPath.Value = expandUserPath(out.HistoryPath.Value)
	}

	return out, loadErr
}

// LLMReady reports whether extraction credentials are present.
func (r ResolvedConfig) LLMReady() bool {
	return r.LLMAPIKey.Value != "" && r.LLMModel.Value != ""
}

// FeishuReady reports whether all four bitable credentials are present.
func (r ResolvedConfig) FeishuReady() bool {
	return r.FeishuConfig().Complete()
}

// Missing lists the names of absent credentials.
func (r ResolvedConfig) Missing() []string {
	var missing []string
	for _, kv := range []struct {
		name string
		v    ResolvedValue
	}{
		{EnvAppID, r.AppID},
		{EnvAppSecret, r.AppSecret},
		{EnvBitableAppToken, r.BitableAppToken},
		{EnvTableID, r.TableID},
		{EnvVolcAPIKey, r.LLMAPIKey},
		{EnvVolcEndpointID, r.LLMModel},
	} {
		if kv.v.Value == "" {
			missing = append(missing, kv.name)
		}
	}
	return missing
}

// LLMConfig returns the provider configuration.
func (r ResolvedConfig) LLMConfig() llm.Config {
	return llm.Config{
		Provider: r.LLMProvider.Value,
		Model:    r.LLMModel.Value,
		APIKey:   r.LLMAPIKey.Value,
		BaseURL:  r.LLMBaseURL.Value,
		Timeout:  r.LLMTimeout,
	}
}

// FeishuConfig returns the bitable writer configuration.
func (r ResolvedConfig) FeishuConfig() feishu.Config {
	return feishu.Config{
		AppID:     r.AppID.Value,
		AppSecret: r.AppSecret.Value,
		AppToken:  r.BitableAppToken.Value,
		TableID:   r.TableID.Value,
		BaseURL:   r.FeishuBaseURL.Value,
		Timeout:   r.FeishuTimeout,
		Fields:    r.Fields,
	}
}

// HistoryConfig returns the history backend configuration.
func (r ResolvedConfig) HistoryConfig() history.Config {
	return history.Config{Backend: r.HistoryBackend.Value, Path: r.HistoryPath.Value}
}

// Mask hides all but the last four characters of a secret.
func Mask(v string) string {
	if v == "" {
		return ""
	}
	r := []rune(v)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrMalformedConfig, path, err)
	}
	return &cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
