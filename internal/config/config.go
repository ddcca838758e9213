package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Model     ModelConfig     `mapstructure:"model"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Doubao    DoubaoConfig    `mapstructure:"doubao"`
	Qwen      QwenConfig      `mapstructure:"qwen"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Draft     DraftConfig     `mapstructure:"draft"`
	Export    ExportConfig    `mapstructure:"export"`
	Session   SessionConfig   `mapstructure:"session"`
	UI        UIConfig        `mapstructure:"ui"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

// ModelConfig selects the chat model provider: openai, doubao or qwen.
type ModelConfig struct {
	Provider string `mapstructure:"provider"`
}

type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DoubaoConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

type QwenConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float32       `mapstructure:"temperature"`
	TopP         float32       `mapstructure:"top_p"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

type EmbeddingConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type TemplatesConfig struct {
	Path      string `mapstructure:"path"`
	IndexPath string `mapstructure:"index_path"`
}

type DraftConfig struct {
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ExportConfig struct {
	Dir          string `mapstructure:"dir"`
	FileName     string `mapstructure:"file_name"`
	DownloadName string `mapstructure:"download_name"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type UIConfig struct {
	UserAvatar      string `mapstructure:"user_avatar"`
	AssistantAvatar string `mapstructure:"assistant_avatar"`
}

type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// envKeys have no default but must still be readable from the environment;
// AutomaticEnv only resolves keys viper already knows.
var envKeys = []string{
	"openai.api_key", "openai.base_url",
	"doubao.api_key", "doubao.base_url", "doubao.model", "doubao.max_tokens", "doubao.temperature",
	"qwen.api_key", "qwen.base_url", "qwen.model", "qwen.max_tokens", "qwen.temperature", "qwen.top_p", "qwen.debug_request",
	"embedding.api_key", "embedding.base_url",
	"cors.allow_credentials",
	"log.file", "log.max_size_mb", "log.max_backups", "log.max_age_days",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 180*time.Second)
	v.SetDefault("server.max_header_bytes", 1<<20)

	v.SetDefault("model.provider", "openai")
	v.SetDefault("openai.model", "gpt-4")
	v.SetDefault("openai.timeout", 90*time.Second)
	v.SetDefault("qwen.timeout", 90*time.Second)

	v.SetDefault("embedding.model", "text-embedding-3-large")
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("templates.path", "data/contratti_template.json")
	v.SetDefault("templates.index_path", "data/template_index.json")

	v.SetDefault("draft.system_prompt", "Sei un esperto di contratti editoriali.")
	v.SetDefault("draft.timeout", 90*time.Second)

	v.SetDefault("export.dir", "contratti_generati")
	v.SetDefault("export.file_name", "bozza_contratto.docx")
	v.SetDefault("export.download_name", "contratto_personalizzato.docx")

	v.SetDefault("session.ttl", 2*time.Hour)
	v.SetDefault("session.cleanup_interval", 10*time.Minute)

	v.SetDefault("ui.user_avatar", "user_icon.png")
	v.SetDefault("ui.assistant_avatar", "assistant_icon.png")

	v.SetDefault("mcp.enabled", false)
	v.SetDefault("mcp.path", "/mcp")

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Disposition"})
	v.SetDefault("cors.max_age", 600)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads the YAML file at configPath. Any key can be overridden with a
// CONTRACT_ prefixed variable, e.g. CONTRACT_OPENAI_API_KEY.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CONTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// The config file wins; well-known provider variables fill the gaps.
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = cfg.OpenAI.APIKey
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = cfg.OpenAI.BaseURL
	}
	if cfg.Doubao.APIKey == "" {
		cfg.Doubao.APIKey = os.Getenv("ARK_API_KEY")
	}
	if cfg.Qwen.APIKey == "" {
		cfg.Qwen.APIKey = os.Getenv("DASHSCOPE_API_KEY")
	}

	return cfg, nil
}
