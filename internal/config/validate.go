package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks the configuration before any service is built.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Model.Provider {
	case "openai":
		if c.OpenAI.Model == "" {
			return errors.New("openai model cannot be empty")
		}
	case "doubao":
		if c.Doubao.Model == "" {
			return errors.New("doubao model cannot be empty")
		}
	case "qwen":
		if c.Qwen.Model == "" {
			return errors.New("qwen model cannot be empty")
		}
		if c.Qwen.BaseURL == "" {
			return errors.New("qwen base_url cannot be empty")
		}
	default:
		return fmt.Errorf("unsupported model provider: %q", c.Model.Provider)
	}

	if c.Embedding.Model == "" {
		return errors.New("embedding model cannot be empty")
	}

	if c.Templates.Path == "" {
		return errors.New("templates path cannot be empty")
	}
	if c.Templates.IndexPath == "" {
		return errors.New("templates index_path cannot be empty")
	}

	if c.Draft.Timeout <= 0 {
		return errors.New("draft timeout must be positive")
	}
	// A request turn embeds the query and then drafts; the response must
	// still fit in the server's write deadline.
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Embedding.Timeout+c.Draft.Timeout {
		return fmt.Errorf("server write_timeout %s must exceed embedding timeout + draft timeout (%s)",
			c.Server.WriteTimeout, c.Embedding.Timeout+c.Draft.Timeout)
	}

	if c.Export.Dir == "" || c.Export.FileName == "" {
		return errors.New("export dir and file_name cannot be empty")
	}
	if !strings.HasSuffix(strings.ToLower(c.Export.FileName), ".docx") {
		return fmt.Errorf("export file_name must end with .docx: %s", c.Export.FileName)
	}

	if c.Session.TTL <= 0 {
		return errors.New("session ttl must be positive")
	}

	if c.MCP.Enabled && !strings.HasPrefix(c.MCP.Path, "/") {
		return fmt.Errorf("mcp path must start with '/': %s", c.MCP.Path)
	}

	return nil
}
