package mcpserver

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ca-srg/legalrag/internal/types"
)

// ServerConfig holds the HTTP listener settings for the MCP server.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedIPs      []string
	Version         string
}

// NewServerConfig maps and validates the MCP_SERVER_* settings.
func NewServerConfig(cfg *types.Config) (ServerConfig, error) {
	if cfg == nil {
		return ServerConfig{}, fmt.Errorf("configuration cannot be nil")
	}

	out := ServerConfig{
		Host:            strings.TrimSpace(cfg.MCPServerHost),
		Port:            cfg.MCPServerPort,
		ReadTimeout:     cfg.MCPServerReadTimeout,
		WriteTimeout:    cfg.MCPServerWriteTimeout,
		ShutdownTimeout: cfg.MCPServerShutdownTimeout,
		AllowedIPs:      cfg.MCPAllowedIPs,
	}
	if err := out.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return out, nil
}

func (c *ServerConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("MCP server host cannot be empty")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("MCP server port must be between 1 and 65535, got: %d", c.Port)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("MCP server read timeout must be positive, got: %v", c.ReadTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("MCP server write timeout must be positive, got: %v", c.WriteTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	return nil
}

// Address returns host:port for the listener.
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
