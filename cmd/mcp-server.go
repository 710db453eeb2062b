package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ca-srg/legalrag/internal/mcpserver"
)

const (
	transportHTTP  = "http"
	transportStdio = "stdio"
)

var (
	mcpTransport  string
	mcpHost       string
	mcpPort       int
	mcpAllowedIPs []string
)

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Serve legal search tools over the Model Context Protocol",
	Long: `
Start an MCP server exposing two tools:
  search_legal_documents  ranked passages in keyword, semantic or hybrid mode
  ask_legal_question      grounded answer with cited sources

Transports:
  http   streamable HTTP on "/" and "/mcp", SSE on "/mcp", health on "/health"
  stdio  a single client over stdin/stdout (for desktop MCP clients)

Examples:
  legalrag mcp-server
  legalrag mcp-server --host 0.0.0.0 --port 9000 --allowed-ips 10.0.0.0/8
  legalrag mcp-server --transport stdio
`,
	RunE: runMCPServer,
}

func init() {
	mcpServerCmd.Flags().StringVar(&mcpTransport, "transport", transportHTTP, "Transport: http|stdio")
	mcpServerCmd.Flags().StringVar(&mcpHost, "host", "", "Listen host (default from MCP_SERVER_HOST)")
	mcpServerCmd.Flags().IntVar(&mcpPort, "port", 0, "Listen port (default from MCP_SERVER_PORT)")
	mcpServerCmd.Flags().StringSliceVar(&mcpAllowedIPs, "allowed-ips", nil, "Allowed client IPs or CIDR blocks (default from MCP_ALLOWED_IPS)")
}

func runMCPServer(cmd *cobra.Command, args []string) error {
	if mcpTransport != transportHTTP && mcpTransport != transportStdio {
		return fmt.Errorf("invalid transport %q (valid transports: http, stdio)", mcpTransport)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	server, err := newMCPServer(app)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "[MCPServer] ", log.LstdFlags)
	server.SetLogger(logger)

	if mcpTransport == transportStdio {
		logger.Printf("Serving MCP over stdio")
		return server.RunStdio(ctx)
	}
	return server.ListenAndServe(ctx)
}

func newMCPServer(app *application) (*mcpserver.Server, error) {
	serverCfg, err := mcpserver.NewServerConfig(app.config)
	if err != nil {
		return nil, fmt.Errorf("invalid MCP server configuration: %w", err)
	}
	if mcpHost != "" {
		serverCfg.Host = mcpHost
	}
	if mcpPort != 0 {
		serverCfg.Port = mcpPort
	}
	if len(mcpAllowedIPs) > 0 {
		serverCfg.AllowedIPs = mcpAllowedIPs
	}
	serverCfg.Version = Version

	server, err := mcpserver.NewServer(app.service, serverCfg)
	if err != nil {
		return nil, err
	}
	if app.usage != nil {
		server.SetRecorder(app.usage)
	}
	return server, nil
}
