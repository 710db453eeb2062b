package cmd

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMCPServerAppliesFlagOverrides(t *testing.T) {
	useTestApplication(t, testDependencies{})
	resetFlags(t, mcpServerCmd)
	require.NoError(t, mcpServerCmd.Flags().Set("allowed-ips", "10.0.0.0/8"))

	app, err := newApplication(context.Background())
	require.NoError(t, err)
	t.Cleanup(app.Close)

	server, err := newMCPServer(app)
	require.NoError(t, err)
	server.SetLogger(log.New(io.Discard, "", 0))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.RemoteAddr = "192.168.0.10:5000"
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMCPServerRejectsUnknownTransport(t *testing.T) {
	resetFlags(t, mcpServerCmd)
	mcpTransport = "websocket"
	err := runMCPServer(mcpServerCmd, nil)
	assert.ErrorContains(t, err, "invalid transport")
}
