package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/internal/iostore"
	mcp_internal "github.com/huangsam/benchtrail/internal/mcp"
	"github.com/huangsam/benchtrail/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *contract.Config {
	return &contract.Config{
		Policy: contract.SuitePolicy{
			Tool:               schema.CustomSmallerIsBetterTool,
			WindowSize:         20,
			BaselinePercentile: 50,
			ThresholdPct:       10,
			MinBaseline:        3,
		},
		Suites: map[string]contract.SuitePolicy{
			"api": {
				Tool:               schema.CustomSmallerIsBetterTool,
				WindowSize:         20,
				BaselinePercentile: 50,
				ThresholdPct:       10,
				MinBaseline:        3,
			},
		},
	}
}

func seededServer(t *testing.T, values ...float64) *server.MCPServer {
	t.Helper()
	store := iostore.NewMemoryHistoryStore()
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, v := range values {
		at := start.Add(time.Duration(i) * time.Hour)
		rec := schema.NewRecord(schema.CommitIdentity{
			Hash:      fmt.Sprintf("c%02d", i),
			Author:    schema.Identity{Name: "Grace"},
			Timestamp: at.Format(time.RFC3339),
		}, at, schema.CustomSmallerIsBetterTool, []schema.Measurement{{Name: "latency", Value: v, Unit: "ms"}})
		require.NoError(t, store.Append(context.Background(), "api", rec))
	}
	mgr := &iostore.MockStoreManager{}
	mgr.On("GetHistoryStore").Return(store)
	return mcp_internal.NewMCPServer(baseConfig(), mgr, nil)
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)
	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	require.NotNil(t, res)
	return res
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	s := seededServer(t)

	t.Run("evaluate_suite missing suite", func(t *testing.T) {
		res := callTool(t, s, "evaluate_suite", map[string]any{"suite": ""})
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, resultText(t, res), "invalid suite")
	})

	t.Run("evaluate_suite invalid window", func(t *testing.T) {
		res := callTool(t, s, "evaluate_suite", map[string]any{"suite": "api", "window_size": -3.0})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "window_size must be between 1 and")
	})

	t.Run("evaluate_suite empty history", func(t *testing.T) {
		res := callTool(t, s, "evaluate_suite", map[string]any{"suite": "api"})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "evaluation failed")
	})

	t.Run("get_history negative limit", func(t *testing.T) {
		res := callTool(t, s, "get_history", map[string]any{"suite": "api", "limit": -1.0})
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), "limit cannot be negative")
	})
}

func TestMCPServerHandlers_NoStore(t *testing.T) {
	s := mcp_internal.NewMCPServer(baseConfig(), nil, nil)
	res := callTool(t, s, "get_store_status", nil)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not initialized")
}

func TestMCPServerHandlers_EvaluateSuite(t *testing.T) {
	s := seededServer(t, 10, 10, 10, 10, 12)

	res := callTool(t, s, "evaluate_suite", map[string]any{"suite": "api"})
	require.False(t, res.IsError, resultText(t, res))

	var out struct {
		Label    string         `json:"label"`
		ExitCode int            `json:"exit_code"`
		Verdict  schema.Verdict `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "FLAGGED", out.Label)
	assert.Equal(t, schema.ExitFlagged, out.ExitCode)
	assert.Equal(t, "c04", out.Verdict.Commit)

	// A looser threshold lets the same run pass.
	res = callTool(t, s, "evaluate_suite", map[string]any{"suite": "api", "threshold": 25.0})
	require.False(t, res.IsError)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "PASS", out.Label)

	// An older run only sees the runs before it.
	res = callTool(t, s, "evaluate_suite", map[string]any{"suite": "api", "commit": "c02"})
	require.False(t, res.IsError)
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "INCONCLUSIVE", out.Label)
	assert.Equal(t, 2, out.Verdict.BaselineRuns)
}

func TestMCPServerHandlers_GetHistory(t *testing.T) {
	s := seededServer(t, 1, 2, 3)

	res := callTool(t, s, "get_history", map[string]any{"suite": "api", "limit": 2.0})
	require.False(t, res.IsError)

	var out struct {
		Suite   string          `json:"suite"`
		Records []schema.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	assert.Equal(t, "api", out.Suite)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "c01", out.Records[0].Hash())
	assert.Equal(t, "c02", out.Records[1].Hash())
}

func TestMCPServerHandlers_GetStoreStatus(t *testing.T) {
	s := seededServer(t, 1, 2)

	res := callTool(t, s, "get_store_status", nil)
	require.False(t, res.IsError)

	var status schema.HistoryStatus
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &status))
	assert.Equal(t, string(schema.NoneBackend), status.Backend)
	require.Len(t, status.Suites, 1)
	assert.Equal(t, 2, status.Suites[0].Records)
}
