// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
)

// NewMCPServer initializes and configures the benchtrail MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.StoreManager, log logrus.FieldLogger) *server.MCPServer {
	s := server.NewMCPServer(
		"Benchtrail History Server",
		"1.0.0",
		server.WithLogging(),
	)

	if log == nil {
		log = contract.DiscardLogger()
	}
	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		log:     log.WithField("component", "mcp"),
	}

	s.AddTool(mcp.NewTool("evaluate_suite",
		mcp.WithDescription("Evaluate a stored benchmark run against the suite's recent history and report regressions. Nothing is written."),
		mcp.WithString("suite", mcp.Description("Name of the benchmark suite."), mcp.Required()),
		mcp.WithString("commit", mcp.Description("Commit hash of the stored run (defaults to the latest run).")),
		mcp.WithNumber("threshold", mcp.Description("Regression threshold in percent (defaults to the suite's configured threshold).")),
		mcp.WithNumber("window_size", mcp.Description("Number of previous runs forming the baseline.")),
	), h.handleEvaluateSuite)

	s.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("List the stored runs of a benchmark suite in append order."),
		mcp.WithString("suite", mcp.Description("Name of the benchmark suite."), mcp.Required()),
		mcp.WithNumber("limit", mcp.Description("Return only the most recent N runs.")),
	), h.handleGetHistory)

	s.AddTool(mcp.NewTool("get_store_status",
		mcp.WithDescription("Show the history backend, its location and per-suite run counts."),
	), h.handleGetStoreStatus)

	return s
}

// StartMCPServer starts the benchtrail MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.StoreManager, log logrus.FieldLogger) error {
	s := NewMCPServer(baseCfg, mgr, log)
	return server.ServeStdio(s)
}
