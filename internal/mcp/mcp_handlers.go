package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huangsam/benchtrail/core"
	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.StoreManager
	log     logrus.FieldLogger
}

func (h *toolHandler) store() (contract.HistoryStore, error) {
	if h.mgr == nil || h.mgr.GetHistoryStore() == nil {
		return nil, errors.New("history store is not initialized")
	}
	return h.mgr.GetHistoryStore(), nil
}

func (h *toolHandler) handleEvaluateSuite(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	suite := request.GetString("suite", "")
	if err := contract.ValidateSuiteName(suite); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid suite: %v", err)), nil
	}

	policy := h.baseCfg.SettingsFor(suite)
	if t := request.GetFloat("threshold", -1); t >= 0 {
		policy.ThresholdPct = t
	}
	if n := request.GetInt("window_size", 0); n != 0 {
		if n < 1 || n > contract.MaxWindowSize {
			return mcp.NewToolResultError(fmt.Sprintf("window_size must be between 1 and %d", contract.MaxWindowSize)), nil
		}
		policy.WindowSize = n
		if policy.MinBaseline > n {
			policy.MinBaseline = n
		}
	}

	store, err := h.store()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	report, err := core.NewGateway(store, h.log).Evaluate(ctx, suite, request.GetString("commit", ""), policy)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("evaluation failed: %v", err)), nil
	}

	type evaluation struct {
		Label    string         `json:"label"`
		ExitCode int            `json:"exit_code"`
		Verdict  schema.Verdict `json:"verdict"`
	}
	jsonData, _ := json.MarshalIndent(evaluation{
		Label:    contract.GetPlainLabel(report.Verdict.Status),
		ExitCode: report.Verdict.ExitCode(policy.InconclusiveBlocking),
		Verdict:  report.Verdict,
	}, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	suite := request.GetString("suite", "")
	if err := contract.ValidateSuiteName(suite); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid suite: %v", err)), nil
	}
	limit := request.GetInt("limit", 0)
	if limit < 0 {
		return mcp.NewToolResultError("limit cannot be negative"), nil
	}

	store, err := h.store()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := store.Load(ctx, suite)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load history: %v", err)), nil
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}

	jsonData, _ := json.MarshalIndent(map[string]any{
		"suite":   suite,
		"records": records,
	}, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetStoreStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store, err := h.store()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := store.GetStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read store status: %v", err)), nil
	}
	jsonData, _ := json.MarshalIndent(status, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
