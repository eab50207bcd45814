// Package core has the sample reducer, the regression detector and the
// ingestion gateway, plus the command entry points built on them.
package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"github.com/sirupsen/logrus"
)

// ExecuteReport ingests one run output for cfg.Suite, prints the verdict and
// returns the exit code the process should end with.
func ExecuteReport(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, w contract.ResultWriter, output []byte, log logrus.FieldLogger) (int, error) {
	start := time.Now()
	store, err := storeOf(mgr)
	if err != nil {
		return schema.ExitError, err
	}

	report, err := NewGateway(store, log).Report(ctx, ReportRequest{
		Suite:  cfg.Suite,
		Output: output,
		Commit: cfg.Commit,
		Policy: cfg.Policy,
		Force:  cfg.Force,
	})
	if err != nil {
		return schema.ExitError, err
	}
	if err := publish(cfg, w, report, time.Since(start)); err != nil {
		return schema.ExitError, err
	}
	return ExitCode(report, nil, cfg.Policy.InconclusiveBlocking), nil
}

// ExecuteEvaluate re-evaluates a stored record of cfg.Suite without appending.
// An empty commit hash selects the latest record.
func ExecuteEvaluate(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, w contract.ResultWriter, log logrus.FieldLogger) (int, error) {
	start := time.Now()
	store, err := storeOf(mgr)
	if err != nil {
		return schema.ExitError, err
	}

	report, err := NewGateway(store, log).Evaluate(ctx, cfg.Suite, cfg.Commit.Hash, cfg.Policy)
	if err != nil {
		return schema.ExitError, err
	}
	if err := publish(cfg, w, report, time.Since(start)); err != nil {
		return schema.ExitError, err
	}
	return ExitCode(report, nil, cfg.Policy.InconclusiveBlocking), nil
}

// ExecuteHistoryList prints the records of cfg.Suite, optionally limited to
// runs at or after cfg.Since.
func ExecuteHistoryList(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, w contract.ResultWriter) error {
	store, err := storeOf(mgr)
	if err != nil {
		return err
	}
	records, err := store.Load(ctx, cfg.Suite)
	if err != nil {
		return err
	}
	return w.WriteHistory(cfg.Suite, filterSince(records, cfg.Since), cfg)
}

// ExecuteHistoryStatus prints the status of the configured history store.
func ExecuteHistoryStatus(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, w contract.ResultWriter) error {
	store, err := storeOf(mgr)
	if err != nil {
		return err
	}
	status, err := store.GetStatus(ctx)
	if err != nil {
		return err
	}
	return w.WriteStatus(status, cfg)
}

// ExecuteHistoryPrune applies each suite's retention policy destructively.
// An empty cfg.Suite prunes every stored suite. Suites without a retention
// policy are left alone.
func ExecuteHistoryPrune(ctx context.Context, cfg *contract.Config, mgr contract.StoreManager, out io.Writer) error {
	store, err := storeOf(mgr)
	if err != nil {
		return err
	}
	suites := []string{cfg.Suite}
	if cfg.Suite == "" {
		if suites, err = store.Suites(ctx); err != nil {
			return err
		}
	}

	for _, suite := range suites {
		policy := cfg.SettingsFor(suite).Retention
		if policy.IsZero() {
			if _, err := fmt.Fprintf(out, "%s: no retention policy, skipped\n", suite); err != nil {
				return err
			}
			continue
		}
		before, err := store.Load(ctx, suite)
		if err != nil {
			return err
		}
		kept, err := store.Prune(ctx, suite, policy)
		if err != nil {
			return fmt.Errorf("prune %s: %w", suite, err)
		}
		if _, err := fmt.Fprintf(out, "%s: kept %d of %d runs (%s)\n", suite, kept, len(before), policy); err != nil {
			return err
		}
	}
	return nil
}

// publish prints the report and writes the optional metrics file.
func publish(cfg *contract.Config, w contract.ResultWriter, report schema.Report, duration time.Duration) error {
	if err := w.WriteReport(report, cfg, duration); err != nil {
		return err
	}
	if cfg.MetricsFile != "" {
		if err := w.WriteMetricsFile(cfg.MetricsFile, report); err != nil {
			return err
		}
	}
	return nil
}

func storeOf(mgr contract.StoreManager) (contract.HistoryStore, error) {
	if mgr == nil || mgr.GetHistoryStore() == nil {
		return nil, errors.New("history store is not initialized")
	}
	return mgr.GetHistoryStore(), nil
}

// filterSince keeps malformed records so the listing shows them in place.
func filterSince(records []schema.Record, since time.Time) []schema.Record {
	if since.IsZero() {
		return records
	}
	out := make([]schema.Record, 0, len(records))
	for _, r := range records {
		if r.DecodeError() == nil && r.RunTime().Before(since) {
			continue
		}
		out = append(out, r)
	}
	return out
}
