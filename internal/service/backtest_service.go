package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gibsonxiong/vtrader/internal/backtest"
	"github.com/gibsonxiong/vtrader/internal/domain"
	"github.com/gibsonxiong/vtrader/internal/strategy"
)

// Notifier delivers operator notifications for run lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// RunArchiver uploads finished runs to blob storage.
type RunArchiver interface {
	ArchiveRun(ctx context.Context, run domain.BacktestRun) (string, error)
}

// BacktestService creates, executes and manages persisted backtest runs.
type BacktestService struct {
	runs     domain.BacktestStore
	market   domain.MarketData
	registry *strategy.Registry
	notifier Notifier
	archiver RunArchiver
	logger   *slog.Logger
}

// NewBacktestService creates a BacktestService. runs, notifier and archiver
// may be nil; persistence, notifications and archival are then skipped.
func NewBacktestService(
	runs domain.BacktestStore,
	market domain.MarketData,
	registry *strategy.Registry,
	notifier Notifier,
	archiver RunArchiver,
	logger *slog.Logger,
) *BacktestService {
	return &BacktestService{
		runs:     runs,
		market:   market,
		registry: registry,
		notifier: notifier,
		archiver: archiver,
		logger:   logger.With(slog.String("component", "backtest_service")),
	}
}

// Execute runs a backtest to completion and returns its result. It does not
// touch the run store; CreateRun/Run wrap it for persisted runs.
func (s *BacktestService) Execute(ctx context.Context, strategyName string, params map[string]any, settings domain.BacktestSettings, report bool) (domain.BacktestResult, error) {
	engine := backtest.New(s.logger, s.market, s.registry)

	if err := engine.Configure(settings); err != nil {
		return domain.BacktestResult{}, err
	}
	if err := engine.AttachStrategy(strategyName, params); err != nil {
		return domain.BacktestResult{}, err
	}
	if err := engine.LoadHistory(ctx); err != nil {
		return domain.BacktestResult{}, err
	}
	if err := engine.Run(ctx); err != nil {
		return domain.BacktestResult{}, err
	}
	return engine.Result(report)
}

// CreateRun validates the request, persists a pending run and returns it.
func (s *BacktestService) CreateRun(ctx context.Context, strategyName string, params map[string]any, settings domain.BacktestSettings) (domain.BacktestRun, error) {
	if _, err := s.registry.Get(strategyName); err != nil {
		return domain.BacktestRun{}, err
	}

	run := domain.BacktestRun{
		ID:        uuid.NewString(),
		Strategy:  strategyName,
		Params:    params,
		Settings:  settings,
		Status:    domain.RunStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if s.runs != nil {
		if err := s.runs.Create(ctx, run); err != nil {
			return domain.BacktestRun{}, fmt.Errorf("backtest_service: create run: %w", err)
		}
	}

	s.logger.InfoContext(ctx, "run created",
		slog.String("run_id", run.ID),
		slog.String("strategy", strategyName),
		slog.String("symbol", settings.Symbol),
	)

	return run, nil
}

// Run executes a persisted run by ID, recording lifecycle transitions and,
// on success, the result. Finished runs are archived and announced.
func (s *BacktestService) Run(ctx context.Context, id string) (domain.BacktestRun, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return domain.BacktestRun{}, err
	}
	if run.Status == domain.RunStatusRunning {
		return domain.BacktestRun{}, fmt.Errorf("backtest_service: run %s already running: %w", id, domain.ErrAlreadyExists)
	}

	now := time.Now().UTC()
	run.Status = domain.RunStatusRunning
	run.StartedAt = &now
	run.Error = ""
	run.Result = nil
	if err := s.updateRun(ctx, run); err != nil {
		return domain.BacktestRun{}, err
	}

	result, execErr := s.Execute(ctx, run.Strategy, run.Params, run.Settings, false)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if execErr != nil {
		run.Status = domain.RunStatusFailed
		run.Error = execErr.Error()
	} else {
		run.Status = domain.RunStatusFinished
		run.Result = &result
	}
	if err := s.updateRun(ctx, run); err != nil {
		return domain.BacktestRun{}, err
	}

	s.afterRun(ctx, run)

	if execErr != nil {
		return run, fmt.Errorf("backtest_service: run %s: %w", id, execErr)
	}
	return run, nil
}

// GetRun retrieves a persisted run by ID.
func (s *BacktestService) GetRun(ctx context.Context, id string) (domain.BacktestRun, error) {
	if s.runs == nil {
		return domain.BacktestRun{}, domain.ErrNotFound
	}
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("backtest_service: get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns persisted runs newest-first.
func (s *BacktestService) ListRuns(ctx context.Context, opts domain.ListOpts) ([]domain.BacktestRun, error) {
	if s.runs == nil {
		return nil, nil
	}
	runs, err := s.runs.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("backtest_service: list runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a persisted run.
func (s *BacktestService) DeleteRun(ctx context.Context, id string) error {
	if s.runs == nil {
		return domain.ErrNotFound
	}
	if err := s.runs.Delete(ctx, id); err != nil {
		return fmt.Errorf("backtest_service: delete run %s: %w", id, err)
	}
	return nil
}

func (s *BacktestService) updateRun(ctx context.Context, run domain.BacktestRun) error {
	if s.runs == nil {
		return nil
	}
	if err := s.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("backtest_service: update run %s: %w", run.ID, err)
	}
	return nil
}

// afterRun archives and announces a finished or failed run. Failures here
// are logged but never fail the run itself.
func (s *BacktestService) afterRun(ctx context.Context, run domain.BacktestRun) {
	if s.archiver != nil && run.Status == domain.RunStatusFinished {
		path, err := s.archiver.ArchiveRun(ctx, run)
		if err != nil {
			s.logger.WarnContext(ctx, "archive failed",
				slog.String("run_id", run.ID),
				slog.String("error", err.Error()),
			)
		} else {
			s.logger.InfoContext(ctx, "run archived",
				slog.String("run_id", run.ID),
				slog.String("path", path),
			)
		}
	}

	if s.notifier == nil {
		return
	}

	var event, title, message string
	switch run.Status {
	case domain.RunStatusFinished:
		event = "backtest_finished"
		title = "Backtest finished"
		message = fmt.Sprintf("%s %s %s: net pnl %.2f, max drawdown %.2f",
			run.Strategy, run.Settings.Symbol, run.ID,
			run.Result.TotalNetPnl, run.Result.MaxDrawdown)
	case domain.RunStatusFailed:
		event = "backtest_failed"
		title = "Backtest failed"
		message = fmt.Sprintf("%s %s %s: %s",
			run.Strategy, run.Settings.Symbol, run.ID, run.Error)
	default:
		return
	}

	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "notify failed",
			slog.String("run_id", run.ID),
			slog.String("error", err.Error()),
		)
	}
}
