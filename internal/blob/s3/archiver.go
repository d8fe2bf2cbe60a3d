package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gibsonxiong/vtrader/internal/domain"
)

// ReportArchiver uploads finished backtest runs and exported bar history to
// blob storage. Reports live at reports/{runID}.json and bar exports at
// archive/bars/{symbol}/{interval}.jsonl.
type ReportArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
}

// NewReportArchiver creates a ReportArchiver over the given blob accessors.
func NewReportArchiver(writer domain.BlobWriter, reader domain.BlobReader) *ReportArchiver {
	return &ReportArchiver{writer: writer, reader: reader}
}

func reportPath(runID string) string {
	return "reports/" + runID + ".json"
}

func barExportPath(symbol string, interval domain.Interval) string {
	return fmt.Sprintf("archive/bars/%s/%s.jsonl", symbol, interval)
}

// ArchiveRun serializes a finished run, including its result, and uploads it.
// The object path is returned so callers can record or report it.
func (a *ReportArchiver) ArchiveRun(ctx context.Context, run domain.BacktestRun) (string, error) {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal run %s: %w", run.ID, err)
	}

	path := reportPath(run.ID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive run %s: %w", run.ID, err)
	}
	return path, nil
}

// GetRun downloads an archived run report by ID. Returns domain.ErrNotFound
// when no report has been archived for the ID.
func (a *ReportArchiver) GetRun(ctx context.Context, runID string) (domain.BacktestRun, error) {
	body, err := a.reader.Get(ctx, reportPath(runID))
	if err != nil {
		return domain.BacktestRun{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return domain.BacktestRun{}, fmt.Errorf("s3blob: read run report %s: %w", runID, err)
	}

	var run domain.BacktestRun
	if err := json.Unmarshal(data, &run); err != nil {
		return domain.BacktestRun{}, fmt.Errorf("s3blob: unmarshal run report %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns metadata for all archived run reports.
func (a *ReportArchiver) ListRuns(ctx context.Context) ([]domain.BlobInfo, error) {
	return a.reader.List(ctx, "reports/")
}

// ArchiveBars serializes bars to JSONL and uploads them as a series export.
func (a *ReportArchiver) ArchiveBars(ctx context.Context, symbol string, interval domain.Interval, bars []domain.Bar) (string, error) {
	if len(bars) == 0 {
		return "", nil
	}

	buf, err := marshalJSONL(bars)
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal bars %s %s: %w", symbol, interval, err)
	}

	path := barExportPath(symbol, interval)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive bars %s %s: %w", symbol, interval, err)
	}
	return path, nil
}

// marshalJSONL encodes a slice as newline-delimited JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
