package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Biliion-Dollar-Company/supermolt-mono-sub005/internal/domain"
)

// Archiver implements domain.Archiver: it exports an agent's closed
// positions and confirmed trades up to a cutoff as JSONL files.
//
// Archived rows are not deleted from the primary store; pruning is a
// separate step once the export has been verified.
type Archiver struct {
	writer    domain.BlobWriter
	positions domain.PositionStore
	trades    domain.TradeStore
	audit     domain.AuditStore
}

// NewArchiver creates an Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	positions domain.PositionStore,
	trades domain.TradeStore,
	audit domain.AuditStore,
) *Archiver {
	return &Archiver{
		writer:    writer,
		positions: positions,
		trades:    trades,
		audit:     audit,
	}
}

// ArchiveAgent uploads positions closed and trades executed at or before
// the cutoff. Empty sets are skipped. The run is recorded in the audit log.
func (a *Archiver) ArchiveAgent(ctx context.Context, agentID string, before time.Time) (domain.ArchiveReport, error) {
	report := domain.ArchiveReport{AgentID: agentID, Before: before.UTC(), Paths: []string{}}
	opts := domain.ListOpts{Until: &before}

	positions, err := a.positions.ListClosed(ctx, agentID, opts)
	if err != nil {
		return report, fmt.Errorf("s3blob: archive positions query: %w", err)
	}
	if len(positions) > 0 {
		path, err := upload(ctx, a.writer, agentID, "positions", before, positions)
		if err != nil {
			return report, err
		}
		report.Positions = len(positions)
		report.Paths = append(report.Paths, path)
	}

	trades, err := a.trades.ListByAgent(ctx, agentID, opts)
	if err != nil {
		return report, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) > 0 {
		path, err := upload(ctx, a.writer, agentID, "trades", before, trades)
		if err != nil {
			return report, err
		}
		report.Trades = len(trades)
		report.Paths = append(report.Paths, path)
	}

	if err := a.audit.Log(ctx, "archive.agent", map[string]any{
		"agent_id":  agentID,
		"positions": report.Positions,
		"trades":    report.Trades,
		"paths":     report.Paths,
		"before":    before.UTC().Format(time.RFC3339),
	}); err != nil {
		return report, fmt.Errorf("s3blob: archive audit log: %w", err)
	}
	return report, nil
}

func upload[T any](ctx context.Context, w domain.BlobWriter, agentID, kind string, before time.Time, records []T) (string, error) {
	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}
	path := archivePath(agentID, kind, before)
	if err := w.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}
	return path, nil
}

// archivePath builds the object key for one export, partitioned by agent
// and cutoff date:
//
//	archive/agent-1/trades/2026-03-01.jsonl
func archivePath(agentID, kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", agentID, kind, before.UTC().Format("2006-01-02"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*Archiver)(nil)
