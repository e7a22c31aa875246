package worker

import (
	"context"
	"fmt"
	"log/slog"

	"rejestr/internal/amqp"
	"rejestr/internal/archive"
	"rejestr/internal/storage"
)

// ArchiveWorker copies settled transactions from SQLite to the settlement
// archive and marks them archived.
type ArchiveWorker struct {
	storage   *storage.SQLiteRepository
	writer    archive.SettlementWriter
	batchSize int
}

func NewArchiveWorker(storage *storage.SQLiteRepository, writer archive.SettlementWriter, batchSize int) *ArchiveWorker {
	return &ArchiveWorker{
		storage:   storage,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleSettledMessage processes a single settlement notification from AMQP
func (w *ArchiveWorker) HandleSettledMessage(ctx context.Context, msg *amqp.TransactionSettledMessage) error {
	slog.InfoContext(ctx, "Processing settlement message",
		"transaction_id", msg.TransactionID,
		"register_id", msg.RegisterID)
	return w.archiveTransaction(ctx, msg.TransactionID)
}

// ProcessPendingSettlements archives settled transactions that never got
// archived, in case AMQP messages were lost.
func (w *ArchiveWorker) ProcessPendingSettlements(ctx context.Context) error {
	pending, err := w.storage.ListUnarchivedSettled(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list unarchived settlements: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending settlements", "count", len(pending))
	for _, gt := range pending {
		if err := w.archiveTransaction(ctx, gt.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to archive settlement",
				"transaction_id", gt.ID, "error", err)
			continue
		}
	}
	return nil
}

// StartupCheck runs one catch-up pass so a restart drains whatever settled
// while the worker was down.
func (w *ArchiveWorker) StartupCheck(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup settlement check")
	return w.ProcessPendingSettlements(ctx)
}

func (w *ArchiveWorker) archiveTransaction(ctx context.Context, transactionID string) error {
	// The periodic scan and the AMQP message can both pick the same
	// settlement up; skip anything already archived.
	gt, err := w.storage.GetTransaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if gt.Archived {
		slog.InfoContext(ctx, "Settlement already archived", "transaction_id", transactionID)
		return nil
	}

	rec, err := w.storage.SettlementRecord(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("load settlement record: %w", err)
	}

	ref, err := w.writer.Append(ctx, rec)
	if err != nil {
		return fmt.Errorf("append settlement to archive: %w", err)
	}

	if err := w.storage.MarkArchived(ctx, transactionID); err != nil {
		return fmt.Errorf("mark archived: %w", err)
	}

	slog.InfoContext(ctx, "Archived settlement",
		"transaction_id", transactionID,
		"register", rec.RegisterName,
		"ref", ref)
	return nil
}
