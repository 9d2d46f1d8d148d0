package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/x402-foundation/x402-paygate/settlement"
)

const QueueGroup = "settlement-ledger"

// Recorder persists settlement events
type Recorder interface {
	Record(ctx context.Context, event settlement.Event) (bool, error)
}

// Worker consumes settlement events from NATS and records them.
// Failed settlements are recorded for reconciliation, never retried.
type Worker struct {
	recorder Recorder
	natsConn *nats.Conn
	logger   *slog.Logger
}

func NewWorker(recorder Recorder, nc *nats.Conn, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{recorder: recorder, natsConn: nc, logger: logger}
}

// Run subscribes to every settlement subject and blocks until ctx is cancelled.
// Instances in the same queue group share the stream, so each event is recorded once.
func (w *Worker) Run(ctx context.Context) error {
	sub, err := w.natsConn.QueueSubscribe(settlement.SubjectAll, QueueGroup, func(m *nats.Msg) {
		_ = w.handle(ctx, m.Data)
	})
	if err != nil {
		return fmt.Errorf("worker: failed to subscribe to NATS: %w", err)
	}

	w.logger.Info("settlement ledger worker is running", "subject", settlement.SubjectAll, "queue", QueueGroup)

	<-ctx.Done()

	w.logger.Info("worker received shutdown signal, draining subscription")
	return sub.Drain()
}

func (w *Worker) handle(ctx context.Context, data []byte) error {
	var event settlement.Event
	if err := json.Unmarshal(data, &event); err != nil {
		w.logger.Error("worker: failed to unmarshal nats message", "error", err)
		return err
	}

	inserted, err := w.recorder.Record(ctx, event)
	if err != nil {
		w.logger.Error("worker: failed to record settlement",
			"key", event.IdempotencyKey,
			"status", event.Status,
			"error", err,
		)
		return err
	}

	if !inserted {
		w.logger.Debug("worker: duplicate settlement event", "key", event.IdempotencyKey, "status", event.Status)
		return nil
	}

	level := slog.LevelInfo
	if event.Status == settlement.StatusFailed {
		level = slog.LevelWarn
	}
	w.logger.Log(ctx, level, "worker: settlement recorded",
		"key", event.IdempotencyKey,
		"status", event.Status,
		"network", event.Network,
		"payer", event.Payer,
		"transaction", event.Transaction,
		"error_reason", event.ErrorReason,
	)
	return nil
}
