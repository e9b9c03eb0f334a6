// Package dbqueue implements core/broker.Broker as a poll loop over the
// stage_status table's durable in_progress/next_attempt_at rows, per
// spec.md §4.2 ("pending background retries are durable via the
// stage-status table... and resume on the next engine start"). This is the
// default background-retry backend; internal/retry/broker/kafka is the
// optional horizontally-scaled alternative.
package dbqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/broker"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/core/message"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/engine"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/retry"
	"github.com/Kunze-Ritter/Manual2Vector-sub004/internal/store"
)

// Broker polls store.StageTrackingStore for due retries. It satisfies
// core/broker.Broker so it can be driven by core/scheduler.Scheduler the
// same way the Kafka-backed broker is.
type Broker struct {
	store        store.Store
	pollInterval time.Duration
}

func New(s store.Store, pollInterval time.Duration) *Broker {
	return &Broker{store: s, pollInterval: pollInterval}
}

// Produce schedules a retry.Task by writing its NextAttemptAt into the
// owning stage_status row; no separate queue table is needed since the
// stage_status row already carries the durable retry state.
func (b *Broker) Produce(ctx context.Context, msgs ...*message.Msg) error {
	for _, m := range msgs {
		var t retry.Task
		if err := m.Unmarshal(&t); err != nil {
			return err
		}
		row, err := b.store.GetStageStatus(ctx, t.DocumentID, t.Stage)
		if err != nil {
			return err
		}
		if row == nil {
			row = &engine.StageStatusRow{DocumentID: t.DocumentID, StageName: t.Stage}
		}
		row.Status = engine.StatusInProgress
		row.NextAttemptAt = &t.NotBefore
		row.RetryAttempt = t.Attempt
		row.CorrelationID = t.CorrelationID
		if err := b.store.PutStageStatus(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// Consume finds one due retry task across all documents/stages. Returning
// (nil, nil, nil) tells the scheduler there is nothing to do right now;
// the scheduler's worker.Sleep() governs the poll cadence.
func (b *Broker) Consume(ctx context.Context) (*message.Msg, message.ID, error) {
	row, err := b.dueRow(ctx)
	if err != nil || row == nil {
		return nil, nil, err
	}
	task := retry.Task{
		DocumentID:    row.DocumentID,
		Stage:         row.StageName,
		Attempt:       row.RetryAttempt,
		CorrelationID: row.CorrelationID,
	}
	if row.NextAttemptAt != nil {
		task.NotBefore = *row.NextAttemptAt
	}
	payload, _ := json.Marshal(task)
	return message.New(payload), messageID(row.DocumentID.String(), row.StageName), nil
}

// Ack clears NextAttemptAt so the row is no longer picked up as due; the
// stage's own safe_process run is responsible for flipping Status to
// completed/failed once it actually finishes.
func (b *Broker) Ack(ctx context.Context, id message.ID) error {
	docID, stage, ok := parseMessageID(id)
	if !ok {
		return nil
	}
	row, err := b.store.GetStageStatus(ctx, docID, stage)
	if err != nil || row == nil {
		return err
	}
	row.NextAttemptAt = nil
	return b.store.PutStageStatus(ctx, row)
}

func (b *Broker) Close() error { return nil }

var _ broker.Broker = (*Broker)(nil)

type msgID struct {
	DocumentID string
	Stage      string
}

func messageID(documentID, stage string) message.ID {
	return msgID{DocumentID: documentID, Stage: stage}
}

func parseMessageID(id message.ID) (docID, stage string, ok bool) {
	m, ok := id.(msgID)
	if !ok {
		return "", "", false
	}
	return m.DocumentID, m.Stage, true
}

func (b *Broker) dueRow(ctx context.Context) (*engine.StageStatusRow, error) {
	return b.store.DueStageStatus(ctx, time.Now().UTC())
}
