// Package queue implements the Offline Queue (§4.10): an append-only JSONL backlog of
// actions that couldn't reach the knowledge base, drained on a schedule or on demand.
// Grounded directly on the teacher's internal/domain/notifications/queue.go + store.go
// (urgent/regular backlog, retry-count-gated requeue, file rewrite on drain) — the
// closest file in the whole pack to this component's contract — simplified from a
// two-priority backlog with a background scheduler to a single FIFO backlog, since §4.10
// describes one queue drained by an explicit caller (cmd/secondbrain's `drain-queue` and
// its periodic queue-drain lifecycle worker), not a worker loop inside this package.
package queue

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/jnyross/secondbrain/internal/logging"
	"github.com/jnyross/secondbrain/internal/storage"
	"github.com/jnyross/secondbrain/internal/types"
	"go.uber.org/zap"
)

// MaxRetries bounds how many drain attempts a failing action gets before it is dropped
// (§4.10: "retry up to 3 times").
const MaxRetries = 3

// SavedLocallyMessage is the outbound reply shown when a write is queued instead of
// applied immediately (§6 outbound message constants).
const SavedLocallyMessage = "Saved locally, will sync when Notion is back."

// Enqueue appends action to the backlog file at path, stamping EnqueuedAt.
func Enqueue(path string, action types.QueuedAction) error {
	action.EnqueuedAt = time.Now().UTC()
	line, err := json.Marshal(action)
	if err != nil {
		return err
	}
	return storage.AppendLine(path, line)
}

// EnqueueInboxItem is the enqueue_inbox_item convenience builder (§4.10).
func EnqueueInboxItem(path, rawInput, source, chatID, msgID string) error {
	return Enqueue(path, types.QueuedAction{
		ActionType:     types.QueuedActionCreateInbox,
		IdempotencyKey: source + ":" + chatID + ":" + msgID,
		Data: map[string]string{
			"raw_input":            rawInput,
			"source":               source,
			"transport_chat_id":    chatID,
			"transport_message_id": msgID,
		},
		ChatID:    chatID,
		MessageID: msgID,
	})
}

// EnqueueTask is the enqueue_task convenience builder (§4.10).
func EnqueueTask(path, idempotencyKey, title, source, chatID, msgID string) error {
	return Enqueue(path, types.QueuedAction{
		ActionType:     types.QueuedActionCreateTask,
		IdempotencyKey: idempotencyKey,
		Data:           map[string]string{"title": title, "source": source},
		ChatID:         chatID,
		MessageID:      msgID,
	})
}

// Result summarizes one Drain call.
type Result struct {
	Processed int
	Retained  int
	Dropped   int
	Skipped   int // malformed lines
}

// Drain replays every queued action once, in file order, deduplicating by idempotency
// key within the pass (§4.10: a key seen twice in one file is applied once). Actions
// whose dispatch fails are requeued with an incremented retry count unless they have
// already hit MaxRetries, in which case they are dropped with a log line. The file is
// rewritten at the end to hold only the retained (failed-and-retryable) entries.
func Drain(ctx context.Context, path string, d *Dispatcher) (Result, error) {
	lines, err := readLines(path)
	if err != nil {
		return Result{}, err
	}

	seen := make(map[string]bool, len(lines))
	var retained []types.QueuedAction
	var result Result

	for _, line := range lines {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var action types.QueuedAction
		if err := json.Unmarshal(line, &action); err != nil {
			logging.Warn("queue: skipping malformed line", zap.Error(err))
			result.Skipped++
			continue
		}
		if action.IdempotencyKey != "" && seen[action.IdempotencyKey] {
			continue
		}
		if action.IdempotencyKey != "" {
			seen[action.IdempotencyKey] = true
		}

		if err := d.Dispatch(ctx, action); err != nil {
			action.RetryCount++
			if action.RetryCount < MaxRetries {
				retained = append(retained, action)
			} else {
				logging.Error("queue: dropping action after max retries",
					zap.String("action_type", string(action.ActionType)),
					zap.String("idempotency_key", action.IdempotencyKey),
					zap.Error(err))
				result.Dropped++
			}
			continue
		}
		result.Processed++
	}
	result.Retained = len(retained)

	var buf bytes.Buffer
	for _, a := range retained {
		encoded, err := json.Marshal(a)
		if err != nil {
			return result, err
		}
		buf.Write(encoded)
		buf.WriteByte('\n')
	}
	if err := storage.AtomicWriteFile(path, buf.Bytes()); err != nil {
		return result, err
	}
	return result, nil
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
