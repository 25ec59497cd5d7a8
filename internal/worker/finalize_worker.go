package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/answerstore"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/config"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/model"
	"github.com/Abulfadl-Ahmadi/Academia-sub002/internal/repository"
)

const (
	FinalizeBatchSize    = 50
	FinalizeBatchTimeout = 2 * time.Second
	FinalizePollTimeout  = 1 * time.Second
)

// FinalizeWorker consumes finalize_sessions_queue. For each terminal session
// it snapshots the Redis answer buffer into PostgreSQL, then drops the
// buffer. The score itself was already written synchronously by the
// finishing request; this worker only makes the answer rows durable.
type FinalizeWorker struct {
	answers *repository.AnswerRepository
	store   *answerstore.Store
	rdb     *redis.Client
	log     zerolog.Logger
}

// NewFinalizeWorker creates a new FinalizeWorker.
func NewFinalizeWorker(answers *repository.AnswerRepository, store *answerstore.Store, rdb *redis.Client, log zerolog.Logger) *FinalizeWorker {
	return &FinalizeWorker{
		answers: answers,
		store:   store,
		rdb:     rdb,
		log:     log.With().Str("component", "finalize_worker").Logger(),
	}
}

// Start begins the worker loop with batching. Call in a goroutine.
func (w *FinalizeWorker) Start(ctx context.Context) {
	w.log.Info().Msg("FinalizeWorker started")

	batch := make([]*model.FinalizeSessionJob, 0, FinalizeBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= FinalizeBatchSize || time.Since(lastFlush) >= FinalizeBatchTimeout) {

			w.flush(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Msg("Shutdown requested. Flushing remaining batch...")
			w.flush(context.Background(), batch)
			w.drain(context.Background())
			return

		default:
			item, err := w.rdb.BLPop(ctx, FinalizePollTimeout, config.WorkerKey.FinalizeSessionsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}

			if len(item) < 2 {
				continue
			}

			var job model.FinalizeSessionJob
			if err := json.Unmarshal([]byte(item[1]), &job); err != nil {
				w.log.Error().Err(err).Msg("Invalid JSON payload")
				continue
			}

			batch = append(batch, &job)
		}
	}
}

func (w *FinalizeWorker) flush(ctx context.Context, batch []*model.FinalizeSessionJob) {
	if len(batch) == 0 {
		return
	}

	cleared := w.rdb.Pipeline()
	for _, job := range batch {
		if err := w.snapshot(ctx, job); err != nil {
			w.log.Error().Err(err).
				Str("session_id", job.SessionID.String()).
				Msg("Snapshot failed, requeueing")
			raw, _ := json.Marshal(job)
			w.rdb.RPush(ctx, config.WorkerKey.FinalizeSessionsQueue, raw)
			continue
		}
		// Buffer dropped only after its rows are durable.
		cleared.Del(ctx, config.CacheKey.SessionAnswersKey(job.SessionID.String()))
	}
	_, _ = cleared.Exec(ctx)
}

// snapshot copies every buffered answer of the session into PostgreSQL.
// UpsertIfNewer makes replays harmless: an already-persisted seq is skipped.
func (w *FinalizeWorker) snapshot(ctx context.Context, job *model.FinalizeSessionJob) error {
	entries, err := w.store.All(ctx, job.SessionID.String())
	if err != nil {
		return err
	}

	for qn, entry := range entries {
		if err := w.answers.UpsertIfNewer(ctx, job.SessionID, qn, entry.Answer, entry.Seq); err != nil {
			return err
		}
	}

	w.log.Debug().
		Str("session_id", job.SessionID.String()).
		Int("answers", len(entries)).
		Msg("Session snapshot persisted")
	return nil
}

// drain processes all remaining queued jobs before shutdown.
func (w *FinalizeWorker) drain(ctx context.Context) {
	drained := 0
	for {
		result, err := w.rdb.LPop(ctx, config.WorkerKey.FinalizeSessionsQueue).Result()
		if err != nil {
			break
		}

		var job model.FinalizeSessionJob
		if err := json.Unmarshal([]byte(result), &job); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}

		if err := w.snapshot(ctx, &job); err != nil {
			w.log.Error().Err(err).Msg("Drain snapshot error")
			w.rdb.RPush(ctx, config.WorkerKey.FinalizeSessionsQueue, result)
			break
		}
		w.rdb.Del(ctx, config.CacheKey.SessionAnswersKey(job.SessionID.String()))
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining jobs")
	}
}
