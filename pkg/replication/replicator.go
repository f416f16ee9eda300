// Package replication copies stored transcripts from MongoDB to Postgres.
package replication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tubenote/pkg/db"
	"tubenote/pkg/domain"
)

const (
	defaultBatchSize = 100
	defaultWorkers   = 5
)

// Source is the MongoDB side. *db.Client implements it.
type Source interface {
	GetAllTranscripts(ctx context.Context) ([]domain.Transcript, error)
}

// Target is the SQL side. *db.SQLStore implements it.
type Target interface {
	EnsureSchema(ctx context.Context) error
	ExistingVideoIDs(ctx context.Context, ids []string) (map[string]bool, error)
	InsertBatch(ctx context.Context, batch []domain.Transcript) (int, error)
}

// Config wires the replication dependencies.
type Config struct {
	Mongo    Source
	Postgres Target

	BatchSize int // default 100
	Workers   int // default 5
	Logger    *slog.Logger
}

// Replicator replicates transcripts from MongoDB to Postgres.
//
// This is a one-shot, "copy everything" flow.
type Replicator struct {
	mongo     Source
	pg        Target
	batchSize int
	workers   int
	logger    *slog.Logger
}

// Result summarizes a replication run.
type Result struct {
	Processed int
	Inserted  int
}

func NewReplicator(cfg Config) (*Replicator, error) {
	if cfg.Mongo == nil {
		return nil, fmt.Errorf("mongo client is required")
	}
	if cfg.Postgres == nil {
		return nil, fmt.Errorf("postgres client is required")
	}
	r := &Replicator{
		mongo:     cfg.Mongo,
		pg:        cfg.Postgres,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
		logger:    cfg.Logger,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.workers <= 0 {
		r.workers = defaultWorkers
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// ReplicateTranscripts reads all transcripts from Mongo and inserts them into
// the Postgres transcript table. Video ids already present are skipped.
func (r *Replicator) ReplicateTranscripts(ctx context.Context) (Result, error) {
	if err := r.pg.EnsureSchema(ctx); err != nil {
		return Result{}, err
	}

	transcripts, err := r.mongo.GetAllTranscripts(ctx)
	if err != nil {
		return Result{}, err
	}

	r.logger.Info("loaded transcripts from mongo", "count", len(transcripts))

	res, err := r.processBatches(ctx, transcripts)
	if err != nil {
		return res, err
	}

	r.logger.Info("replication complete", "processed", res.Processed, "inserted", res.Inserted)
	return res, nil
}

// processBatches processes all transcripts in batches in parallel, failing fast on error.
func (r *Replicator) processBatches(ctx context.Context, transcripts []domain.Transcript) (Result, error) {
	type batchJob struct {
		batch      []domain.Transcript
		start, end int
	}
	type batchResult struct {
		processed int
		inserted  int
		err       error
	}

	numBatches := (len(transcripts) + r.batchSize - 1) / r.batchSize
	jobs := make(chan batchJob, numBatches)
	results := make(chan batchResult, numBatches)

	for start := 0; start < len(transcripts); start += r.batchSize {
		end := min(start+r.batchSize, len(transcripts))
		jobs <- batchJob{batch: transcripts[start:end], start: start, end: end}
	}
	close(jobs)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				inserted, err := r.processBatch(ctx, job.batch, job.start, job.end)
				results <- batchResult{processed: len(job.batch), inserted: inserted, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var total Result
	var firstErr error
	for res := range results {
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
				cancel()
			}
			continue
		}
		total.Processed += res.processed
		total.Inserted += res.inserted
		if total.Processed%1000 == 0 {
			r.logger.Info("replication progress", "processed", total.Processed, "total", len(transcripts), "inserted", total.Inserted)
		}
	}
	return total, firstErr
}

// processBatch checks which ids exist, filters them out and inserts the rest.
func (r *Replicator) processBatch(ctx context.Context, batch []domain.Transcript, start, end int) (int, error) {
	existing, err := r.pg.ExistingVideoIDs(ctx, videoIDs(batch))
	if err != nil {
		return 0, fmt.Errorf("check existing video ids for batch [%d:%d]: %w", start, end, err)
	}

	toInsert := filterNew(batch, existing)
	if len(toInsert) == 0 {
		r.logger.Debug("batch already replicated", "start", start, "end", end)
		return 0, nil
	}

	inserted, err := r.pg.InsertBatch(ctx, toInsert)
	if err != nil {
		return 0, fmt.Errorf("insert batch [%d:%d]: %w", start, end, err)
	}
	r.logger.Debug("batch replicated", "start", start, "end", end, "existing", len(existing), "inserted", inserted)
	return inserted, nil
}

func videoIDs(batch []domain.Transcript) []string {
	ids := make([]string, 0, len(batch))
	for _, t := range batch {
		if t.VideoID != "" {
			ids = append(ids, t.VideoID)
		}
	}
	return ids
}

func filterNew(all []domain.Transcript, existing map[string]bool) []domain.Transcript {
	out := make([]domain.Transcript, 0, len(all))
	for _, t := range all {
		if t.VideoID == "" || existing[t.VideoID] {
			continue
		}
		out = append(out, t)
	}
	return out
}

var (
	_ Source = (*db.Client)(nil)
	_ Target = (*db.SQLStore)(nil)
)
