package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskcache/internal/runtimecache"
)

// Store writes task-completion audit rows to Postgres, using Redis to
// skip a duplicate insert when the same correlation ID is recorded
// again within dedupeTTL — mirroring the gateway's idempotency store,
// just guarding an audit insert instead of a send.
type Store struct {
	db        *PostgresDB
	redis     *runtimecache.RedisClient
	logger    *zap.Logger
	dedupeTTL time.Duration
}

func NewStore(db *PostgresDB, redis *runtimecache.RedisClient, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, redis: redis, logger: logger, dedupeTTL: time.Hour}
}

// Record inserts a task_audit row for correlationID unless an entry for
// it was already recorded within the dedupe window. redis is optional;
// with it nil, every call inserts (no dedup).
func (s *Store) Record(ctx context.Context, correlationID uuid.UUID, kind, detail string, submitted, executed, stolen int64) error {
	if s.redis != nil {
		dedupeKey := fmt.Sprintf("auditlog:seen:%s:%s", kind, correlationID)
		ok, err := s.redis.SetNX(ctx, dedupeKey, "1", s.dedupeTTL).Result()
		if err != nil {
			s.logger.Warn("auditlog dedupe check failed, inserting anyway", zap.Error(err))
		} else if !ok {
			return nil
		}
	}

	const q = `INSERT INTO task_audit (correlation_id, kind, detail, submitted_count, executed_count, stolen_count)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, q, correlationID, kind, detail, submitted, executed, stolen)
	if err != nil {
		return fmt.Errorf("auditlog: insert: %w", err)
	}

	s.logger.Info("audit row recorded",
		zap.String("correlation_id", correlationID.String()),
		zap.String("kind", kind))
	return nil
}

// Recent returns the most recent n audit rows, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		n = 50
	}
	const q = `SELECT correlation_id, kind, detail, submitted_count, executed_count, stolen_count, created_at
		FROM task_audit ORDER BY created_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("auditlog: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.CorrelationID, &e.Kind, &e.Detail, &e.Submitted, &e.Executed, &e.Stolen, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("auditlog: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Entry is one row of the task_audit table.
type Entry struct {
	CorrelationID uuid.UUID
	Kind          string
	Detail        string
	Submitted     int64
	Executed      int64
	Stolen        int64
	CreatedAt     time.Time
}
