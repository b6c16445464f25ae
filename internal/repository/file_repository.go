package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-enroll-api/internal/models"
	appErrors "github.com/noah-isme/lms-enroll-api/pkg/errors"
)

// fileCache abstracts the Redis-backed read-through store.
type fileCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// cacheObserver records cache hit/miss outcomes.
type cacheObserver interface {
	RecordCacheOperation(hit bool, duration time.Duration)
}

// FileRepository reads file metadata, consulting Redis before Postgres.
// Only store reads are cached here; aggregated views never are.
type FileRepository struct {
	db      *sqlx.DB
	cache   fileCache
	metrics cacheObserver
	ttl     time.Duration
	logger  *zap.Logger
}

// NewFileRepository constructs the repository. cache and metrics may be nil,
// in which case every lookup goes straight to the database.
func NewFileRepository(db *sqlx.DB, cache fileCache, metrics cacheObserver, ttl time.Duration, logger *zap.Logger) *FileRepository {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRepository{db: db, cache: cache, metrics: metrics, ttl: ttl, logger: logger}
}

// FindByIDs batch-loads file metadata keyed by id, back-filling cache misses.
func (r *FileRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.File, error) {
	out := make(map[string]models.File, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	misses := ids
	if r.cache != nil {
		misses = misses[:0:0]
		for _, id := range ids {
			var file models.File
			start := time.Now()
			err := r.cache.Get(ctx, fileCacheKey(id), &file)
			duration := time.Since(start)
			if err == nil {
				if r.metrics != nil {
					r.metrics.RecordCacheOperation(true, duration)
				}
				out[id] = file
				continue
			}
			if r.metrics != nil {
				r.metrics.RecordCacheOperation(false, duration)
			}
			if !errors.Is(err, appErrors.ErrCacheMiss) {
				r.logger.Warn("file cache get failed", zap.String("file_id", id), zap.Error(err))
			}
			misses = append(misses, id)
		}
	}

	if len(misses) == 0 {
		return out, nil
	}

	const query = `SELECT id, path, mimetype, size, time_length FROM files WHERE id = ANY($1)`
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, pq.Array(misses)); err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}
	for _, file := range files {
		out[file.ID] = file
		if r.cache != nil {
			if err := r.cache.Set(ctx, fileCacheKey(file.ID), file, r.ttl); err != nil {
				r.logger.Warn("file cache set failed", zap.String("file_id", file.ID), zap.Error(err))
			}
		}
	}
	return out, nil
}

func fileCacheKey(id string) string {
	return "file:" + id
}
