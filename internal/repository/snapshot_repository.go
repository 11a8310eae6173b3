package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/classdesk/attendance-api/internal/models"
	appErrors "github.com/classdesk/attendance-api/pkg/errors"
)

// SnapshotRepository mirrors attendance writes into Redis, keyed
// attendance_{courseId}_{date}. Entries are the read fallback when the
// durable store is unreachable; last writer wins, no conflict resolution.
type SnapshotRepository struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewSnapshotRepository constructs a snapshot repository. TTL bounds how long
// stale fallback data survives; entries are never purged explicitly.
func NewSnapshotRepository(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *SnapshotRepository {
	if prefix == "" {
		prefix = "attendance"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotRepository{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Merge overlays the provided entries onto the existing snapshot for the
// (course, date) key and rewrites it. Used by single marks so the rest of the
// day's cached records survive.
func (r *SnapshotRepository) Merge(ctx context.Context, courseID string, date time.Time, entries models.AttendanceSnapshot) error {
	if r.client == nil {
		return nil
	}
	current, err := r.Read(ctx, courseID, date)
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			return err
		}
		current = models.AttendanceSnapshot{}
	}
	for studentID, entry := range entries {
		current[studentID] = entry
	}
	return r.write(ctx, courseID, date, current)
}

// Replace overwrites the snapshot for the (course, date) key. Used by bulk
// marks, which replace the whole day.
func (r *SnapshotRepository) Replace(ctx context.Context, courseID string, date time.Time, snapshot models.AttendanceSnapshot) error {
	if r.client == nil {
		return nil
	}
	return r.write(ctx, courseID, date, snapshot)
}

// Read decodes the snapshot for the (course, date) key. Returns ErrCacheMiss
// when no entry exists.
func (r *SnapshotRepository) Read(ctx context.Context, courseID string, date time.Time) (models.AttendanceSnapshot, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	key := r.key(courseID, date)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	snapshot := models.AttendanceSnapshot{}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot for %s: %w", key, err)
	}
	return snapshot, nil
}

func (r *SnapshotRepository) write(ctx context.Context, courseID string, date time.Time, snapshot models.AttendanceSnapshot) error {
	key := r.key(courseID, date)
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *SnapshotRepository) key(courseID string, date time.Time) string {
	return fmt.Sprintf("%s_%s_%s", r.prefix, courseID, date.Format("2006-01-02"))
}

// Close releases the underlying Redis connection if present.
func (r *SnapshotRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
