package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/classdesk/attendance-api/internal/models"
	"github.com/classdesk/attendance-api/internal/notify"
	appErrors "github.com/classdesk/attendance-api/pkg/errors"
)

// Where a read was served from.
const (
	ReadSourceRemote   = "remote"
	ReadSourceSnapshot = "snapshot"
)

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.AttendanceRecord) (*models.AttendanceRecord, error)
	ReplaceDay(ctx context.Context, courseID string, date time.Time, records []models.AttendanceRecord) error
	ListByDate(ctx context.Context, courseID string, date time.Time) ([]models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
	MarkedDates(ctx context.Context, courseID string) ([]time.Time, error)
}

type snapshotStore interface {
	Merge(ctx context.Context, courseID string, date time.Time, entries models.AttendanceSnapshot) error
	Replace(ctx context.Context, courseID string, date time.Time, snapshot models.AttendanceSnapshot) error
	Read(ctx context.Context, courseID string, date time.Time) (models.AttendanceSnapshot, error)
}

type changeAnnouncer interface {
	Announce(table, scope string)
}

type attendanceMetrics interface {
	RecordMark(mode string, outcome models.PersistenceOutcome)
	RecordFallbackRead()
}

// AttendanceService is the attendance store: the durable Postgres record plus
// a Redis snapshot mirror used as the read fallback. Mark operations favour
// availability: the snapshot is written ahead of the remote attempt, and a
// failed remote write downgrades the result to local-only instead of erroring.
// Callers that need strict consistency can inspect MarkResult.Persisted.
type AttendanceService struct {
	repo      attendanceRepository
	snapshots snapshotStore
	announcer changeAnnouncer
	metrics   attendanceMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service. announcer and
// metrics may be nil; pass a true nil interface, not a nil concrete pointer,
// since the nil checks are on the interface value.
func NewAttendanceService(repo attendanceRepository, snapshots snapshotStore, announcer changeAnnouncer, metrics attendanceMetrics, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AttendanceService{
		repo:      repo,
		snapshots: snapshots,
		announcer: announcer,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
	svc.validator.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(strings.ToLower(fl.Field().String())).Valid()
	})
	return svc
}

// MarkOneRequest describes a single mark. Marks for students outside the
// current roster are accepted by policy; the aggregator flags them as orphans.
type MarkOneRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
	MarkedBy  string `json:"marked_by" validate:"required"`
}

// MarkBulkItem is one entry of a bulk mark payload.
type MarkBulkItem struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

// MarkBulkRequest replaces an entire (course, date) partition. Destructive:
// any existing record for the date whose student is not in Items is dropped.
type MarkBulkRequest struct {
	CourseID string         `json:"course_id" validate:"required"`
	Date     string         `json:"date" validate:"required"`
	Items    []MarkBulkItem `json:"items" validate:"required,min=1,dive"`
	MarkedBy string         `json:"marked_by" validate:"required"`
}

// MarkResult reports where the write landed. Persisted is "remote" on full
// success and "local-only" when only the snapshot holds the marks.
type MarkResult struct {
	Persisted models.PersistenceOutcome `json:"persisted"`
	Records   []models.AttendanceRecord `json:"records"`
}

// MarkOne upserts one student's mark for a day. The snapshot write-ahead
// happens regardless of the remote outcome; a remote failure is logged and
// reported as local-only, never as an error.
func (s *AttendanceService) MarkOne(ctx context.Context, req MarkOneRequest) (*MarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	status := models.AttendanceStatus(strings.ToLower(req.Status))
	now := time.Now().UTC()

	s.writeAheadMerge(ctx, req.CourseID, date, models.AttendanceSnapshot{
		req.StudentID: {Status: status, MarkedBy: req.MarkedBy, Timestamp: now},
	})

	record := &models.AttendanceRecord{
		CourseID:  req.CourseID,
		StudentID: req.StudentID,
		Date:      date,
		Status:    status,
		MarkedBy:  req.MarkedBy,
	}
	stored, err := s.repo.Upsert(ctx, record)
	if err != nil {
		s.logger.Warn("remote mark failed, snapshot holds the write",
			zap.String("course_id", req.CourseID),
			zap.String("student_id", req.StudentID),
			zap.String("date", req.Date),
			zap.Error(err))
		s.recordMark("single", models.PersistedLocalOnly)
		record.CreatedAt = now
		record.UpdatedAt = now
		return &MarkResult{Persisted: models.PersistedLocalOnly, Records: []models.AttendanceRecord{*record}}, nil
	}

	s.announce(models.PersistedRemote)
	s.recordMark("single", models.PersistedRemote)
	return &MarkResult{Persisted: models.PersistedRemote, Records: []models.AttendanceRecord{*stored}}, nil
}

// MarkBulk replaces the whole day's records for the course in one sequence
// (delete, then insert). Callers must treat this as a full overwrite.
func (s *AttendanceService) MarkBulk(ctx context.Context, req MarkBulkRequest) (*MarkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	date, err := parseDay(req.Date)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	snapshot := make(models.AttendanceSnapshot, len(req.Items))
	records := make([]models.AttendanceRecord, len(req.Items))
	for i, item := range req.Items {
		if _, dup := snapshot[item.StudentID]; dup {
			return nil, appErrors.Clone(appErrors.ErrConflict, "duplicate student in payload")
		}
		status := models.AttendanceStatus(strings.ToLower(item.Status))
		snapshot[item.StudentID] = models.SnapshotEntry{Status: status, MarkedBy: req.MarkedBy, Timestamp: now}
		records[i] = models.AttendanceRecord{
			CourseID:  req.CourseID,
			StudentID: item.StudentID,
			Date:      date,
			Status:    status,
			MarkedBy:  req.MarkedBy,
		}
	}

	s.writeAheadReplace(ctx, req.CourseID, date, snapshot)

	if err := s.repo.ReplaceDay(ctx, req.CourseID, date, records); err != nil {
		s.logger.Warn("remote bulk mark failed, snapshot holds the write",
			zap.String("course_id", req.CourseID),
			zap.String("date", req.Date),
			zap.Int("items", len(records)),
			zap.Error(err))
		s.recordMark("bulk", models.PersistedLocalOnly)
		for i := range records {
			records[i].CreatedAt = now
			records[i].UpdatedAt = now
		}
		return &MarkResult{Persisted: models.PersistedLocalOnly, Records: records}, nil
	}

	s.announce(models.PersistedRemote)
	s.recordMark("bulk", models.PersistedRemote)
	return &MarkResult{Persisted: models.PersistedRemote, Records: records}, nil
}

// ReadByDate returns the day's records for a course. A thrown remote read
// falls back to the snapshot; a successful empty read means "nothing marked
// yet" and is returned as-is. The two sources are never merged.
func (s *AttendanceService) ReadByDate(ctx context.Context, courseID string, date time.Time) ([]models.AttendanceRecord, string, error) {
	records, err := s.repo.ListByDate(ctx, courseID, date)
	if err == nil {
		return records, ReadSourceRemote, nil
	}

	s.logger.Warn("remote read failed, consulting snapshot",
		zap.String("course_id", courseID),
		zap.String("date", date.Format("2006-01-02")),
		zap.Error(err))
	if s.metrics != nil {
		s.metrics.RecordFallbackRead()
	}

	snapshot, snapErr := s.snapshots.Read(ctx, courseID, date)
	if snapErr != nil {
		// No cached partition either: nothing marked yet as far as we can tell.
		return []models.AttendanceRecord{}, ReadSourceSnapshot, nil
	}
	return snapshotToRecords(courseID, date, snapshot), ReadSourceSnapshot, nil
}

// ReadByStudent returns a student's records, optionally scoped to a course.
func (s *AttendanceService) ReadByStudent(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	if filter.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id required")
	}
	records, err := s.repo.ListByStudent(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read student attendance")
	}
	return records, nil
}

// ListMarkedDates returns the distinct marked dates for a course, newest first.
func (s *AttendanceService) ListMarkedDates(ctx context.Context, courseID string) ([]time.Time, error) {
	dates, err := s.repo.MarkedDates(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list marked dates")
	}
	return dates, nil
}

func (s *AttendanceService) writeAheadMerge(ctx context.Context, courseID string, date time.Time, entries models.AttendanceSnapshot) {
	if err := s.snapshots.Merge(ctx, courseID, date, entries); err != nil {
		s.logger.Warn("snapshot write-ahead failed", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (s *AttendanceService) writeAheadReplace(ctx context.Context, courseID string, date time.Time, snapshot models.AttendanceSnapshot) {
	if err := s.snapshots.Replace(ctx, courseID, date, snapshot); err != nil {
		s.logger.Warn("snapshot write-ahead failed", zap.String("course_id", courseID), zap.Error(err))
	}
}

func (s *AttendanceService) announce(outcome models.PersistenceOutcome) {
	if s.announcer != nil && outcome == models.PersistedRemote {
		s.announcer.Announce(notify.TableAttendance, "")
	}
}

func (s *AttendanceService) recordMark(mode string, outcome models.PersistenceOutcome) {
	if s.metrics != nil {
		s.metrics.RecordMark(mode, outcome)
	}
}

func snapshotToRecords(courseID string, date time.Time, snapshot models.AttendanceSnapshot) []models.AttendanceRecord {
	records := make([]models.AttendanceRecord, 0, len(snapshot))
	for studentID, entry := range snapshot {
		records = append(records, models.AttendanceRecord{
			CourseID:  courseID,
			StudentID: studentID,
			Date:      date,
			Status:    entry.Status,
			MarkedBy:  entry.MarkedBy,
			CreatedAt: entry.Timestamp,
			UpdatedAt: entry.Timestamp,
		})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].StudentID < records[j].StudentID })
	return records
}

func parseDay(raw string) (time.Time, error) {
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return date, nil
}
