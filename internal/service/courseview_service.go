package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/classdesk/attendance-api/internal/models"
	"github.com/classdesk/attendance-api/internal/notify"
	appErrors "github.com/classdesk/attendance-api/pkg/errors"
)

type rosterResolver interface {
	Roster(ctx context.Context, courseID string) []models.Student
}

type attendanceStore interface {
	MarkOne(ctx context.Context, req MarkOneRequest) (*MarkResult, error)
	MarkBulk(ctx context.Context, req MarkBulkRequest) (*MarkResult, error)
	ReadByDate(ctx context.Context, courseID string, date time.Time) ([]models.AttendanceRecord, string, error)
	ListMarkedDates(ctx context.Context, courseID string) ([]time.Time, error)
}

// CourseViewState is everything the attendance view renders for the active
// course. Snapshots returned by State and the load methods are copies.
type CourseViewState struct {
	CourseID     string                     `json:"course_id"`
	Date         time.Time                  `json:"date"`
	Roster       []models.Student           `json:"roster"`
	Records      []models.AttendanceRecord  `json:"records"`
	Stats        models.AttendanceStats     `json:"stats"`
	RecordSource string                     `json:"record_source"`
	HistoryOpen  bool                       `json:"history_open"`
	MarkedDates  []time.Time                `json:"marked_dates,omitempty"`
	Ready        bool                       `json:"ready"`
}

// CourseViewService orchestrates the roster resolver, the attendance store
// and the aggregator for the active course, and reconciles on change-feed
// signals by re-running the whole read sequence. Reads and writes race in the
// UI by design; a generation counter makes sure a load that finishes after a
// newer activation is discarded instead of clobbering it.
type CourseViewService struct {
	roster rosterResolver
	store  attendanceStore
	logger *zap.Logger

	mu    sync.Mutex
	gen   uint64
	state CourseViewState
}

// NewCourseViewService constructs the view-state container.
func NewCourseViewService(roster rosterResolver, store attendanceStore, logger *zap.Logger) *CourseViewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseViewService{roster: roster, store: store, logger: logger}
}

// Activate loads roster, the date's records and stats, in that order. Each
// step fails soft, so the view is always Ready afterwards unless a newer
// activation superseded this one.
func (s *CourseViewService) Activate(ctx context.Context, courseID string, date time.Time) (*CourseViewState, error) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	roster := s.roster.Roster(ctx, courseID)
	records, source, err := s.store.ReadByDate(ctx, courseID, date)
	if err != nil {
		return nil, err
	}
	s.flagOrphans(courseID, roster, records)

	next := CourseViewState{
		CourseID:     courseID,
		Date:         date,
		Roster:       roster,
		Records:      records,
		Stats:        ComputeStats(len(roster), records),
		RecordSource: source,
		Ready:        true,
	}
	return s.commit(gen, next)
}

// SelectDate re-reads records and stats for the new date. The roster is kept;
// it is only refreshed on activation or a change signal.
func (s *CourseViewService) SelectDate(ctx context.Context, date time.Time) (*CourseViewState, error) {
	s.mu.Lock()
	if !s.state.Ready {
		s.mu.Unlock()
		return nil, appErrors.Clone(appErrors.ErrValidation, "no active course")
	}
	s.gen++
	gen := s.gen
	next := s.state
	s.mu.Unlock()

	records, source, err := s.store.ReadByDate(ctx, next.CourseID, date)
	if err != nil {
		return nil, err
	}
	s.flagOrphans(next.CourseID, next.Roster, records)

	next.Date = date
	next.Records = records
	next.RecordSource = source
	next.Stats = ComputeStats(len(next.Roster), records)
	return s.commit(gen, next)
}

// MarkOne writes one mark through the store, then unconditionally re-reads
// the current date. No optimistic patching: bulk writes can drop records, so
// the re-read is the only authoritative refresh.
func (s *CourseViewService) MarkOne(ctx context.Context, studentID string, status models.AttendanceStatus, markedBy string) (*CourseViewState, error) {
	courseID, date, err := s.active()
	if err != nil {
		return nil, err
	}
	if _, err := s.store.MarkOne(ctx, MarkOneRequest{
		CourseID:  courseID,
		StudentID: studentID,
		Date:      date.Format("2006-01-02"),
		Status:    string(status),
		MarkedBy:  markedBy,
	}); err != nil {
		return nil, err
	}
	return s.SelectDate(ctx, date)
}

// MarkAll bulk-marks every roster student with the same status for the
// current date, replacing the whole day, then re-reads.
func (s *CourseViewService) MarkAll(ctx context.Context, status models.AttendanceStatus, markedBy string) (*CourseViewState, error) {
	courseID, date, err := s.active()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	roster := s.state.Roster
	s.mu.Unlock()
	if len(roster) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster is empty")
	}

	items := make([]MarkBulkItem, len(roster))
	for i, student := range roster {
		items[i] = MarkBulkItem{StudentID: student.ID, Status: string(status)}
	}
	if _, err := s.store.MarkBulk(ctx, MarkBulkRequest{
		CourseID: courseID,
		Date:     date.Format("2006-01-02"),
		Items:    items,
		MarkedBy: markedBy,
	}); err != nil {
		return nil, err
	}
	return s.SelectDate(ctx, date)
}

// OpenHistory loads the set of marked dates and flips the history panel open.
func (s *CourseViewService) OpenHistory(ctx context.Context) (*CourseViewState, error) {
	courseID, _, err := s.active()
	if err != nil {
		return nil, err
	}
	dates, err := s.store.ListMarkedDates(ctx, courseID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.state.HistoryOpen = true
	s.state.MarkedDates = dates
	snapshot := s.state
	s.mu.Unlock()
	return &snapshot, nil
}

// CloseHistory flips the history panel shut.
func (s *CourseViewService) CloseHistory() *CourseViewState {
	s.mu.Lock()
	s.state.HistoryOpen = false
	snapshot := s.state
	s.mu.Unlock()
	return &snapshot
}

// HandleChange reacts to a coarse change signal by re-running the full
// activation sequence for the current course. Signals for tables the view
// does not depend on are ignored.
func (s *CourseViewService) HandleChange(ctx context.Context, event notify.Event) {
	switch event.Table {
	case notify.TableCourses, notify.TableEnrollments, notify.TableAttendance:
	default:
		return
	}

	s.mu.Lock()
	ready := s.state.Ready
	courseID := s.state.CourseID
	date := s.state.Date
	s.mu.Unlock()
	if !ready {
		return
	}

	if _, err := s.Activate(ctx, courseID, date); err != nil {
		s.logger.Warn("change-signal reload failed",
			zap.String("table", event.Table),
			zap.String("course_id", courseID),
			zap.Error(err))
	}
}

// State returns a copy of the current view state.
func (s *CourseViewService) State() CourseViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// commit installs the loaded state unless a newer load superseded it, in
// which case the result is discarded and the newer state returned.
func (s *CourseViewService) commit(gen uint64, next CourseViewState) (*CourseViewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.logger.Debug("discarding stale view load", zap.String("course_id", next.CourseID))
		snapshot := s.state
		return &snapshot, nil
	}
	// History panel state survives reloads.
	next.HistoryOpen = s.state.HistoryOpen
	next.MarkedDates = s.state.MarkedDates
	s.state = next
	snapshot := s.state
	return &snapshot, nil
}

func (s *CourseViewService) active() (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Ready {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrValidation, "no active course")
	}
	return s.state.CourseID, s.state.Date, nil
}

func (s *CourseViewService) flagOrphans(courseID string, roster []models.Student, records []models.AttendanceRecord) {
	if orphans := OrphanStudentIDs(roster, records); len(orphans) > 0 {
		s.logger.Warn("attendance records for students outside the roster",
			zap.String("course_id", courseID),
			zap.Strings("student_ids", orphans))
	}
}
