package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/classdesk/attendance-api/internal/models"
)

type rosterRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Student, error)
}

// RosterService resolves a course's enrolled students. It fails soft: when
// the enrollment join errors or comes back empty, a fixed demo roster is
// substituted so dependent views stay usable without live data. Errors never
// cross this boundary.
type RosterService struct {
	repo            rosterRepository
	fallbackEnabled bool
	logger          *zap.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(repo rosterRepository, fallbackEnabled bool, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, fallbackEnabled: fallbackEnabled, logger: logger}
}

// Roster returns the course roster, or the demo fallback. No caching: roster
// size and enrollment churn are both low, so each activation reads fresh.
func (s *RosterService) Roster(ctx context.Context, courseID string) []models.Student {
	students, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		s.logger.Warn("enrollment join failed, using fallback roster",
			zap.String("course_id", courseID), zap.Error(err))
		return s.fallback()
	}
	if len(students) == 0 {
		s.logger.Info("no enrollments for course, using fallback roster",
			zap.String("course_id", courseID))
		return s.fallback()
	}
	return students
}

func (s *RosterService) fallback() []models.Student {
	if !s.fallbackEnabled {
		return []models.Student{}
	}
	return FallbackRoster()
}

// FallbackRoster returns the fixed five-student demo roster with
// deterministic identifiers. Callers get a fresh copy.
func FallbackRoster() []models.Student {
	return []models.Student{
		{ID: "demo-student-1", FullName: "Alice Demo", Email: "alice@demo.classdesk.dev", StudentNumber: "D-0001"},
		{ID: "demo-student-2", FullName: "Bob Demo", Email: "bob@demo.classdesk.dev", StudentNumber: "D-0002"},
		{ID: "demo-student-3", FullName: "Carol Demo", Email: "carol@demo.classdesk.dev", StudentNumber: "D-0003"},
		{ID: "demo-student-4", FullName: "Dave Demo", Email: "dave@demo.classdesk.dev", StudentNumber: "D-0004"},
		{ID: "demo-student-5", FullName: "Erin Demo", Email: "erin@demo.classdesk.dev", StudentNumber: "D-0005"},
	}
}
