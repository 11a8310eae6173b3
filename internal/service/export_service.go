package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/classdesk/attendance-api/internal/models"
	appErrors "github.com/classdesk/attendance-api/pkg/errors"
	"github.com/classdesk/attendance-api/pkg/export"
	"github.com/classdesk/attendance-api/pkg/storage"
)

type dayReader interface {
	ReadByDate(ctx context.Context, courseID string, date time.Time) ([]models.AttendanceRecord, string, error)
}

// ExportService renders a course's day report to CSV or PDF, stores the file,
// and hands out signed download tokens.
type ExportService struct {
	roster rosterResolver
	store  dayReader
	csv    *export.CSVExporter
	pdf    *export.PDFExporter
	files  *storage.LocalStorage
	signer *storage.SignedURLSigner
	logger *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(roster rosterResolver, store dayReader, files *storage.LocalStorage, signer *storage.SignedURLSigner, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		roster: roster,
		store:  store,
		csv:    export.NewCSVExporter(),
		pdf:    export.NewPDFExporter(),
		files:  files,
		signer: signer,
		logger: logger,
	}
}

// DayReportResult describes a generated report file.
type DayReportResult struct {
	ReportID  string    `json:"report_id"`
	FileName  string    `json:"file_name"`
	Format    string    `json:"format"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Rows      int       `json:"rows"`
}

// GenerateDayReport renders the attendance table for (course, date). Roster
// students without a record are listed as unmarked.
func (s *ExportService) GenerateDayReport(ctx context.Context, courseID string, date time.Time, format string) (*DayReportResult, error) {
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	roster := s.roster.Roster(ctx, courseID)
	records, _, err := s.store.ReadByDate(ctx, courseID, date)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string]models.AttendanceRecord, len(records))
	for _, record := range records {
		byStudent[record.StudentID] = record
	}

	dataset := export.Dataset{
		Headers: []string{"Student No", "Name", "Status", "Marked By"},
	}
	appendRow := func(number, name, status, markedBy string) {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student No": number,
			"Name":       name,
			"Status":     status,
			"Marked By":  markedBy,
		})
	}
	for _, student := range roster {
		if record, ok := byStudent[student.ID]; ok {
			appendRow(student.StudentNumber, student.FullName, string(record.Status), record.MarkedBy)
			delete(byStudent, student.ID)
			continue
		}
		appendRow(student.StudentNumber, student.FullName, "unmarked", "")
	}
	// Records for students outside the roster still show up in the report.
	for studentID, record := range byStudent {
		appendRow("", studentID, string(record.Status), record.MarkedBy)
	}

	title := fmt.Sprintf("Attendance %s %s", courseID, date.Format("2006-01-02"))
	var payload []byte
	switch format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		payload, err = s.pdf.Render(dataset, title)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	reportID := uuid.NewString()
	fileName := fmt.Sprintf("daily/%s_%s_%s.%s", courseID, date.Format("2006-01-02"), reportID, format)
	if _, err := s.files.Save(fileName, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	token, expiresAt, err := s.signer.Generate(reportID, fileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}

	return &DayReportResult{
		ReportID:  reportID,
		FileName:  fileName,
		Format:    format,
		Token:     token,
		ExpiresAt: expiresAt,
		Rows:      len(dataset.Rows),
	}, nil
}

// OpenDownload validates the token and opens the referenced report file.
func (s *ExportService) OpenDownload(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "report file not found")
	}
	return file, relPath, nil
}

// CleanupLoop deletes stored reports older than ttl at the given interval.
// Blocks until ctx is cancelled; run it on its own goroutine.
func (s *ExportService) CleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.files.CleanupOlderThan(ttl)
			if err != nil {
				s.logger.Warn("report cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("cleaned up expired reports", zap.Int("count", len(deleted)))
			}
		}
	}
}
