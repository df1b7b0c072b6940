package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/davidolu/vision-worker/constants"
	"github.com/davidolu/vision-worker/internal/entity"
	"github.com/davidolu/vision-worker/internal/repository"
)

// Service is a tiny façade over the job repository that produces XLSX bytes
// for operator reports.
type Service struct {
	jobsRepo repository.JobRepository
	logger   *slog.Logger
}

func NewService(jobsRepo repository.JobRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobsRepo: jobsRepo, logger: logger}
}

// ExportJobsXLSX returns an XLSX workbook (as bytes) listing jobs in the given
// statuses. With no statuses it reports completed and failed jobs.
func (s *Service) ExportJobsXLSX(ctx context.Context, statuses ...constants.JobStatus) ([]byte, error) {
	start := time.Now()

	if len(statuses) == 0 {
		statuses = []constants.JobStatus{constants.JobStatusCompleted, constants.JobStatusFailed}
	}

	var jobs []entity.Job
	for _, st := range statuses {
		rows, err := s.jobsRepo.ListByStatus(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("query jobs: %w", err)
		}
		jobs = append(jobs, rows...)
	}

	f := excelize.NewFile()
	const sheet = "Jobs"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Filename",
		"Status",
		"Detections",
		"Classes",
		"Processing Time (s)",
		"Retries",
		"Error",
		"Result URL",
		"Processed At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, j := range jobs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, j.Filename)
		write(2, j.Status.String())
		write(3, len(j.Detections))
		write(4, classSummary(j.Detections))
		if j.ProcessingTimeSeconds != nil {
			write(5, *j.ProcessingTimeSeconds)
		}
		write(6, j.RetryCount)
		if j.ErrorMessage != nil {
			write(7, *j.ErrorMessage)
		}
		if j.ResultURL != nil {
			write(8, *j.ResultURL)
		}
		if j.ProcessedAt != nil {
			write(9, j.ProcessedAt.Format("2006-01-02 15:04:05"))
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export complete", "jobs", len(jobs), "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// classSummary collapses detections into "class xN" pairs, keeping order of
// first appearance.
func classSummary(detections entity.DetectionList) string {
	if len(detections) == 0 {
		return ""
	}
	counts := make(map[string]int, len(detections))
	var order []string
	for _, d := range detections {
		if _, seen := counts[d.Class]; !seen {
			order = append(order, d.Class)
		}
		counts[d.Class]++
	}
	parts := make([]string, 0, len(order))
	for _, class := range order {
		parts = append(parts, fmt.Sprintf("%s x%d", class, counts[class]))
	}
	return strings.Join(parts, ", ")
}
