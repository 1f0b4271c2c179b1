package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/test-attempt-service/internal/models"
	"github.com/SAP-F-2025/test-attempt-service/internal/repositories"
	"github.com/SAP-F-2025/test-attempt-service/internal/scoring"
	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet    = "Results"
	answersSheet    = "Answers"
	exportPageSize  = 100
	exportTimestamp = time.RFC3339
)

type exportService struct {
	repo   repositories.Repository
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		logger: logger,
	}
}

// ExportResults builds a workbook with one row per attempt on the Results
// sheet and one row per graded question on the Answers sheet.
func (s *exportService) ExportResults(ctx context.Context, principal models.Principal, testDefinitionID string) ([]byte, error) {
	def, err := s.repo.TestDefinition().GetByID(ctx, testDefinitionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrTestDefinitionNotFound
		}
		return nil, fmt.Errorf("failed to get test definition: %w", err)
	}

	switch {
	case principal.Role == models.RoleAdmin:
	case principal.Role == models.RoleTeacher && def.CreatedBy == principal.ID:
	case principal.Role == models.RoleTeacher:
		return nil, ErrTestDefinitionNotFound
	default:
		return nil, NewPermissionError(principal.ID, testDefinitionID, "test_definition", "export_results", "only teachers and admins can export results")
	}

	attempts, err := s.collectAttempts(ctx, testDefinitionID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	if _, err := f.NewSheet(answersSheet); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	resultHeaders := []interface{}{
		"Attempt ID", "Student ID", "Status", "Start Time", "End Time", "Completed At",
		"End Reason", "Score", "Total Questions", "Percentage",
	}
	if err := writeRow(f, resultsSheet, 1, resultHeaders); err != nil {
		return nil, err
	}

	answerHeaders := []interface{}{
		"Attempt ID", "Student ID", "Question ID", "Question", "Student Answer", "Correct Answer", "Correct",
	}
	if err := writeRow(f, answersSheet, 1, answerHeaders); err != nil {
		return nil, err
	}

	answerRow := 2
	for i, attempt := range attempts {
		if err := writeRow(f, resultsSheet, i+2, attemptRow(attempt)); err != nil {
			return nil, err
		}
		for _, result := range attempt.DetailedResults {
			var studentAnswer interface{} = ""
			if result.StudentAnswer != nil {
				studentAnswer = *result.StudentAnswer
			}
			row := []interface{}{
				attempt.ID, attempt.StudentID, result.QuestionID, result.Question,
				studentAnswer, result.CorrectAnswer, result.IsCorrect,
			}
			if err := writeRow(f, answersSheet, answerRow, row); err != nil {
				return nil, err
			}
			answerRow++
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Exported attempt results",
		"test_definition_id", testDefinitionID,
		"attempts", len(attempts),
		"user_id", principal.ID)

	return buf.Bytes(), nil
}

func (s *exportService) collectAttempts(ctx context.Context, testDefinitionID string) ([]*models.Attempt, error) {
	var all []*models.Attempt
	for offset := 0; ; offset += exportPageSize {
		page, total, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{
			TestDefinitionID: &testDefinitionID,
			Limit:            exportPageSize,
			Offset:           offset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list attempts: %w", err)
		}
		all = append(all, page...)
		if len(page) < exportPageSize || int64(len(all)) >= total {
			return all, nil
		}
	}
}

func attemptRow(a *models.Attempt) []interface{} {
	completedAt, endReason := "", ""
	if a.CompletedAt != nil {
		completedAt = a.CompletedAt.UTC().Format(exportTimestamp)
	}
	if a.EndReason != nil {
		endReason = string(*a.EndReason)
	}
	return []interface{}{
		a.ID,
		a.StudentID,
		string(a.Status),
		a.StartTime.UTC().Format(exportTimestamp),
		a.EndTime.UTC().Format(exportTimestamp),
		completedAt,
		endReason,
		a.Score,
		a.ResultTotal(),
		scoring.Percentage(a.Score, a.ResultTotal()),
	}
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
