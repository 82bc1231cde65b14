package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/xuri/excelize/v2"
)

const exportTimeLayout = "2006-01-02 15:04:05"

type exportService struct {
	repo    repositories.Repository
	scoring ScoringService
	logger  *slog.Logger
}

func NewExportService(repo repositories.Repository, scoring ScoringService, logger *slog.Logger) ExportService {
	return &exportService{
		repo:    repo,
		scoring: scoring,
		logger:  logger,
	}
}

// ExportSessionResults writes one row per question to a "Results" sheet and the per-type
// breakdown to a "By Type" sheet.
func (s *exportService) ExportSessionResults(ctx context.Context, sessionID uint) ([]byte, error) {
	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		return nil, translateNotFound(err, ErrSessionNotFound)
	}
	results, err := s.scoring.GetDetailedResults(ctx, session)
	if err != nil {
		return nil, err
	}
	byType, err := s.scoring.GetScoreByType(ctx, session)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	rows := make([][]interface{}, 0, len(results.Results)+1)
	for _, r := range results.Results {
		answer := ""
		if r.SubmittedAnswer != nil {
			answer = r.SubmittedAnswer.String()
		}
		rows = append(rows, []interface{}{
			r.SortOrder, r.QuestionID, r.QuestionType.Label(), r.Difficulty,
			answer, yesNo(r.WasAnswered), yesNo(r.IsCorrect), r.AwardedScore, r.MaxScore,
		})
	}
	rows = append(rows, []interface{}{
		"Total", "", "", "", "", "", results.Summary.CorrectCount, results.Summary.TotalScore, results.Summary.MaxScore,
	})
	if err := writeSheet(f, "Results", []string{
		"Order", "Question ID", "Type", "Difficulty", "Answer", "Answered", "Correct", "Score", "Max Score",
	}, rows); err != nil {
		return nil, err
	}

	types := make([]models.QuestionType, 0, len(byType))
	for qt := range byType {
		types = append(types, qt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	typeRows := make([][]interface{}, 0, len(types))
	for _, qt := range types {
		g := byType[qt]
		typeRows = append(typeRows, []interface{}{
			qt.Label(), g.TotalQuestions, g.AnsweredQuestions, g.CorrectQuestions,
			g.TotalScore, g.MaxScore, g.CorrectRate, g.AnswerRate, g.ScoreRate,
		})
	}
	if err := writeSheet(f, "By Type", []string{
		"Type", "Questions", "Answered", "Correct", "Score", "Max Score", "Correct Rate", "Answer Rate", "Score Rate",
	}, typeRows); err != nil {
		return nil, err
	}

	return finalizeWorkbook(f, "Results")
}

// ExportPaperSessions writes one row per session of the paper.
func (s *exportService) ExportPaperSessions(ctx context.Context, paperID uint) ([]byte, error) {
	if _, err := s.repo.Paper().GetByID(ctx, paperID); err != nil {
		return nil, translateNotFound(err, ErrPaperNotFound)
	}
	sessions, err := s.repo.Session().ListByPaper(ctx, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	rows := make([][]interface{}, 0, len(sessions))
	for _, session := range sessions {
		row := []interface{}{
			session.ID, session.UserID, session.AttemptNumber, string(session.Status),
			formatTime(session.StartTime), formatTime(session.EndTime),
		}
		row = append(row, optionalInt(session.Score), optionalInt(session.TotalScore))
		if pct := session.ScorePercentage(); pct != nil {
			row = append(row, *pct)
		} else {
			row = append(row, "")
		}
		row = append(row, yesNo(session.Passed), optionalInt(session.Duration))
		rows = append(rows, row)
	}

	if err := writeSheet(f, "Sessions", []string{
		"Session ID", "User ID", "Attempt", "Status", "Started At", "Ended At",
		"Score", "Total Score", "Percentage", "Passed", "Duration (seconds)",
	}, rows); err != nil {
		return nil, err
	}

	s.logger.Info("Exported paper sessions", "paper_id", paperID, "sessions", len(sessions))
	return finalizeWorkbook(f, "Sessions")
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheet, cell, header)
	}
	for rowIndex, row := range rows {
		for colIndex, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			if err != nil {
				return err
			}
			f.SetCellValue(sheet, cell, value)
		}
	}
	return nil
}

// finalizeWorkbook drops the default sheet, activates the first data sheet and
// serializes the workbook.
func finalizeWorkbook(f *excelize.File, active string) ([]byte, error) {
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(active)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportTimeLayout)
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}
