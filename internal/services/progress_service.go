package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codecourse/server/internal/models"
	apperrors "github.com/codecourse/server/pkg/errors"
)

// CourseSummary aggregates recorded lessons for one course. TotalLessons is
// the number of lesson rows recorded for the user, not a curriculum size.
type CourseSummary struct {
	CourseName       string  `json:"course_name"`
	TotalLessons     int     `json:"total_lessons"`
	CompletedLessons int     `json:"completed_lessons"`
	Percentage       float64 `json:"percentage"`
}

// ProgressService tracks per-lesson completion markers.
type ProgressService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewProgressService constructs a ProgressService.
func NewProgressService(db *gorm.DB) (*ProgressService, error) {
	if db == nil {
		return nil, errors.New("progress service: db is required")
	}
	return &ProgressService{db: db, now: time.Now}, nil
}

// Save marks a lesson complete. Upserts on (user, course, lesson); repeated
// submissions leave exactly one row.
func (s *ProgressService) Save(ctx context.Context, userID, courseName string, lessonNumber int) error {
	courseName = strings.TrimSpace(courseName)
	if courseName == "" || lessonNumber <= 0 {
		return apperrors.NewBadRequest("courseName and a positive lessonNumber are required")
	}

	now := s.now()
	row := models.CourseProgress{
		UserID:       userID,
		CourseName:   courseName,
		LessonNumber: lessonNumber,
		Completed:    true,
		CompletedAt:  &now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_name"}, {Name: "lesson_number"}},
		DoUpdates: clause.Assignments(map[string]any{"completed": true, "completed_at": now}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("progress service: save progress: %w", err)
	}

	return nil
}

// Summary aggregates progress per course for a user.
func (s *ProgressService) Summary(ctx context.Context, userID string) ([]CourseSummary, error) {
	var rows []models.CourseProgress
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("course_name, lesson_number").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("progress service: load progress: %w", err)
	}

	type counter struct {
		total     int
		completed int
	}
	counts := map[string]*counter{}
	order := []string{}

	for _, row := range rows {
		c, ok := counts[row.CourseName]
		if !ok {
			c = &counter{}
			counts[row.CourseName] = c
			order = append(order, row.CourseName)
		}
		c.total++
		if row.Completed {
			c.completed++
		}
	}

	summaries := make([]CourseSummary, 0, len(order))
	for _, name := range order {
		c := counts[name]
		percentage := 0.0
		if c.total > 0 {
			percentage = math.Round(float64(c.completed)/float64(c.total)*100*100) / 100
		}
		summaries = append(summaries, CourseSummary{
			CourseName:       name,
			TotalLessons:     c.total,
			CompletedLessons: c.completed,
			Percentage:       percentage,
		})
	}

	return summaries, nil
}
