package models

import "time"

// CourseProgress marks one lesson of one course complete for one user.
// (UserID, CourseName, LessonNumber) identifies at most one row; re-marking
// is an idempotent upsert.
type CourseProgress struct {
	BaseModel

	UserID       string     `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_course_lesson" json:"user_id"`
	CourseName   string     `gorm:"not null;uniqueIndex:idx_progress_user_course_lesson" json:"course_name"`
	LessonNumber int        `gorm:"not null;uniqueIndex:idx_progress_user_course_lesson" json:"lesson_number"`
	Completed    bool       `gorm:"default:false" json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
