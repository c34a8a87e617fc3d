package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Course binds lessons and assessments under one grading policy.
type Course struct {
	ID                   string    `gorm:"primaryKey;size:36" json:"id"`
	Title                string    `gorm:"size:255;not null" json:"title"`
	Description          string    `gorm:"type:text" json:"description"`
	EffortHours          int       `gorm:"not null;default:0" json:"effort_hours"`
	VerificationRequired bool      `gorm:"not null;default:false" json:"verification_required"`
	Lessons              []Lesson  `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID identifier when none was provided.
func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Lesson is an ordered slice of the course schedule. Offsets are in days
// relative to the course access window start; a nil end offset inherits the
// course window end.
type Lesson struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CourseID    string    `gorm:"size:36;not null;index" json:"course_id"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Ordering    int       `gorm:"not null;default:0" json:"ordering"`
	StartOffset int       `gorm:"not null;default:0" json:"start_offset"`
	EndOffset   *int      `json:"end_offset"`
	Medias      []Media   `gorm:"many2many:lesson_medias" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Media is streamable content referenced by lessons. Delivery itself is an
// external concern; only the identity and pass threshold live here.
type Media struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	PassingPoint int       `gorm:"not null;default:80" json:"passing_point"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID identifier when none was provided.
func (m *Media) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// Watch is a learner's progress on one media within one context.
type Watch struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_watches_key" json:"user_id"`
	MediaID   string    `gorm:"size:36;not null;uniqueIndex:idx_watches_key" json:"media_id"`
	Context   string    `gorm:"size:255;not null;default:'';uniqueIndex:idx_watches_key" json:"context"`
	Rate      float64   `gorm:"not null;default:0" json:"rate"`
	Passed    bool      `gorm:"not null;default:false" json:"passed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assessment binds one item into a course with a weight and a day-offset
// window relative to the course access window.
type Assessment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CourseID    string    `gorm:"size:36;not null;uniqueIndex:idx_assessments_course_item" json:"course_id"`
	ItemID      string    `gorm:"size:36;not null;uniqueIndex:idx_assessments_course_item" json:"item_id"`
	Weight      int       `gorm:"not null" json:"weight"`
	StartOffset int       `gorm:"not null;default:0" json:"start_offset"`
	EndOffset   *int      `json:"end_offset"`
	Item        *Item     `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GradingPolicy is the one-per-course weighting between assessments and the
// completion criterion.
type GradingPolicy struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	CourseID               string    `gorm:"size:36;not null;uniqueIndex" json:"course_id"`
	AssessmentWeight       int       `gorm:"not null;default:100" json:"assessment_weight"`
	CompletionWeight       int       `gorm:"not null;default:0" json:"completion_weight"`
	CompletionPassingPoint int       `gorm:"not null;default:80" json:"completion_passing_point"`
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// Engagement is a learner's course-level session, parent of all attempts
// taken under the course. At most one active engagement per course/learner.
type Engagement struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  string    `gorm:"size:36;not null;index:idx_engagements_active_key,unique,where:active" json:"course_id"`
	LearnerID string    `gorm:"size:36;not null;index:idx_engagements_active_key,unique,where:active" json:"learner_id"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Gradebook *Gradebook `json:"-"`
}

// Context issues the scoping key consumed by all child attempts and watches.
func (e Engagement) Context() string {
	return fmt.Sprintf("course::%s::%d", e.CourseID, e.ID)
}

// NormalizeContext reduces an engagement context to its course form so
// clients never see engagement-specific detail. Non-course contexts
// normalize to standalone.
func NormalizeContext(context string) string {
	if context == "" {
		return ""
	}
	parts := strings.Split(context, "::")
	if parts[0] == "course" && len(parts) >= 2 {
		return "course=" + parts[1]
	}
	return ""
}

// Gradebook is the 0-or-1 course verdict per engagement. Details holds the
// per-criterion sub-results keyed by item id (or "completion").
type Gradebook struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	EngagementID   uint              `gorm:"not null;uniqueIndex" json:"engagement_id"`
	Details        datatypes.JSONMap `json:"details"`
	Score          float64           `gorm:"not null" json:"score"`
	CompletionRate float64           `gorm:"not null" json:"completion_rate"`
	Passed         bool              `gorm:"not null;default:false" json:"passed"`
	ConfirmedAt    *time.Time        `json:"confirmed_at"`
	Note           string            `gorm:"type:text" json:"note"`
	GraderID       *string           `gorm:"size:36" json:"grader_id"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
