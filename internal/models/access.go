package models

import "time"

// AccessWindow is the transient [start, end, archive] interval gating every
// session operation. It is derived per request and never persisted.
type AccessWindow struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Archive time.Time `json:"archive"`
}

// Merge widens two windows to the most favorable combination.
func (w AccessWindow) Merge(other AccessWindow) AccessWindow {
	merged := w
	if other.Start.Before(merged.Start) {
		merged.Start = other.Start
	}
	if other.End.After(merged.End) {
		merged.End = other.End
	}
	if other.Archive.After(merged.Archive) {
		merged.Archive = other.Archive
	}
	return merged
}

// Enrollment grants a learner a time window on one content id (an item, a
// course or a media). At most one active enrollment exists per pair.
type Enrollment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:36;not null;index:idx_enrollments_active_key,unique,where:active" json:"user_id"`
	ContentID  string    `gorm:"size:36;not null;index:idx_enrollments_active_key,unique,where:active" json:"content_id"`
	Active     bool      `gorm:"not null;default:true" json:"active"`
	Start      time.Time `gorm:"not null" json:"start"`
	End        time.Time `gorm:"not null" json:"end"`
	Archive    time.Time `gorm:"not null" json:"archive"`
	EnrolledBy string    `gorm:"size:36" json:"enrolled_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Window returns the enrollment interval as an access window.
func (e Enrollment) Window() AccessWindow {
	return AccessWindow{Start: e.Start, End: e.End, Archive: e.Archive}
}

// PublicAccess opens a media to everyone for a window, independent of any
// enrollment.
type PublicAccess struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MediaID   string    `gorm:"size:36;not null;uniqueIndex" json:"media_id"`
	Start     time.Time `gorm:"not null" json:"start"`
	End       time.Time `gorm:"not null" json:"end"`
	Archive   time.Time `gorm:"not null" json:"archive"`
	CreatedAt time.Time `json:"created_at"`
}

// Window returns the public interval as an access window.
func (p PublicAccess) Window() AccessWindow {
	return AccessWindow{Start: p.Start, End: p.End, Archive: p.Archive}
}

// VerificationLog records one proof-of-verification check. A fresh success
// record gates entry into verification-required items and courses.
type VerificationLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     string    `gorm:"size:36;not null;index:idx_verification_consumer" json:"user_id"`
	ConsumerID string    `gorm:"size:36;not null;index:idx_verification_consumer" json:"consumer_id"`
	Success    bool      `gorm:"not null;default:false" json:"success"`
	Fingerprint string   `gorm:"size:255" json:"fingerprint"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}
