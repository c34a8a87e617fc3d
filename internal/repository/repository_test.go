package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Item{},
		&models.QuestionPool{},
		&models.Question{},
		&models.Solution{},
		&models.Attempt{},
		&models.ScratchPad{},
		&models.Submission{},
		&models.SubmissionAttachment{},
		&models.Grade{},
		&models.Appeal{},
		&models.Enrollment{},
		&models.PublicAccess{},
		&models.VerificationLog{},
		&models.Course{},
		&models.Lesson{},
		&models.Media{},
		&models.Watch{},
		&models.Assessment{},
		&models.GradingPolicy{},
		&models.Engagement{},
		&models.Gradebook{},
	))
	return db
}

func createAttempt(t *testing.T, db *gorm.DB, itemID, learnerID, contextKey string, active bool) models.Attempt {
	t.Helper()
	attempt := models.Attempt{
		ItemID:    itemID,
		LearnerID: learnerID,
		Context:   contextKey,
		StartedAt: time.Now(),
		Active:    active,
	}
	require.NoError(t, db.Create(&attempt).Error)
	return attempt
}

func TestAttemptRepositorySingleActivePerKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	first := models.Attempt{ItemID: "exam-1", LearnerID: "learner-1", StartedAt: time.Now(), Active: true}
	require.NoError(t, repo.Create(ctx, &first))

	second := models.Attempt{ItemID: "exam-1", LearnerID: "learner-1", StartedAt: time.Now(), Active: true}
	require.ErrorIs(t, repo.Create(ctx, &second), gorm.ErrDuplicatedKey)

	// Different context keys never collide.
	scoped := models.Attempt{ItemID: "exam-1", LearnerID: "learner-1", Context: "course::c1::1", StartedAt: time.Now(), Active: true}
	require.NoError(t, repo.Create(ctx, &scoped))

	// Retiring the active attempt reopens the key.
	first.Active = false
	require.NoError(t, repo.Update(ctx, &first))
	retake := models.Attempt{ItemID: "exam-1", LearnerID: "learner-1", StartedAt: time.Now(), Active: true}
	require.NoError(t, repo.Create(ctx, &retake))

	count, err := repo.CountByKey(ctx, "exam-1", "learner-1", "")
	require.NoError(t, err)
	require.Equal(t, int64(2), count, "inactive attempts still count toward the attempt limit")

	active, err := repo.GetActive(ctx, "exam-1", "learner-1", "")
	require.NoError(t, err)
	require.Equal(t, retake.ID, active.ID)
}

func TestAttemptRepositoryGetActivePreloads(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttemptRepository(db)
	ctx := context.Background()

	attempt := createAttempt(t, db, "exam-1", "learner-1", "", true)
	require.NoError(t, db.Create(&models.ScratchPad{AttemptID: attempt.ID, Answers: map[string]interface{}{"1": "a"}}).Error)
	require.NoError(t, db.Create(&models.Submission{AttemptID: attempt.ID, Answers: map[string]interface{}{"1": "a"}}).Error)
	require.NoError(t, db.Create(&models.Grade{AttemptID: attempt.ID, PossiblePoint: 5, EarnedPoint: 3, Score: 60}).Error)

	loaded, err := repo.GetActive(ctx, "exam-1", "learner-1", "")
	require.NoError(t, err)
	require.NotNil(t, loaded.ScratchPad)
	require.NotNil(t, loaded.Submission)
	require.NotNil(t, loaded.Grade)
	require.Equal(t, 60.0, loaded.Grade.Score)
}

func TestSubmissionRepositoryOnePerAttempt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	attempt := createAttempt(t, db, "exam-1", "learner-1", "", true)

	first := models.Submission{AttemptID: attempt.ID, Answers: map[string]interface{}{"1": "a"}}
	require.NoError(t, repo.Create(ctx, &first))

	second := models.Submission{AttemptID: attempt.ID, Answers: map[string]interface{}{"1": "b"}}
	require.ErrorIs(t, repo.Create(ctx, &second), gorm.ErrDuplicatedKey)

	loaded, err := repo.GetByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, "a", loaded.Answers["1"])
}

func TestScratchRepositoryMergeAccumulates(t *testing.T) {
	db := setupTestDB(t)
	repo := NewScratchRepository(db)
	ctx := context.Background()

	attempt := createAttempt(t, db, "exam-1", "learner-1", "", true)

	require.NoError(t, repo.Merge(ctx, attempt.ID, map[string]interface{}{"1": "a", "2": "first"}))
	require.NoError(t, repo.Merge(ctx, attempt.ID, map[string]interface{}{"2": "second", "3": "c"}))

	pad, err := repo.GetByAttempt(ctx, attempt.ID)
	require.NoError(t, err)
	require.Equal(t, "a", pad.Answers["1"])
	require.Equal(t, "second", pad.Answers["2"], "later saves overwrite earlier ones")
	require.Equal(t, "c", pad.Answers["3"])
}

func TestGradeRepositoryConfirmedByKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRepository(db)
	ctx := context.Background()
	now := time.Now()

	confirmed := createAttempt(t, db, "exam-1", "learner-1", "", true)
	require.NoError(t, repo.Save(ctx, &models.Grade{
		AttemptID:     confirmed.ID,
		PossiblePoint: 5,
		EarnedPoint:   4,
		Score:         80,
		Passed:        true,
		CompletedAt:   &now,
		ConfirmedAt:   &now,
	}))

	pending := createAttempt(t, db, "exam-1", "learner-2", "", true)
	require.NoError(t, repo.Save(ctx, &models.Grade{AttemptID: pending.ID, PossiblePoint: 5, EarnedPoint: 2, Score: 40}))

	grade, err := repo.GetConfirmedByKey(ctx, "exam-1", "learner-1", "")
	require.NoError(t, err)
	require.Equal(t, 80.0, grade.Score)

	_, err = repo.GetConfirmedByKey(ctx, "exam-1", "learner-2", "")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGradeRepositoryRejectsConfirmationWithoutCompletion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRepository(db)
	ctx := context.Background()
	now := time.Now()

	attempt := createAttempt(t, db, "exam-1", "learner-1", "", true)
	err := repo.Save(ctx, &models.Grade{AttemptID: attempt.ID, ConfirmedAt: &now})
	require.ErrorIs(t, err, models.ErrGradeNotCompleted)
}

func TestGradeRepositoryStats(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradeRepository(db)
	ctx := context.Background()

	scores := map[string]float64{"learner-1": 80, "learner-2": 82, "learner-3": 95}
	for learner, score := range scores {
		attempt := createAttempt(t, db, "exam-1", learner, "", true)
		require.NoError(t, repo.Save(ctx, &models.Grade{AttemptID: attempt.ID, PossiblePoint: 100, EarnedPoint: int(score), Score: score}))
	}
	other := createAttempt(t, db, "exam-2", "learner-1", "", true)
	require.NoError(t, repo.Save(ctx, &models.Grade{AttemptID: other.ID, PossiblePoint: 100, EarnedPoint: 10, Score: 10}))

	stats, err := repo.Stats(ctx, "exam-1")
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Total)
	require.Equal(t, 80.0, stats.MinScore)
	require.Equal(t, 95.0, stats.MaxScore)
	require.InDelta(t, 85.67, stats.AvgScore, 0.01)
	require.Equal(t, int64(2), stats.MaxCount)
	require.Equal(t, []ScoreBucket{{Bucket: 80, Count: 2}, {Bucket: 95, Count: 1}}, stats.Distribution)
}

func TestEnrollmentRepositorySingleActivePerPair(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEnrollmentRepository(db)
	ctx := context.Background()
	now := time.Now()

	first := models.Enrollment{UserID: "learner-1", ContentID: "course-1", Active: true, Start: now, End: now, Archive: now}
	require.NoError(t, repo.Create(ctx, &first))

	dup := models.Enrollment{UserID: "learner-1", ContentID: "course-1", Active: true, Start: now, End: now, Archive: now}
	require.ErrorIs(t, repo.Create(ctx, &dup), gorm.ErrDuplicatedKey)

	require.NoError(t, repo.Deactivate(ctx, first.ID, "learner-1"))
	require.ErrorIs(t, repo.Deactivate(ctx, first.ID, "learner-1"), gorm.ErrRecordNotFound)

	_, err := repo.GetActive(ctx, "learner-1", "course-1")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	renewed := models.Enrollment{UserID: "learner-1", ContentID: "course-1", Active: true, Start: now, End: now, Archive: now}
	require.NoError(t, repo.Create(ctx, &renewed))
}

func TestPublicAccessRepositoryGetCurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPublicAccessRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.Create(&models.PublicAccess{
		MediaID: "media-1",
		Start:   now.Add(-time.Hour),
		End:     now.Add(time.Hour),
		Archive: now.Add(2 * time.Hour),
	}).Error)

	access, err := repo.GetCurrent(ctx, "media-1", now)
	require.NoError(t, err)
	require.Equal(t, "media-1", access.MediaID)

	_, err = repo.GetCurrent(ctx, "media-1", now.Add(3*time.Hour))
	require.ErrorIs(t, err, gorm.ErrRecordNotFound, "archived windows are gone")
}

func TestEngagementRepositorySingleActivePerCourse(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEngagementRepository(db)
	ctx := context.Background()

	first := models.Engagement{CourseID: "course-1", LearnerID: "learner-1", Active: true}
	require.NoError(t, repo.Create(ctx, &first))

	dup := models.Engagement{CourseID: "course-1", LearnerID: "learner-1", Active: true}
	require.ErrorIs(t, repo.Create(ctx, &dup), gorm.ErrDuplicatedKey)

	loaded, err := repo.GetActive(ctx, "course-1", "learner-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, loaded.ID)
	require.Nil(t, loaded.Gradebook)
}

func TestGradebookRepositoryUpsertPreservesConfirmation(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGradebookRepository(db)
	ctx := context.Background()

	engagement := models.Engagement{CourseID: "course-1", LearnerID: "learner-1", Active: true}
	require.NoError(t, db.Create(&engagement).Error)

	gradebook := models.Gradebook{EngagementID: engagement.ID, Score: 70, CompletionRate: 50, Passed: false}
	require.NoError(t, repo.Upsert(ctx, &gradebook))

	confirmedAt := time.Now().Truncate(time.Second)
	require.NoError(t, repo.Confirm(ctx, engagement.ID, confirmedAt, "grader-1"))
	require.ErrorIs(t, repo.Confirm(ctx, engagement.ID, confirmedAt.Add(time.Hour), "grader-2"), gorm.ErrRecordNotFound)

	recompute := models.Gradebook{EngagementID: engagement.ID, Score: 85, CompletionRate: 100, Passed: true}
	require.NoError(t, repo.Upsert(ctx, &recompute))

	stored, err := repo.GetByEngagement(ctx, engagement.ID)
	require.NoError(t, err)
	require.Equal(t, 85.0, stored.Score)
	require.NotNil(t, stored.ConfirmedAt)
	require.Equal(t, confirmedAt.Unix(), stored.ConfirmedAt.Unix())
}

func TestCourseRepositoryScheduleLookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCourseRepository(db)
	ctx := context.Background()

	course := models.Course{ID: "course-1", Title: "Distributed Systems"}
	require.NoError(t, repo.Create(ctx, &course))
	require.NoError(t, db.Create(&models.GradingPolicy{CourseID: "course-1", AssessmentWeight: 80, CompletionWeight: 20}).Error)

	media := models.Media{ID: "media-1", Title: "Intro"}
	require.NoError(t, db.Create(&media).Error)
	lesson := models.Lesson{CourseID: "course-1", Title: "Week 1", Ordering: 1, StartOffset: 0, Medias: []models.Media{media}}
	require.NoError(t, db.Create(&lesson).Error)

	item := models.Item{ID: "item-a", Kind: models.ItemKindExam, Title: "Final", QuestionPoolID: 1}
	require.NoError(t, db.Create(&item).Error)
	require.NoError(t, db.Create(&models.Assessment{CourseID: "course-1", ItemID: "item-a", Weight: 60, StartOffset: 7}).Error)

	policy, err := repo.GetPolicy(ctx, "course-1")
	require.NoError(t, err)
	require.Equal(t, 80, policy.AssessmentWeight)

	found, err := repo.GetLessonByMedia(ctx, "course-1", "media-1")
	require.NoError(t, err)
	require.Equal(t, lesson.ID, found.ID)

	_, err = repo.GetLessonByMedia(ctx, "course-1", "media-9")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assessment, err := repo.GetAssessment(ctx, "course-1", "item-a")
	require.NoError(t, err)
	require.Equal(t, 7, assessment.StartOffset)

	assessments, err := repo.ListAssessments(ctx, "course-1")
	require.NoError(t, err)
	require.Len(t, assessments, 1)
	require.NotNil(t, assessments[0].Item)
	require.Equal(t, "Final", assessments[0].Item.Title)

	withLessons, err := repo.GetWithLessons(ctx, "course-1")
	require.NoError(t, err)
	require.Len(t, withLessons.Lessons, 1)
	require.Len(t, withLessons.Lessons[0].Medias, 1)
}

func TestWatchRepositoryUpsertAndPassedList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewWatchRepository(db)
	ctx := context.Background()

	watch := models.Watch{UserID: "learner-1", MediaID: "media-1", Context: "course::c1::1", Rate: 40}
	require.NoError(t, repo.Upsert(ctx, &watch))

	watch.Rate = 90
	watch.Passed = true
	require.NoError(t, repo.Upsert(ctx, &watch))

	require.NoError(t, repo.Upsert(ctx, &models.Watch{UserID: "learner-1", MediaID: "media-2", Context: "course::c1::1", Rate: 10}))
	require.NoError(t, repo.Upsert(ctx, &models.Watch{UserID: "learner-1", MediaID: "media-3", Context: "", Rate: 100, Passed: true}))

	var total int64
	require.NoError(t, db.Model(&models.Watch{}).Count(&total).Error)
	require.Equal(t, int64(3), total, "upsert never duplicates a watch key")

	passed, err := repo.ListPassedMediaIDs(ctx, "learner-1", "course::c1::1")
	require.NoError(t, err)
	require.Equal(t, []string{"media-1"}, passed)
}

func TestAppealRepositoryUniquePerQuestion(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAppealRepository(db)
	ctx := context.Background()

	first := models.Appeal{QuestionID: 1, LearnerID: "learner-1", Explanation: "the key misses a valid proof"}
	require.NoError(t, repo.Create(ctx, &first))

	dup := models.Appeal{QuestionID: 1, LearnerID: "learner-1", Explanation: "again"}
	require.ErrorIs(t, repo.Create(ctx, &dup), gorm.ErrDuplicatedKey)

	other := models.Appeal{QuestionID: 1, LearnerID: "learner-2", Explanation: "same question, other learner"}
	require.NoError(t, repo.Create(ctx, &other))

	appeals, err := repo.ListByQuestions(ctx, "learner-1", []uint{1, 2})
	require.NoError(t, err)
	require.Len(t, appeals, 1)
	require.Equal(t, first.ID, appeals[0].ID)
}

func TestVerificationRepositoryFreshness(t *testing.T) {
	db := setupTestDB(t)
	repo := NewVerificationRepository(db)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.Create(&models.VerificationLog{UserID: "learner-1", ConsumerID: "exam-1", Success: true, CreatedAt: now.Add(-2 * time.Hour)}).Error)
	require.NoError(t, db.Create(&models.VerificationLog{UserID: "learner-1", ConsumerID: "exam-1", Success: false, CreatedAt: now}).Error)

	fresh, err := repo.HasFreshSuccess(ctx, "learner-1", "exam-1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.False(t, fresh)

	require.NoError(t, repo.Create(ctx, &models.VerificationLog{UserID: "learner-1", ConsumerID: "exam-1", Success: true}))
	fresh, err = repo.HasFreshSuccess(ctx, "learner-1", "exam-1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, fresh)
}

func TestQuestionRepositoryLoadsSolutions(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuestionRepository(db)
	ctx := context.Background()

	pool := models.QuestionPool{Title: "Midterm pool"}
	require.NoError(t, db.Create(&pool).Error)
	q1 := models.Question{QuestionPoolID: pool.ID, Format: models.QuestionFormatSingleChoice, Prompt: "pick one", Point: 1, Options: datatypes.JSONSlice[string]{"a", "b"}}
	q2 := models.Question{QuestionPoolID: pool.ID, Format: models.QuestionFormatEssay, Prompt: "argue", Point: 2}
	require.NoError(t, db.Create(&q1).Error)
	require.NoError(t, db.Create(&q2).Error)
	require.NoError(t, db.Create(&models.Solution{QuestionID: q1.ID, CorrectAnswers: datatypes.JSONSlice[string]{"b"}}).Error)

	questions, err := repo.ListByPool(ctx, pool.ID)
	require.NoError(t, err)
	require.Len(t, questions, 2)
	require.NotNil(t, questions[0].Solution)
	require.True(t, questions[0].Solution.IsObjective())
	require.Nil(t, questions[1].Solution)

	byID, err := repo.GetByIDs(ctx, []uint{q2.ID})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	require.Equal(t, "argue", byID[0].Prompt)
}
