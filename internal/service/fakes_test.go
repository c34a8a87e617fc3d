package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/minima-lms/minima-api/internal/models"
	"github.com/minima-lms/minima-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func intPtr(v int) *int { return &v }

func timePtr(t time.Time) *time.Time { return &t }

type fakeItemRepo struct {
	items map[string]models.Item
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{items: map[string]models.Item{}}
}

func (f *fakeItemRepo) GetByID(_ context.Context, id string) (models.Item, error) {
	item, ok := f.items[id]
	if !ok {
		return models.Item{}, gorm.ErrRecordNotFound
	}
	return item, nil
}

func (f *fakeItemRepo) GetByIDs(_ context.Context, ids []string) ([]models.Item, error) {
	var items []models.Item
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeItemRepo) Create(_ context.Context, item *models.Item) error {
	f.items[item.ID] = *item
	return nil
}

type fakeQuestionRepo struct {
	questions []models.Question
}

func (f *fakeQuestionRepo) ListByPool(_ context.Context, poolID uint) ([]models.Question, error) {
	var questions []models.Question
	for _, question := range f.questions {
		if question.QuestionPoolID == poolID {
			questions = append(questions, question)
		}
	}
	return questions, nil
}

func (f *fakeQuestionRepo) GetByIDs(_ context.Context, ids []uint) ([]models.Question, error) {
	wanted := map[uint]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var questions []models.Question
	for _, question := range f.questions {
		if wanted[question.ID] {
			questions = append(questions, question)
		}
	}
	return questions, nil
}

func (f *fakeQuestionRepo) GetByID(_ context.Context, id uint) (models.Question, error) {
	for _, question := range f.questions {
		if question.ID == id {
			return question, nil
		}
	}
	return models.Question{}, gorm.ErrRecordNotFound
}

// fakeAttemptRepo emulates the partial unique index on active attempts and
// hydrates the associations the real repository preloads.
type fakeAttemptRepo struct {
	mu       sync.Mutex
	attempts []models.Attempt
	nextID   uint

	items       *fakeItemRepo
	submissions *fakeSubmissionRepo
	grades      *fakeGradeRepo
	scratch     *fakeScratchRepo
}

func (f *fakeAttemptRepo) Create(_ context.Context, attempt *models.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.attempts {
		if existing.Active &&
			existing.ItemID == attempt.ItemID &&
			existing.LearnerID == attempt.LearnerID &&
			existing.Context == attempt.Context {
			return gorm.ErrDuplicatedKey
		}
	}
	f.nextID++
	attempt.ID = f.nextID
	f.attempts = append(f.attempts, *attempt)
	return nil
}

func (f *fakeAttemptRepo) GetByID(_ context.Context, id uint) (models.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, attempt := range f.attempts {
		if attempt.ID == id {
			return f.hydrate(attempt), nil
		}
	}
	return models.Attempt{}, gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) GetActive(_ context.Context, itemID, learnerID, contextKey string) (models.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, attempt := range f.attempts {
		if attempt.Active && attempt.ItemID == itemID && attempt.LearnerID == learnerID && attempt.Context == contextKey {
			return f.hydrate(attempt), nil
		}
	}
	return models.Attempt{}, gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) CountByKey(_ context.Context, itemID, learnerID, contextKey string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, attempt := range f.attempts {
		if attempt.ItemID == itemID && attempt.LearnerID == learnerID && attempt.Context == contextKey {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttemptRepo) Update(_ context.Context, attempt *models.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.attempts {
		if f.attempts[i].ID == attempt.ID {
			f.attempts[i] = *attempt
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeAttemptRepo) hydrate(attempt models.Attempt) models.Attempt {
	if f.items != nil {
		if item, ok := f.items.items[attempt.ItemID]; ok {
			attempt.Item = &item
		}
	}
	if f.submissions != nil {
		if submission, ok := f.submissions.byAttempt[attempt.ID]; ok {
			attempt.Submission = &submission
		}
	}
	if f.grades != nil {
		if grade, ok := f.grades.byAttempt[attempt.ID]; ok {
			attempt.Grade = &grade
		}
	}
	if f.scratch != nil {
		if pad, ok := f.scratch.pads[attempt.ID]; ok {
			attempt.ScratchPad = &pad
		}
	}
	return attempt
}

type fakeSubmissionRepo struct {
	byAttempt   map[uint]models.Submission
	attachments []models.SubmissionAttachment
	nextID      uint
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{byAttempt: map[uint]models.Submission{}}
}

func (f *fakeSubmissionRepo) Create(_ context.Context, submission *models.Submission) error {
	if _, ok := f.byAttempt[submission.AttemptID]; ok {
		return gorm.ErrDuplicatedKey
	}
	f.nextID++
	submission.ID = f.nextID
	f.byAttempt[submission.AttemptID] = *submission
	return nil
}

func (f *fakeSubmissionRepo) GetByAttempt(_ context.Context, attemptID uint) (models.Submission, error) {
	submission, ok := f.byAttempt[attemptID]
	if !ok {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	return submission, nil
}

func (f *fakeSubmissionRepo) CreateAttachments(_ context.Context, attachments []models.SubmissionAttachment) error {
	f.attachments = append(f.attachments, attachments...)
	return nil
}

type fakeScratchRepo struct {
	pads   map[uint]models.ScratchPad
	nextID uint
}

func newFakeScratchRepo() *fakeScratchRepo {
	return &fakeScratchRepo{pads: map[uint]models.ScratchPad{}}
}

func (f *fakeScratchRepo) Merge(_ context.Context, attemptID uint, answers map[string]interface{}) error {
	pad, ok := f.pads[attemptID]
	if !ok {
		f.nextID++
		pad = models.ScratchPad{ID: f.nextID, AttemptID: attemptID, Answers: map[string]interface{}{}}
	}
	if pad.Answers == nil {
		pad.Answers = map[string]interface{}{}
	}
	for key, value := range answers {
		pad.Answers[key] = value
	}
	f.pads[attemptID] = pad
	return nil
}

func (f *fakeScratchRepo) GetByAttempt(_ context.Context, attemptID uint) (models.ScratchPad, error) {
	pad, ok := f.pads[attemptID]
	if !ok {
		return models.ScratchPad{}, gorm.ErrRecordNotFound
	}
	return pad, nil
}

type fakeGradeRepo struct {
	byAttempt      map[uint]models.Grade
	confirmedByKey map[string]models.Grade
	stats          repository.ScoreStats
	statsCalls     int
	nextID         uint
}

func newFakeGradeRepo() *fakeGradeRepo {
	return &fakeGradeRepo{
		byAttempt:      map[uint]models.Grade{},
		confirmedByKey: map[string]models.Grade{},
	}
}

func gradeKey(itemID, learnerID, contextKey string) string {
	return itemID + "|" + learnerID + "|" + contextKey
}

func (f *fakeGradeRepo) Save(_ context.Context, grade *models.Grade) error {
	if grade.ConfirmedAt != nil && grade.CompletedAt == nil {
		return models.ErrGradeNotCompleted
	}
	if grade.ID == 0 {
		f.nextID++
		grade.ID = f.nextID
	}
	f.byAttempt[grade.AttemptID] = *grade
	return nil
}

func (f *fakeGradeRepo) GetByAttempt(_ context.Context, attemptID uint) (models.Grade, error) {
	grade, ok := f.byAttempt[attemptID]
	if !ok {
		return models.Grade{}, gorm.ErrRecordNotFound
	}
	return grade, nil
}

func (f *fakeGradeRepo) GetConfirmedByKey(_ context.Context, itemID, learnerID, contextKey string) (models.Grade, error) {
	grade, ok := f.confirmedByKey[gradeKey(itemID, learnerID, contextKey)]
	if !ok {
		return models.Grade{}, gorm.ErrRecordNotFound
	}
	return grade, nil
}

func (f *fakeGradeRepo) Stats(_ context.Context, _ string) (repository.ScoreStats, error) {
	f.statsCalls++
	return f.stats, nil
}

type fakeAppealRepo struct {
	appeals []models.Appeal
	nextID  uint
}

func (f *fakeAppealRepo) Create(_ context.Context, appeal *models.Appeal) error {
	for _, existing := range f.appeals {
		if existing.QuestionID == appeal.QuestionID && existing.LearnerID == appeal.LearnerID {
			return gorm.ErrDuplicatedKey
		}
	}
	f.nextID++
	appeal.ID = f.nextID
	f.appeals = append(f.appeals, *appeal)
	return nil
}

func (f *fakeAppealRepo) ListByQuestions(_ context.Context, learnerID string, questionIDs []uint) ([]models.Appeal, error) {
	wanted := map[uint]bool{}
	for _, id := range questionIDs {
		wanted[id] = true
	}
	var appeals []models.Appeal
	for _, appeal := range f.appeals {
		if appeal.LearnerID == learnerID && wanted[appeal.QuestionID] {
			appeals = append(appeals, appeal)
		}
	}
	return appeals, nil
}

type fakeEngagementRepo struct {
	engagements []models.Engagement
	nextID      uint
	gradebooks  *fakeGradebookRepo
}

func (f *fakeEngagementRepo) Create(_ context.Context, engagement *models.Engagement) error {
	for _, existing := range f.engagements {
		if existing.Active && existing.CourseID == engagement.CourseID && existing.LearnerID == engagement.LearnerID {
			return gorm.ErrDuplicatedKey
		}
	}
	f.nextID++
	engagement.ID = f.nextID
	f.engagements = append(f.engagements, *engagement)
	return nil
}

func (f *fakeEngagementRepo) GetActive(_ context.Context, courseID, learnerID string) (models.Engagement, error) {
	for _, engagement := range f.engagements {
		if engagement.Active && engagement.CourseID == courseID && engagement.LearnerID == learnerID {
			if f.gradebooks != nil {
				if gradebook, ok := f.gradebooks.byEngagement[engagement.ID]; ok {
					engagement.Gradebook = &gradebook
				}
			}
			return engagement, nil
		}
	}
	return models.Engagement{}, gorm.ErrRecordNotFound
}

func (f *fakeEngagementRepo) Update(_ context.Context, engagement *models.Engagement) error {
	for i := range f.engagements {
		if f.engagements[i].ID == engagement.ID {
			f.engagements[i] = *engagement
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeGradebookRepo struct {
	byEngagement map[uint]models.Gradebook
	nextID       uint
}

func newFakeGradebookRepo() *fakeGradebookRepo {
	return &fakeGradebookRepo{byEngagement: map[uint]models.Gradebook{}}
}

func (f *fakeGradebookRepo) Upsert(_ context.Context, gradebook *models.Gradebook) error {
	if existing, ok := f.byEngagement[gradebook.EngagementID]; ok {
		gradebook.ID = existing.ID
		gradebook.ConfirmedAt = existing.ConfirmedAt
		gradebook.CreatedAt = existing.CreatedAt
	} else {
		f.nextID++
		gradebook.ID = f.nextID
	}
	f.byEngagement[gradebook.EngagementID] = *gradebook
	return nil
}

func (f *fakeGradebookRepo) Confirm(_ context.Context, engagementID uint, confirmedAt time.Time, graderID string) error {
	gradebook, ok := f.byEngagement[engagementID]
	if !ok || gradebook.ConfirmedAt != nil {
		return gorm.ErrRecordNotFound
	}
	gradebook.ConfirmedAt = &confirmedAt
	gradebook.GraderID = &graderID
	f.byEngagement[engagementID] = gradebook
	return nil
}

func (f *fakeGradebookRepo) GetByEngagement(_ context.Context, engagementID uint) (models.Gradebook, error) {
	gradebook, ok := f.byEngagement[engagementID]
	if !ok {
		return models.Gradebook{}, gorm.ErrRecordNotFound
	}
	return gradebook, nil
}

type fakeWatchRepo struct {
	passed map[string][]string
}

func (f *fakeWatchRepo) ListPassedMediaIDs(_ context.Context, userID, contextKey string) ([]string, error) {
	return f.passed[userID+"|"+contextKey], nil
}

func (f *fakeWatchRepo) Upsert(_ context.Context, _ *models.Watch) error {
	return nil
}

type fakeVerificationRepo struct {
	logs []models.VerificationLog
}

func (f *fakeVerificationRepo) HasFreshSuccess(_ context.Context, userID, consumerID string, since time.Time) (bool, error) {
	for _, log := range f.logs {
		if log.UserID == userID && log.ConsumerID == consumerID && log.Success && !log.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeVerificationRepo) Create(_ context.Context, log *models.VerificationLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	f.logs = append(f.logs, *log)
	return nil
}

type fakeEnrollmentRepo struct {
	enrollments []models.Enrollment
	nextID      uint
}

func (f *fakeEnrollmentRepo) GetActive(_ context.Context, userID, contentID string) (models.Enrollment, error) {
	for _, enrollment := range f.enrollments {
		if enrollment.Active && enrollment.UserID == userID && enrollment.ContentID == contentID {
			return enrollment, nil
		}
	}
	return models.Enrollment{}, gorm.ErrRecordNotFound
}

func (f *fakeEnrollmentRepo) Create(_ context.Context, enrollment *models.Enrollment) error {
	for _, existing := range f.enrollments {
		if existing.Active && existing.UserID == enrollment.UserID && existing.ContentID == enrollment.ContentID {
			return gorm.ErrDuplicatedKey
		}
	}
	f.nextID++
	enrollment.ID = f.nextID
	f.enrollments = append(f.enrollments, *enrollment)
	return nil
}

func (f *fakeEnrollmentRepo) Deactivate(_ context.Context, id uint, userID string) error {
	for i := range f.enrollments {
		if f.enrollments[i].ID == id && f.enrollments[i].UserID == userID && f.enrollments[i].Active {
			f.enrollments[i].Active = false
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakePublicAccessRepo struct {
	access map[string]models.PublicAccess
}

func (f *fakePublicAccessRepo) GetCurrent(_ context.Context, mediaID string, now time.Time) (models.PublicAccess, error) {
	access, ok := f.access[mediaID]
	if !ok || now.Before(access.Start) || now.After(access.Archive) {
		return models.PublicAccess{}, gorm.ErrRecordNotFound
	}
	return access, nil
}

type fakeCourseRepo struct {
	courses     map[string]models.Course
	policies    map[string]models.GradingPolicy
	assessments map[string][]models.Assessment
	lessons     map[string][]models.Lesson
}

func newFakeCourseRepo() *fakeCourseRepo {
	return &fakeCourseRepo{
		courses:     map[string]models.Course{},
		policies:    map[string]models.GradingPolicy{},
		assessments: map[string][]models.Assessment{},
		lessons:     map[string][]models.Lesson{},
	}
}

func (f *fakeCourseRepo) GetByID(_ context.Context, id string) (models.Course, error) {
	course, ok := f.courses[id]
	if !ok {
		return models.Course{}, gorm.ErrRecordNotFound
	}
	return course, nil
}

func (f *fakeCourseRepo) GetWithLessons(_ context.Context, id string) (models.Course, error) {
	course, ok := f.courses[id]
	if !ok {
		return models.Course{}, gorm.ErrRecordNotFound
	}
	course.Lessons = f.lessons[id]
	return course, nil
}

func (f *fakeCourseRepo) GetPolicy(_ context.Context, courseID string) (models.GradingPolicy, error) {
	policy, ok := f.policies[courseID]
	if !ok {
		return models.GradingPolicy{}, gorm.ErrRecordNotFound
	}
	return policy, nil
}

func (f *fakeCourseRepo) ListAssessments(_ context.Context, courseID string) ([]models.Assessment, error) {
	return f.assessments[courseID], nil
}

func (f *fakeCourseRepo) GetAssessment(_ context.Context, courseID, itemID string) (models.Assessment, error) {
	for _, assessment := range f.assessments[courseID] {
		if assessment.ItemID == itemID {
			return assessment, nil
		}
	}
	return models.Assessment{}, gorm.ErrRecordNotFound
}

func (f *fakeCourseRepo) GetLessonByMedia(_ context.Context, courseID, mediaID string) (models.Lesson, error) {
	for _, lesson := range f.lessons[courseID] {
		for _, media := range lesson.Medias {
			if media.ID == mediaID {
				return lesson, nil
			}
		}
	}
	return models.Lesson{}, gorm.ErrRecordNotFound
}

func (f *fakeCourseRepo) Create(_ context.Context, course *models.Course) error {
	f.courses[course.ID] = *course
	return nil
}

type publishedEvent struct {
	subject string
	payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(subject string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subject, payload: payload})
}

func (p *fakePublisher) subjects() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	subjects := make([]string, 0, len(p.events))
	for _, event := range p.events {
		subjects = append(subjects, event.subject)
	}
	return subjects
}
