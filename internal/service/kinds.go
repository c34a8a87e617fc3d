package service

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"mime/multipart"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/minima-lms/minima-api/internal/dto"
	"github.com/minima-lms/minima-api/internal/models"
)

// kindCapability is the per-kind behaviour table. All item kinds share one
// attempt lifecycle; only content composition, submission validation and the
// deadline rule differ.
type kindCapability struct {
	hasDeadline     bool
	supportsScratch bool
	selectContent   func(ctx context.Context, s *sessionService, item models.Item) ([]uint, error)
	buildSubmission func(s *sessionService, questions []models.Question, payload dto.SubmitRequest, files []*multipart.FileHeader) (map[string]interface{}, string, []models.SubmissionAttachment, error)
}

var kindCapabilities = map[string]kindCapability{
	models.ItemKindExam: {
		hasDeadline:     true,
		supportsScratch: true,
		selectContent:   composeExamQuestions,
		buildSubmission: buildExamSubmission,
	},
	models.ItemKindAssignment: {
		selectContent:   drawSingleQuestion,
		buildSubmission: buildAssignmentSubmission,
	},
	models.ItemKindDiscussion: {
		selectContent:   drawSingleQuestion,
		buildSubmission: buildDiscussionSubmission,
	},
}

// examAnswersSchema accepts a non-empty object of string answers keyed by
// question id.
var examAnswersSchema = func() *jsonschema.Schema {
	const schema = `{
		"type": "object",
		"minProperties": 1,
		"propertyNames": {"pattern": "^[0-9]+$"},
		"additionalProperties": {"type": "string"}
	}`
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("answers.schema.json", strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("answers.schema.json")
}()

// composeExamQuestions draws the sitting's question set from the pool
// following the composition counts per format. An empty composition takes the
// whole pool.
func composeExamQuestions(ctx context.Context, s *sessionService, item models.Item) ([]uint, error) {
	pool, err := s.questions.ListByPool(ctx, item.QuestionPoolID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoQuestion
	}

	composition := map[string]int{}
	if item.QuestionPool != nil {
		for format, value := range item.QuestionPool.Composition {
			if count, ok := numericValue(value); ok && count > 0 {
				composition[format] = count
			}
		}
	}

	if len(composition) == 0 {
		ids := make([]uint, 0, len(pool))
		for _, question := range pool {
			ids = append(ids, question.ID)
		}
		s.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		return ids, nil
	}

	byFormat := map[string][]uint{}
	for _, question := range pool {
		byFormat[question.Format] = append(byFormat[question.Format], question.ID)
	}

	var ids []uint
	for _, format := range []string{
		models.QuestionFormatSingleChoice,
		models.QuestionFormatTextInput,
		models.QuestionFormatNumberInput,
		models.QuestionFormatEssay,
	} {
		count, ok := composition[format]
		if !ok {
			continue
		}
		candidates := byFormat[format]
		s.rng.Shuffle(len(candidates), func(i, j int) { candidates[i], candidates[j] = candidates[j], candidates[i] })
		if count > len(candidates) {
			count = len(candidates)
		}
		ids = append(ids, candidates[:count]...)
	}
	if len(ids) == 0 {
		return nil, ErrNoQuestion
	}
	return ids, nil
}

// drawSingleQuestion picks one random question; assignment and discussion
// sittings always work on a single prompt.
func drawSingleQuestion(ctx context.Context, s *sessionService, item models.Item) ([]uint, error) {
	pool, err := s.questions.ListByPool(ctx, item.QuestionPoolID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoQuestion
	}
	return []uint{pool[s.rng.Intn(len(pool))].ID}, nil
}

func buildExamSubmission(s *sessionService, questions []models.Question, payload dto.SubmitRequest, _ []*multipart.FileHeader) (map[string]interface{}, string, []models.SubmissionAttachment, error) {
	document := map[string]interface{}{}
	for key, value := range payload.Answers {
		document[key] = value
	}
	if err := examAnswersSchema.Validate(document); err != nil {
		return nil, "", nil, ErrNoAnswers
	}

	// Answers for questions outside the drawn set are discarded.
	drawn := map[string]bool{}
	for _, question := range questions {
		drawn[questionKey(question.ID)] = true
	}
	answers := map[string]interface{}{}
	for key, value := range document {
		if drawn[key] {
			answers[key] = value
		}
	}
	if len(answers) == 0 {
		return nil, "", nil, ErrNoAnswers
	}
	return answers, "", nil, nil
}

func buildAssignmentSubmission(s *sessionService, questions []models.Question, payload dto.SubmitRequest, files []*multipart.FileHeader) (map[string]interface{}, string, []models.SubmissionAttachment, error) {
	if len(questions) == 0 {
		return nil, "", nil, ErrNoQuestion
	}
	question := questions[0]

	attachments, err := validateAttachments(question, files)
	if err != nil {
		return nil, "", nil, err
	}

	sanitized := s.sanitizer.Sanitize(payload.Answer)
	text := strings.TrimSpace(s.stripper.Sanitize(payload.Answer))
	if text == "" && len(attachments) == 0 {
		return nil, "", nil, ErrEmptyAnswer
	}

	answers := map[string]interface{}{questionKey(question.ID): sanitized}
	return answers, text, attachments, nil
}

func buildDiscussionSubmission(s *sessionService, questions []models.Question, payload dto.SubmitRequest, _ []*multipart.FileHeader) (map[string]interface{}, string, []models.SubmissionAttachment, error) {
	if len(questions) == 0 {
		return nil, "", nil, ErrNoQuestion
	}
	question := questions[0]

	sanitized := s.sanitizer.Sanitize(payload.Answer)
	text := strings.TrimSpace(s.stripper.Sanitize(payload.Answer))
	if text == "" {
		return nil, "", nil, ErrEmptyAnswer
	}
	if utf8.RuneCountInString(text) < question.MinCharacters {
		return nil, "", nil, ErrAnswerTooShort
	}

	answers := map[string]interface{}{questionKey(question.ID): sanitized}
	return answers, text, nil, nil
}

// validateAttachments enforces the question's count, size and type
// constraints and returns the metadata rows to persist. The type is detected
// from content, never trusted from the upload headers.
func validateAttachments(question models.Question, files []*multipart.FileHeader) ([]models.SubmissionAttachment, error) {
	if question.AttachmentFileCount == 0 {
		if len(files) > 0 {
			return nil, ErrAttachmentTooMany
		}
		return nil, nil
	}
	if len(files) < question.AttachmentFileCount {
		return nil, ErrAttachmentTooFew
	}
	if len(files) > question.AttachmentFileCount {
		return nil, ErrAttachmentTooMany
	}

	maxSize := int64(question.AttachmentMaxSizeMB) * 1024 * 1024
	attachments := make([]models.SubmissionAttachment, 0, len(files))
	for _, file := range files {
		if maxSize > 0 && file.Size > maxSize {
			return nil, ErrAttachmentTooLarge
		}

		handle, err := file.Open()
		if err != nil {
			return nil, err
		}
		buf := bytes.NewBuffer(nil)
		_, err = io.Copy(buf, io.LimitReader(handle, maxSize+1))
		handle.Close()
		if err != nil {
			return nil, err
		}
		if maxSize > 0 && int64(buf.Len()) > maxSize {
			return nil, ErrAttachmentTooLarge
		}

		mime := mimetype.Detect(buf.Bytes())
		if !typeAllowed(mime, question.AttachmentFileTypes) {
			return nil, ErrAttachmentBadType
		}

		attachments = append(attachments, models.SubmissionAttachment{
			FileName:  file.Filename,
			MimeType:  mime.String(),
			SizeBytes: int64(buf.Len()),
		})
	}
	return attachments, nil
}

// typeAllowed accepts entries given either as a full mime type or a bare
// extension. An empty allow-list accepts anything.
func typeAllowed(mime *mimetype.MIME, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, entry := range allowed {
		entry = strings.TrimSpace(strings.ToLower(entry))
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			if mime.Is(entry) {
				return true
			}
			continue
		}
		if strings.TrimPrefix(mime.Extension(), ".") == strings.TrimPrefix(entry, ".") {
			return true
		}
	}
	return false
}

// rngSource keeps the capability table testable without plumbing a seed
// through every call.
type rngSource interface {
	Shuffle(n int, swap func(i, j int))
	Intn(n int) int
}

var _ rngSource = (*rand.Rand)(nil)

// defaultRNG delegates to the process-wide locked source so concurrent
// sittings can draw safely.
type defaultRNG struct{}

func (defaultRNG) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

func (defaultRNG) Intn(n int) int { return rand.Intn(n) }
