package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type catalogReader interface {
	ListByScope(ctx context.Context, courses []string, yearLevel int, semester string) ([]models.Subject, error)
	FindByCodes(ctx context.Context, codes []string) ([]models.Subject, error)
}

type gradeLedgerReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.GradeRecord, error)
}

// AdvisingService answers read-only advising questions: which subjects a student may take and how
// their grades average out.
type AdvisingService struct {
	students  studentReader
	catalog   catalogReader
	grades    gradeLedgerReader
	evaluator *EligibilityEvaluator
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdvisingService constructs an AdvisingService.
func NewAdvisingService(students studentReader, catalog catalogReader, grades gradeLedgerReader, evaluator *EligibilityEvaluator, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AdvisingService {
	if evaluator == nil {
		evaluator = NewEligibilityEvaluator(0, nil)
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdvisingService{
		students:  students,
		catalog:   catalog,
		grades:    grades,
		evaluator: evaluator,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// EligibleSubjects evaluates the catalog rows of the student's program and year level. A blank
// semester lists every semester of the year level.
func (s *AdvisingService) EligibleSubjects(ctx context.Context, studentID string, term models.Term) ([]models.SubjectEligibility, error) {
	key := EligibilityKey(studentID, term)
	var cached []models.SubjectEligibility
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.catalog.ListByScope(ctx, s.evaluator.Courses().Aliases(student.Course), student.YearLevel, term.Semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	grades, err := s.loadGrades(ctx, studentID)
	if err != nil {
		return nil, err
	}

	results := s.evaluator.EvaluateAll(*student, subjects, grades)
	items := make([]models.SubjectEligibility, len(subjects))
	for i := range subjects {
		items[i] = models.SubjectEligibility{Subject: subjects[i], Eligibility: results[i]}
	}
	s.cache.Set(ctx, key, items, 0)
	return items, nil
}

// CheckSubjects evaluates specific subject codes for a student.
func (s *AdvisingService) CheckSubjects(ctx context.Context, studentID string, req dto.CheckEligibilityRequest) ([]models.Eligibility, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid eligibility payload")
	}
	codes, err := normalizeCodes(req.SubjectCodes)
	if err != nil {
		return nil, err
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.catalog.FindByCodes(ctx, codes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	subjects, err := resolveSubjects(codes, rows, student.Course, s.evaluator.Courses())
	if err != nil {
		return nil, err
	}
	grades, err := s.loadGrades(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.evaluator.EvaluateAll(*student, subjects, grades), nil
}

// Gwa computes the student's GWA for the requested scope.
func (s *AdvisingService) Gwa(ctx context.Context, studentID string, scope models.GwaScope) (*models.GwaResult, error) {
	if !scope.Cumulative && strings.TrimSpace(scope.Term.SchoolYear) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolYear is required for term scope")
	}
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	grades, err := s.loadGrades(ctx, studentID)
	if err != nil {
		return nil, err
	}
	result := ComputeGwa(grades, scope)
	return &result, nil
}

// GradeReport lists grades per term with term and cumulative GWA.
func (s *AdvisingService) GradeReport(ctx context.Context, studentID string) (*models.GradeReport, error) {
	key := GradeReportKey(studentID)
	var cached models.GradeReport
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	if _, err := s.loadStudent(ctx, studentID); err != nil {
		return nil, err
	}
	grades, err := s.loadGrades(ctx, studentID)
	if err != nil {
		return nil, err
	}
	report := BuildGradeReport(studentID, grades)
	s.cache.Set(ctx, key, report, 0)
	return &report, nil
}

func (s *AdvisingService) loadStudent(ctx context.Context, id string) (*models.Student, error) {
	return findStudent(ctx, s.students, id)
}

func (s *AdvisingService) loadGrades(ctx context.Context, studentID string) ([]models.GradeRecord, error) {
	grades, err := s.grades.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}
	return grades, nil
}

func findStudent(ctx context.Context, students studentReader, id string) (*models.Student, error) {
	student, err := students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	student.StudentType = student.StudentType.Canonical()
	return student, nil
}

// normalizeCodes uppercases codes and rejects duplicates after normalisation.
func normalizeCodes(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	codes := make([]string, 0, len(raw))
	for _, c := range raw {
		code := models.NormalizeCode(c)
		if code == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "subject code must not be blank")
		}
		if _, dup := seen[code]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate subject code "+code)
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

// resolveSubjects picks one catalog row per code, preferring rows of the given program. Unknown
// codes are reported together.
func resolveSubjects(codes []string, rows []models.Subject, course string, courses *CourseMatcher) ([]models.Subject, error) {
	byCode := make(map[string]models.Subject, len(rows))
	for _, row := range rows {
		code := models.NormalizeCode(row.Code)
		current, exists := byCode[code]
		if !exists || (!courses.Equivalent(current.Course, course) && courses.Equivalent(row.Course, course)) {
			byCode[code] = row
		}
	}
	subjects := make([]models.Subject, 0, len(codes))
	var unknown []string
	for _, code := range codes {
		subject, ok := byCode[code]
		if !ok {
			unknown = append(unknown, code)
			continue
		}
		subject.Code = code
		subjects = append(subjects, subject)
	}
	if len(unknown) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrNotFound, "subject not found in catalog", map[string][]string{"subject_codes": unknown})
	}
	return subjects, nil
}
