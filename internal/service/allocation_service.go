package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/dto"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/repository"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
	"github.com/noah-isme/advising-api/pkg/logger"
)

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListSlots(ctx context.Context, sectionID string) ([]models.SectionSlot, error)
	ListCommittedSlots(ctx context.Context, studentID string) ([]models.SectionSlot, error)
}

type enrollmentStore interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentRecord, error)
	ListActiveByStudent(ctx context.Context, studentID string) ([]models.EnrollmentRecord, error)
	CreateBatch(ctx context.Context, records []models.EnrollmentRecord, grades []models.GradeRecord) error
	Cancel(ctx context.Context, id string) (*models.EnrollmentRecord, int, error)
}

type releaseScheduler interface {
	Schedule(sectionID, studentID string) error
}

// AllocationService places students into sections. Every request either commits all of its
// enrollment records or leaves storage and the capacity ledger untouched.
type AllocationService struct {
	students    studentReader
	sections    sectionReader
	catalog     catalogReader
	grades      gradeLedgerReader
	enrollments enrollmentStore
	ledger      CapacityLedger
	evaluator   *EligibilityEvaluator
	cache       *CacheService
	metrics     *MetricsService
	releases    releaseScheduler
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// AllocationDeps groups the collaborators of AllocationService.
type AllocationDeps struct {
	Students    studentReader
	Sections    sectionReader
	Catalog     catalogReader
	Grades      gradeLedgerReader
	Enrollments enrollmentStore
	Ledger      CapacityLedger
	Evaluator   *EligibilityEvaluator
	Cache       *CacheService
	Metrics     *MetricsService
	// Releases takes over seat releases that fail inline. Optional.
	Releases releaseScheduler
}

// NewAllocationService constructs an AllocationService.
func NewAllocationService(deps AllocationDeps, validate *validator.Validate, log *zap.Logger) *AllocationService {
	if deps.Evaluator == nil {
		deps.Evaluator = NewEligibilityEvaluator(0, nil)
	}
	if validate == nil {
		validate = validator.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AllocationService{
		students:    deps.Students,
		sections:    deps.Sections,
		catalog:     deps.Catalog,
		grades:      deps.Grades,
		enrollments: deps.Enrollments,
		ledger:      deps.Ledger,
		evaluator:   deps.Evaluator,
		cache:       deps.Cache,
		metrics:     deps.Metrics,
		releases:    deps.Releases,
		validator:   validate,
		logger:      log,
		now:         time.Now,
	}
}

// allocationSnapshot is everything the decision steps read, loaded before any lock is taken.
type allocationSnapshot struct {
	student   models.Student
	section   models.Section
	term      models.Term
	codes     []string
	subjects  []models.Subject
	candidate []models.SlotRef
	committed []models.SlotRef
	grades    []models.GradeRecord
}

// Allocate runs eligibility, conflict and capacity checks in that order and commits the batch.
// Business rejections are returned as a REJECTED result with a nil error.
func (s *AllocationService) Allocate(ctx context.Context, req dto.AllocateRequest) (*models.AllocationResult, error) {
	start := time.Now()
	result, err := s.allocate(ctx, req)
	s.metrics.RecordAllocation(result, err, time.Since(start))
	return result, err
}

func (s *AllocationService) allocate(ctx context.Context, req dto.AllocateRequest) (*models.AllocationResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}
	log := logger.FromContext(ctx, s.logger).With(zap.String("student_id", req.StudentID), zap.String("section_id", req.SectionID))

	snap, err := s.loadSnapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	result := &models.AllocationResult{
		StudentID:   snap.student.ID,
		SectionID:   snap.section.ID,
		SectionCode: snap.section.Code,
		Term:        snap.term,
	}

	if blocked := s.blockedSubjects(snap); len(blocked) > 0 {
		log.Info("allocation rejected", zap.String("outcome", string(models.RejectionEligibilityBlocked)), zap.Int("blocked", len(blocked)))
		return reject(result, models.Rejection{
			Reason:  models.RejectionEligibilityBlocked,
			Message: blockedMessage(blocked),
			Blocked: blocked,
		}), nil
	}

	if conflicts := DetectConflicts(snap.candidate, snap.committed); len(conflicts) > 0 {
		log.Info("allocation rejected", zap.String("outcome", string(models.RejectionScheduleConflict)), zap.Int("conflicts", len(conflicts)))
		return reject(result, models.Rejection{
			Reason:    models.RejectionScheduleConflict,
			Message:   conflictMessage(conflicts),
			Conflicts: conflicts,
		}), nil
	}

	outcome, err := s.ledger.TryReserve(ctx, snap.section.ID, snap.student.ID, snap.student.StudentType)
	if err != nil {
		return nil, mapLookupError(err, "section not found", "failed to reserve seat")
	}
	s.metrics.RecordReservation(outcome)
	if !outcome.Reserved && !outcome.AlreadyHeld {
		log.Info("allocation rejected", zap.String("outcome", string(models.RejectionCapacityExceeded)), zap.String("kind", string(outcome.Full)))
		return reject(result, models.Rejection{
			Reason:       models.RejectionCapacityExceeded,
			Message:      fmt.Sprintf("section %s has no %s seat left", snap.section.Code, strings.ToLower(string(outcome.Full))),
			CapacityKind: outcome.Full,
		}), nil
	}

	records, grades := s.buildRecords(snap)
	if err := ctx.Err(); err != nil {
		return nil, s.compensate(ctx, log, snap, outcome, err)
	}
	if err := s.enrollments.CreateBatch(ctx, records, grades); err != nil {
		return nil, s.compensate(ctx, log, snap, outcome, err)
	}

	if outcome.AlreadyHeld {
		confirmed, err := s.confirmSeat(ctx, log, snap, records)
		if err != nil {
			return nil, err
		}
		if confirmed.Full != "" {
			s.cache.InvalidateStudent(ctx, snap.student.ID)
			log.Info("allocation rejected", zap.String("outcome", string(models.RejectionCapacityExceeded)), zap.String("kind", string(confirmed.Full)))
			return reject(result, models.Rejection{
				Reason:       models.RejectionCapacityExceeded,
				Message:      fmt.Sprintf("section %s has no %s seat left", snap.section.Code, strings.ToLower(string(confirmed.Full))),
				CapacityKind: confirmed.Full,
			}), nil
		}
		outcome.Reserved = confirmed.Reserved
	}

	s.cache.InvalidateStudent(ctx, snap.student.ID)
	log.Info("allocation committed", zap.String("outcome", string(models.AllocationStatusAllocated)), zap.Strings("subject_codes", snap.codes), zap.Bool("seat_reserved", outcome.Reserved))

	result.Status = models.AllocationStatusAllocated
	result.SeatReserved = outcome.Reserved
	result.Enrollments = records
	result.Grades = grades
	return result, nil
}

// compensate returns a seat reserved by this call. The release runs on a context detached from
// the request so a cancelled caller still gets its seat returned.
func (s *AllocationService) compensate(ctx context.Context, log *zap.Logger, snap *allocationSnapshot, outcome models.ReserveOutcome, cause error) error {
	released := false
	if outcome.Reserved {
		var err error
		released, err = s.ledger.Release(context.WithoutCancel(ctx), snap.section.ID, snap.student.ID)
		switch {
		case err != nil:
			log.Error("compensating release failed", zap.Error(err), zap.NamedError("cause", cause))
			s.deferRelease(log, snap.section.ID, snap.student.ID)
		case released:
			s.metrics.RecordCompensation()
		}
	}
	if errors.Is(cause, repository.ErrDuplicateActiveEnrollment) {
		return appErrors.Wrap(cause, appErrors.ErrAlreadyEnrolled.Code, appErrors.ErrAlreadyEnrolled.Status, appErrors.ErrAlreadyEnrolled.Message)
	}
	log.Error("allocation failed", zap.Error(cause), zap.Bool("seat_released", released))
	return appErrors.Wrap(cause, appErrors.ErrAllocationFailed.Code, appErrors.ErrAllocationFailed.Status, appErrors.ErrAllocationFailed.Message)
}

// confirmSeat re-reads a reused seat once the batch is committed. A cancellation that ran between
// the reservation and the commit may have returned it; the seat is then taken again. When the
// section filled up meanwhile, or the ledger cannot answer, the new records are cancelled.
func (s *AllocationService) confirmSeat(ctx context.Context, log *zap.Logger, snap *allocationSnapshot, records []models.EnrollmentRecord) (models.ReserveOutcome, error) {
	detached := context.WithoutCancel(ctx)
	outcome, err := s.ledger.TryReserve(detached, snap.section.ID, snap.student.ID, snap.student.StudentType)
	if err == nil && (outcome.Reserved || outcome.AlreadyHeld) {
		if outcome.Reserved {
			s.metrics.RecordReservation(outcome)
			log.Warn("seat taken again after a concurrent release")
		}
		return outcome, nil
	}

	for _, rec := range records {
		if _, _, cancelErr := s.enrollments.Cancel(detached, rec.ID); cancelErr != nil {
			log.Error("cancelling unseated enrollment failed", zap.String("enrollment_id", rec.ID), zap.Error(cancelErr))
		}
	}
	if err != nil {
		s.deferRelease(log, snap.section.ID, snap.student.ID)
		log.Error("seat confirmation failed", zap.Error(err))
		return outcome, appErrors.Wrap(err, appErrors.ErrAllocationFailed.Code, appErrors.ErrAllocationFailed.Status, appErrors.ErrAllocationFailed.Message)
	}
	s.metrics.RecordReservation(outcome)
	return outcome, nil
}

func (s *AllocationService) deferRelease(log *zap.Logger, sectionID, studentID string) {
	if s.releases == nil {
		return
	}
	if err := s.releases.Schedule(sectionID, studentID); err != nil {
		log.Error("could not schedule seat release", zap.Error(err))
	}
}

func (s *AllocationService) loadSnapshot(ctx context.Context, req dto.AllocateRequest) (*allocationSnapshot, error) {
	codes, err := normalizeCodes(req.SubjectCodes)
	if err != nil {
		return nil, err
	}
	student, err := findStudent(ctx, s.students, req.StudentID)
	if err != nil {
		return nil, err
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student is not active")
	}
	if !student.StudentType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student type is not recognised")
	}
	section, err := s.sections.FindByID(ctx, req.SectionID)
	if err != nil {
		return nil, mapLookupError(err, "section not found", "failed to load section")
	}
	courses := s.evaluator.Courses()
	if !courses.Equivalent(section.Course, student.Course) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("section %s belongs to program %s", section.Code, section.Course))
	}
	term := section.Term()

	rows, err := s.catalog.FindByCodes(ctx, codes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	subjects, err := resolveSubjects(codes, rows, section.Course, courses)
	if err != nil {
		return nil, err
	}

	rawSlots, err := s.sections.ListSlots(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section schedule")
	}
	sectionSlots, err := ResolveSlots(rawSlots)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "section schedule is malformed")
	}
	if err := ensureOffered(*section, subjects, sectionSlots, courses); err != nil {
		return nil, err
	}

	active, err := s.enrollments.ListActiveByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	if dup := alreadyEnrolled(active, term, codes); len(dup) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrAlreadyEnrolled, "", map[string][]string{"subject_codes": dup})
	}

	rawCommitted, err := s.sections.ListCommittedSlots(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load committed schedule")
	}
	var inTerm []models.SectionSlot
	for _, slot := range rawCommitted {
		if slot.Term().Same(term) {
			inTerm = append(inTerm, slot)
		}
	}
	committed, err := ResolveSlots(inTerm)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "committed schedule is malformed")
	}

	grades, err := s.grades.ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}

	return &allocationSnapshot{
		student:   *student,
		section:   *section,
		term:      term,
		codes:     codes,
		subjects:  subjects,
		candidate: CandidateSlots(sectionSlots, codes),
		committed: committed,
		grades:    grades,
	}, nil
}

func (s *AllocationService) blockedSubjects(snap *allocationSnapshot) []models.Eligibility {
	var blocked []models.Eligibility
	for _, result := range s.evaluator.EvaluateAll(snap.student, snap.subjects, snap.grades) {
		if !result.Eligible {
			blocked = append(blocked, result)
		}
	}
	return blocked
}

func (s *AllocationService) buildRecords(snap *allocationSnapshot) ([]models.EnrollmentRecord, []models.GradeRecord) {
	now := s.now().UTC()
	records := make([]models.EnrollmentRecord, 0, len(snap.subjects))
	grades := make([]models.GradeRecord, 0, len(snap.subjects))
	for _, subject := range snap.subjects {
		enrollmentID := uuid.NewString()
		records = append(records, models.EnrollmentRecord{
			ID:          enrollmentID,
			StudentID:   snap.student.ID,
			SectionID:   snap.section.ID,
			SubjectCode: subject.Code,
			SchoolYear:  snap.section.SchoolYear,
			Semester:    snap.section.Semester,
			StudentType: snap.student.StudentType,
			Status:      models.EnrollmentStatusActive,
			CreatedAt:   now,
		})
		linked := enrollmentID
		grades = append(grades, models.GradeRecord{
			ID:           uuid.NewString(),
			StudentID:    snap.student.ID,
			EnrollmentID: &linked,
			SubjectCode:  subject.Code,
			SubjectName:  subject.Name,
			SchoolYear:   snap.section.SchoolYear,
			Semester:     snap.section.Semester,
			Units:        subject.Units,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return records, grades
}

// Cancel marks an enrollment CANCELLED and returns the seat when it was the student's last ACTIVE
// subject in that section. Students may only cancel their own records.
func (s *AllocationService) Cancel(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*dto.CancelEnrollmentResponse, error) {
	if actor != nil && !actor.Staff() {
		current, err := s.enrollments.FindByID(ctx, enrollmentID)
		if err != nil {
			return nil, mapLookupError(err, "enrollment not found", "failed to load enrollment")
		}
		if current.StudentID != actor.StudentID {
			return nil, appErrors.ErrForbidden
		}
	}

	record, remaining, err := s.enrollments.Cancel(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, repository.ErrEnrollmentNotActive) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "enrollment already cancelled")
		}
		return nil, mapLookupError(err, "enrollment not found", "failed to cancel enrollment")
	}
	log := logger.FromContext(ctx, s.logger).With(zap.String("student_id", record.StudentID), zap.String("section_id", record.SectionID), zap.String("enrollment_id", record.ID))

	released := false
	if remaining == 0 {
		released, err = s.ledger.Release(context.WithoutCancel(ctx), record.SectionID, record.StudentID)
		if err != nil {
			log.Error("seat release after cancellation failed", zap.Error(err))
			s.deferRelease(log, record.SectionID, record.StudentID)
		}
	}
	s.cache.InvalidateStudent(ctx, record.StudentID)
	log.Info("enrollment cancelled", zap.Bool("seat_released", released))

	return &dto.CancelEnrollmentResponse{
		EnrollmentID: record.ID,
		Status:       string(record.Status),
		SeatReleased: released,
	}, nil
}

// StudyLoad lists a student's ACTIVE subjects for a term with their section schedules.
func (s *AllocationService) StudyLoad(ctx context.Context, studentID string, term models.Term) (*models.StudyLoad, error) {
	if strings.TrimSpace(term.SchoolYear) == "" || strings.TrimSpace(term.Semester) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schoolYear and semester are required")
	}
	student, err := findStudent(ctx, s.students, studentID)
	if err != nil {
		return nil, err
	}
	active, err := s.enrollments.ListActiveByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}

	var records []models.EnrollmentRecord
	var codes []string
	for _, rec := range active {
		if rec.Term().Same(term) {
			records = append(records, rec)
			codes = append(codes, rec.SubjectCode)
		}
	}
	load := &models.StudyLoad{Student: *student, Term: term.Normalized(), Entries: []models.StudyLoadEntry{}}
	if len(records) == 0 {
		return load, nil
	}

	rows, err := s.catalog.FindByCodes(ctx, codes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load curriculum")
	}
	courses := s.evaluator.Courses()
	subjects := make(map[string]models.Subject, len(rows))
	for _, row := range rows {
		code := models.NormalizeCode(row.Code)
		if current, ok := subjects[code]; !ok || (!courses.Equivalent(current.Course, student.Course) && courses.Equivalent(row.Course, student.Course)) {
			subjects[code] = row
		}
	}

	sections := make(map[string]*models.Section)
	slots := make(map[string][]models.SectionSlot)
	for _, rec := range records {
		if _, ok := sections[rec.SectionID]; ok {
			continue
		}
		section, err := s.sections.FindByID(ctx, rec.SectionID)
		if err != nil {
			return nil, mapLookupError(err, "section not found", "failed to load section")
		}
		sectionSlots, err := s.sections.ListSlots(ctx, rec.SectionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section schedule")
		}
		sections[rec.SectionID] = section
		slots[rec.SectionID] = sectionSlots
	}

	for _, rec := range records {
		subject := subjects[models.NormalizeCode(rec.SubjectCode)]
		entry := models.StudyLoadEntry{
			EnrollmentID: rec.ID,
			SubjectCode:  rec.SubjectCode,
			SubjectName:  subject.Name,
			Units:        subject.Units,
			SectionID:    rec.SectionID,
			SectionCode:  sections[rec.SectionID].Code,
			Slots:        []models.ScheduleSlot{},
		}
		for _, slot := range slots[rec.SectionID] {
			code := models.NormalizeCode(slot.SubjectCode)
			if code == "" || code == models.NormalizeCode(rec.SubjectCode) {
				entry.Slots = append(entry.Slots, slot.ScheduleSlot)
			}
		}
		load.Entries = append(load.Entries, entry)
		load.TotalUnits += subject.Units
	}
	sort.Slice(load.Entries, func(i, j int) bool { return load.Entries[i].SubjectCode < load.Entries[j].SubjectCode })
	return load, nil
}

// SectionCapacity reports a section's live seat counts.
func (s *AllocationService) SectionCapacity(ctx context.Context, sectionID string) (*models.SectionCapacity, error) {
	capacity, err := s.ledger.Capacity(ctx, sectionID)
	if err != nil {
		return nil, mapLookupError(err, "section not found", "failed to load section capacity")
	}
	return capacity, nil
}

func reject(result *models.AllocationResult, rejection models.Rejection) *models.AllocationResult {
	result.Status = models.AllocationStatusRejected
	result.Rejection = &rejection
	return result
}

func blockedMessage(blocked []models.Eligibility) string {
	parts := make([]string, 0, len(blocked))
	for _, b := range blocked {
		if len(b.Missing) > 0 {
			parts = append(parts, fmt.Sprintf("%s requires %s", b.SubjectCode, strings.Join(b.Missing, ", ")))
			continue
		}
		reasons := make([]string, 0, len(b.Reasons))
		for _, r := range b.Reasons {
			reasons = append(reasons, string(r))
		}
		parts = append(parts, fmt.Sprintf("%s blocked (%s)", b.SubjectCode, strings.Join(reasons, ", ")))
	}
	return strings.Join(parts, "; ")
}

// ensureOffered accepts a subject when the section schedules it explicitly or when the section's
// curriculum block (program, year level, semester) contains it.
func ensureOffered(section models.Section, subjects []models.Subject, slots []models.SlotRef, courses *CourseMatcher) error {
	offered := OfferedCodes(slots)
	var missing []string
	for _, subject := range subjects {
		if _, ok := offered[subject.Code]; ok {
			continue
		}
		inBlock := courses.Equivalent(subject.Course, section.Course) &&
			subject.YearLevel == section.YearLevel &&
			models.NormalizeSemester(subject.Semester) == section.Term().Bucket()
		if !inBlock {
			missing = append(missing, subject.Code)
		}
	}
	if len(missing) > 0 {
		return appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("subject not offered in section %s", section.Code), map[string][]string{"subject_codes": missing})
	}
	return nil
}

func alreadyEnrolled(active []models.EnrollmentRecord, term models.Term, codes []string) []string {
	held := make(map[string]struct{})
	for _, rec := range active {
		if rec.Term().Same(term) {
			held[models.NormalizeCode(rec.SubjectCode)] = struct{}{}
		}
	}
	var dup []string
	for _, code := range codes {
		if _, ok := held[code]; ok {
			dup = append(dup, code)
		}
	}
	return dup
}

func mapLookupError(err error, notFound, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}
