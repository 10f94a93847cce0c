package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

// CapacityLedger tracks section occupancy. Reserve and release for the same section are serialised;
// different sections never block each other.
type CapacityLedger interface {
	TryReserve(ctx context.Context, sectionID, studentID string, studentType models.StudentType) (models.ReserveOutcome, error)
	// Release returns the student's seat unless the student still holds an ACTIVE record in the
	// section. It reports whether a seat was returned.
	Release(ctx context.Context, sectionID, studentID string) (bool, error)
	Capacity(ctx context.Context, sectionID string) (*models.SectionCapacity, error)
}

type ledgerSectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
}

type ledgerHolderReader interface {
	ListSectionHolders(ctx context.Context, sectionID string) ([]models.SectionHolder, error)
}

type memorySection struct {
	mu      sync.Mutex
	loaded  bool
	section models.Section
	holders map[string]models.StudentType
}

func (s *memorySection) occupancy() models.Occupancy {
	var occ models.Occupancy
	for _, t := range s.holders {
		occ = occ.Add(t, 1)
	}
	return occ
}

// MemoryCapacityLedger keeps occupancy in process, loading each section's holders from storage on
// first use. It is only consistent when a single instance serves allocations.
type MemoryCapacityLedger struct {
	mu       sync.Mutex
	sections map[string]*memorySection
	reader   ledgerSectionReader
	holders  ledgerHolderReader
	defaults models.Quota
	logger   *zap.Logger
}

// NewMemoryCapacityLedger constructs an in-memory ledger.
func NewMemoryCapacityLedger(reader ledgerSectionReader, holders ledgerHolderReader, defaults models.Quota, logger *zap.Logger) *MemoryCapacityLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryCapacityLedger{
		sections: make(map[string]*memorySection),
		reader:   reader,
		holders:  holders,
		defaults: defaults,
		logger:   logger,
	}
}

func (l *MemoryCapacityLedger) entry(sectionID string) *memorySection {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.sections[sectionID]
	if !ok {
		state = &memorySection{}
		l.sections[sectionID] = state
	}
	return state
}

// load must be called with state.mu held.
func (l *MemoryCapacityLedger) load(ctx context.Context, sectionID string, state *memorySection) error {
	if state.loaded {
		return nil
	}
	section, err := l.reader.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	holders, err := l.holders.ListSectionHolders(ctx, sectionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section holders")
	}
	state.section = *section
	state.holders = make(map[string]models.StudentType, len(holders))
	for _, h := range holders {
		state.holders[h.StudentID] = h.StudentType.Canonical()
	}
	state.loaded = true
	l.logger.Debug("capacity ledger section loaded", zap.String("section_id", sectionID), zap.Int("holders", len(holders)))
	return nil
}

// TryReserve takes one seat for the student unless they already hold one or a quota is full.
func (l *MemoryCapacityLedger) TryReserve(ctx context.Context, sectionID, studentID string, studentType models.StudentType) (models.ReserveOutcome, error) {
	studentType = studentType.Canonical()
	state := l.entry(sectionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if err := l.load(ctx, sectionID, state); err != nil {
		return models.ReserveOutcome{}, err
	}
	current := state.occupancy()
	if _, held := state.holders[studentID]; held {
		return models.ReserveOutcome{AlreadyHeld: true, Occupancy: current}, nil
	}
	outcome := models.DecideReservation(state.section.Quota(l.defaults), current, studentType)
	if outcome.Reserved {
		state.holders[studentID] = studentType
	}
	return outcome, nil
}

// Release returns the student's seat. An absent seat, or a student who still holds an ACTIVE
// record in the section, leaves the ledger unchanged.
func (l *MemoryCapacityLedger) Release(ctx context.Context, sectionID, studentID string) (bool, error) {
	state := l.entry(sectionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if err := l.load(ctx, sectionID, state); err != nil {
		return false, err
	}
	if _, held := state.holders[studentID]; !held {
		return false, nil
	}
	holders, err := l.holders.ListSectionHolders(ctx, sectionID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section holders")
	}
	for _, h := range holders {
		if h.StudentID == studentID {
			l.logger.Debug("seat kept, student still enrolled", zap.String("section_id", sectionID), zap.String("student_id", studentID))
			return false, nil
		}
	}
	delete(state.holders, studentID)
	return true, nil
}

// Capacity reports the live occupancy against resolved quotas.
func (l *MemoryCapacityLedger) Capacity(ctx context.Context, sectionID string) (*models.SectionCapacity, error) {
	state := l.entry(sectionID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if err := l.load(ctx, sectionID, state); err != nil {
		return nil, err
	}
	return models.NewSectionCapacity(state.section, state.section.Quota(l.defaults), state.occupancy()), nil
}
