package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/advising-api/internal/models"
	appErrors "github.com/noah-isme/advising-api/pkg/errors"
)

type memoryCacheRepo struct {
	entries  map[string][]byte
	getErr   error
	setErr   error
	patterns []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func TestCacheServiceRoundTripAndInvalidate(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, NewMetricsService(), time.Minute, nil, true)
	ctx := context.Background()
	key := GradeReportKey("stu-1")

	var report models.GradeReport
	assert.False(t, cache.Get(ctx, key, &report))

	cache.Set(ctx, key, models.GradeReport{StudentID: "stu-1"}, 0)
	require.True(t, cache.Get(ctx, key, &report))
	assert.Equal(t, "stu-1", report.StudentID)

	cache.InvalidateStudent(ctx, "stu-1")
	assert.False(t, cache.Get(ctx, key, &report))
	assert.Equal(t, []string{"advising:student:stu-1:*"}, repo.patterns)
}

func TestCacheServiceSwallowsBackendErrors(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("redis down")
	repo.setErr = errors.New("redis down")
	cache := NewCacheService(repo, nil, 0, nil, true)

	var dest models.GradeReport
	assert.False(t, cache.Get(context.Background(), "k", &dest))
	cache.Set(context.Background(), "k", dest, 0)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, 0, nil, false)
	cache.Set(context.Background(), "k", "v", 0)
	assert.Empty(t, repo.entries)
	assert.False(t, cache.Enabled())
}

func TestEligibilityKeyNormalisesTerm(t *testing.T) {
	a := EligibilityKey("stu-1", models.Term{SchoolYear: "2024-2025", Semester: "1st Semester"})
	b := EligibilityKey("stu-1", models.Term{SchoolYear: "2024-2025", Semester: "first"})
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "advising:student:stu-1:"))
}
