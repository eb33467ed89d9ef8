package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tempo/internal/modules/profile/domain"
	"tempo/internal/modules/profile/dto"
	"tempo/internal/modules/profile/service"
	profileusecase "tempo/internal/modules/profile/usecase"
	"tempo/internal/platform/clock"
	apperrors "tempo/internal/platform/errors"
	"tempo/internal/platform/tx"
)

type fakeID struct {
	mu sync.Mutex
	n  int
}

func (f *fakeID) New() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return "profile-" + string(rune('a'+f.n-1))
}

type memRepo struct {
	mu         sync.Mutex
	profiles   map[string]domain.Profile
	staleSaves int
	saves      int
}

func newMemRepo() *memRepo {
	return &memRepo{profiles: map[string]domain.Profile{}}
}

func (r *memRepo) FindByUserID(_ context.Context, userID string) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return domain.Profile{}, apperrors.ErrProfileNotFound
	}
	return p, nil
}

func (r *memRepo) FindOrCreate(_ context.Context, fresh domain.Profile) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[fresh.UserID]; ok {
		return p, nil
	}
	fresh.Version = 1
	r.profiles[fresh.UserID] = fresh
	return fresh, nil
}

func (r *memRepo) Save(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	r.mu.Lock()
	if r.staleSaves > 0 {
		r.staleSaves--
		r.mu.Unlock()
		return domain.Profile{}, apperrors.ErrStaleVersion
	}
	r.mu.Unlock()
	return r.Update(ctx, p)
}

func (r *memRepo) Update(_ context.Context, p domain.Profile) (domain.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.profiles[p.UserID]
	if !ok {
		return domain.Profile{}, apperrors.ErrProfileNotFound
	}
	if current.Version != p.Version {
		return domain.Profile{}, apperrors.ErrStaleVersion
	}
	p.Version++
	r.profiles[p.UserID] = p
	r.saves++
	return p, nil
}

func (r *memRepo) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[userID]; !ok {
		return apperrors.ErrProfileNotFound
	}
	delete(r.profiles, userID)
	return nil
}

type memMarker struct {
	mu      sync.Mutex
	learned map[string]time.Time
}

func (m *memMarker) MarkLearned(_ context.Context, sessionID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.learned == nil {
		m.learned = map[string]time.Time{}
	}
	if _, ok := m.learned[sessionID]; ok {
		return apperrors.ErrAlreadyLearned
	}
	m.learned[sessionID] = at
	return nil
}

var now = time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC)

func build(repo *memRepo, marker *memMarker, opts service.Options) *profileusecase.Interactor {
	svc := service.NewProfileService(clock.Fixed(now), &fakeID{}, repo, marker, tx.Passthrough{}, opts)
	return profileusecase.NewInteractor(svc, nil).(*profileusecase.Interactor)
}

func finished(id string, start time.Time, length, paused time.Duration, completed, interrupted bool) dto.LearnInput {
	end := start.Add(length)
	return dto.LearnInput{
		SessionID:      id,
		UserID:         "u1",
		Type:           "WORK",
		StartedAt:      start,
		EndedAt:        &end,
		Duration:       length - paused,
		TotalPauseTime: paused,
		WasCompleted:   completed,
		WasInterrupted: interrupted,
	}
}

func TestLearnTwoSessionsAtSameHour(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	uc := build(repo, &memMarker{}, service.Options{})
	ctx := context.Background()
	nine := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	first, err := uc.LearnFromSession(ctx, finished("s1", nine, 30*time.Minute, 0, true, false))
	require.NoError(t, err)
	require.InDelta(t, 0.8, first.Score, 1e-9)
	require.Equal(t, 9, first.Hour)
	require.Equal(t, "Monday", first.Day)

	second, err := uc.LearnFromSession(ctx, finished("s2", nine.Add(7*24*time.Hour+5*time.Minute), 50*time.Minute, 10*time.Minute, true, true))
	require.NoError(t, err)
	require.InDelta(t, 0.4, second.Score, 1e-9)
	require.Equal(t, 2, second.Observations)

	p, err := uc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.InDelta(t, 0.288, p.PeakHours[9], 1e-9)
	require.InDelta(t, 0.288, p.PeakDays[time.Monday], 1e-9)
	require.InDelta(t, 1.0, p.CompletionRate, 1e-9)
	require.InDelta(t, 30*0.7+40*0.3, p.AvgTaskDuration, 1e-9)
	require.Equal(t, 2, p.DurationSamples)
}

func TestLearnUsesConfiguredLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*60*60)
	uc := build(newMemRepo(), &memMarker{}, service.Options{Location: loc})

	out, err := uc.LearnFromSession(context.Background(), finished("s1", time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC), 20*time.Minute, 0, true, false))
	require.NoError(t, err)
	require.Equal(t, 1, out.Hour)
	require.Equal(t, "Monday", out.Day)
}

func TestLearnSkipsBreakDurationsButKeepsPeaks(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	uc := build(repo, &memMarker{}, service.Options{})
	in := finished("s1", time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), 5*time.Minute, 0, true, false)
	in.Type = "SHORT_BREAK"
	in.Category = "rest"

	_, err := uc.LearnFromSession(context.Background(), in)
	require.NoError(t, err)
	p, err := uc.GetProfile(context.Background(), "u1")
	require.NoError(t, err)
	require.Zero(t, p.DurationSamples)
	require.Zero(t, p.CompletionSamples)
	require.InDelta(t, 0.24, p.PeakHours[14], 1e-9)
	require.Equal(t, []dto.CategoryScore{{Category: "rest", Score: 0.8}}, p.Categories)
}

func TestLearnRejectsActiveAndRepeatedSessions(t *testing.T) {
	t.Parallel()
	marker := &memMarker{}
	uc := build(newMemRepo(), marker, service.Options{})
	ctx := context.Background()

	active := finished("s1", now.Add(-time.Hour), time.Minute, 0, false, false)
	active.EndedAt = nil
	_, err := uc.LearnFromSession(ctx, active)
	require.ErrorIs(t, err, apperrors.ErrInvalidInput)

	flagged := finished("s2", now.Add(-time.Hour), time.Minute, 0, false, false)
	flagged.Learned = true
	_, err = uc.LearnFromSession(ctx, flagged)
	require.ErrorIs(t, err, apperrors.ErrAlreadyLearned)

	in := finished("s3", now.Add(-time.Hour), 10*time.Minute, 0, true, false)
	_, err = uc.LearnFromSession(ctx, in)
	require.NoError(t, err)
	_, err = uc.LearnFromSession(ctx, in)
	require.ErrorIs(t, err, apperrors.ErrAlreadyLearned)
	require.Contains(t, marker.learned, "s3")
}

func TestLearnRetriesStaleVersion(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	repo.staleSaves = 2
	uc := build(repo, &memMarker{}, service.Options{MaxRetries: 3})

	out, err := uc.LearnFromSession(context.Background(), finished("s1", now.Add(-time.Hour), 10*time.Minute, 0, true, false))
	require.NoError(t, err)
	require.Equal(t, 3, out.Attempts)
	require.Equal(t, 1, repo.saves)
}

func TestLearnGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	repo.staleSaves = 5
	uc := build(repo, &memMarker{}, service.Options{MaxRetries: 2})

	_, err := uc.LearnFromSession(context.Background(), finished("s1", now.Add(-time.Hour), 10*time.Minute, 0, true, false))
	require.ErrorIs(t, err, apperrors.ErrStaleVersion)
	require.Zero(t, repo.saves)
}

func TestConcurrentLearnKeepsEveryObservation(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	uc := build(repo, &memMarker{}, service.Options{})
	ctx := context.Background()

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := uc.LearnFromSession(ctx, finished("s"+string(rune('a'+i)), now.Add(-time.Hour), 10*time.Minute, 0, true, false))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	p, err := uc.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, n, p.Observations)
	require.Equal(t, n+1, p.Version)
}

func TestOptimalScheduleTopTwoHours(t *testing.T) {
	t.Parallel()
	repo := newMemRepo()
	seed, err := domain.NewProfile("p1", "u1", now)
	require.NoError(t, err)
	seed.PeakHours[9] = 0.9
	seed.PeakHours[14] = 0.5
	seed.PeakHours[20] = 0.85
	repo.profiles["u1"] = seed
	uc := build(repo, &memMarker{}, service.Options{})

	out, err := uc.GetOptimalSchedule(context.Background(), dto.ScheduleInput{UserID: "u1", TopN: 2})
	require.NoError(t, err)
	require.Len(t, out.PeakHours, 2)
	require.Equal(t, []int{9, 20}, []int{out.PeakHours[0].Hour, out.PeakHours[1].Hour})
	require.Len(t, out.PeakDays, 2)
	require.NotEmpty(t, out.Recommendation)
}

func TestRecommendationsWithoutProfile(t *testing.T) {
	t.Parallel()
	uc := build(newMemRepo(), &memMarker{}, service.Options{})
	ctx := context.Background()

	schedule, err := uc.GetOptimalSchedule(ctx, dto.ScheduleInput{UserID: "nobody"})
	require.NoError(t, err)
	require.Len(t, schedule.PeakHours, domain.DefaultTopN)
	require.Contains(t, schedule.Recommendation, "Not enough history")

	prediction, err := uc.PredictTaskDuration(ctx, dto.PredictInput{UserID: "nobody", Title: "Write summary"})
	require.NoError(t, err)
	require.Equal(t, 30, prediction.EstimatedMinutes)
	require.Equal(t, "LOW", prediction.Confidence)

	_, err = uc.GetProfile(ctx, "nobody")
	require.ErrorIs(t, err, apperrors.ErrProfileNotFound)
	require.ErrorIs(t, uc.ResetProfile(ctx, "nobody"), apperrors.ErrNotFound)
}

func TestResetProfileDeletesLearnedState(t *testing.T) {
	t.Parallel()
	uc := build(newMemRepo(), &memMarker{}, service.Options{})
	ctx := context.Background()

	_, err := uc.LearnFromSession(ctx, finished("s1", now.Add(-time.Hour), 10*time.Minute, 0, true, false))
	require.NoError(t, err)
	require.NoError(t, uc.ResetProfile(ctx, "u1"))
	_, err = uc.GetProfile(ctx, "u1")
	require.ErrorIs(t, err, apperrors.ErrProfileNotFound)
}
