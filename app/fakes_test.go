package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"flomentum/domain/baseline"
	"flomentum/domain/biomarker"
	"flomentum/domain/core"
	"flomentum/domain/daily"
	"flomentum/domain/forecast"
	"flomentum/domain/insight"
	"flomentum/domain/measurement"
	"flomentum/domain/profile"
	"flomentum/domain/scoring"
	"flomentum/domain/sleep"
	"flomentum/domain/upload"
	"flomentum/internal/logging"
	"flomentum/ports"
)

func testLogger() zerolog.Logger { return logging.New("test") }

// testCatalog builds a small in-memory catalog: glucose with a unit graph,
// ferritin with sex-specific ranges, and enough plain markers to exercise
// batch paths.
func testCatalog(t *testing.T) *biomarker.Catalog {
	t.Helper()

	low, high := 3.9, 5.5
	female := biomarker.SexFemale
	male := biomarker.SexMale
	fLow, fHigh := 15.0, 150.0
	mLow, mHigh := 30.0, 300.0

	markers := []biomarker.Biomarker{
		{
			ID:            "glucose",
			CanonicalName: "Glucose",
			CanonicalUnit: "mmol/L",
			Precision:     3,
			Synonyms:      []string{"blood glucose", "glu"},
			Conversions: []biomarker.UnitConversion{
				{FromUnit: "mg/dL", ToUnit: "mmol/L", Kind: biomarker.ConversionLinear, Multiplier: 0.0555},
			},
			ReferenceRanges: []biomarker.ReferenceRange{
				{Unit: "mmol/L", Low: &low, High: &high},
			},
		},
		{
			ID:            "ferritin",
			CanonicalName: "Ferritin",
			CanonicalUnit: "ng/mL",
			Precision:     1,
			ReferenceRanges: []biomarker.ReferenceRange{
				{Unit: "ng/mL", Low: &fLow, High: &fHigh, Context: biomarker.RangeContext{Sex: &female}},
				{Unit: "ng/mL", Low: &mLow, High: &mHigh, Context: biomarker.RangeContext{Sex: &male}},
			},
		},
	}
	for i := 1; i <= 8; i++ {
		markers = append(markers, biomarker.Biomarker{
			ID:            core.BiomarkerID(fmt.Sprintf("marker_%d", i)),
			CanonicalName: fmt.Sprintf("Marker %d", i),
			CanonicalUnit: "U/L",
			Precision:     1,
		})
	}

	snap, err := biomarker.BuildSnapshot(markers, core.NewHash([]byte("test-catalog")))
	require.NoError(t, err)
	return biomarker.NewCatalog(snap)
}

// --- sessions ---

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[core.SessionID]*measurement.Session
	deleted  []core.SessionID
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[core.SessionID]*measurement.Session{}}
}

func (f *fakeSessions) CreateSession(ctx context.Context, s *measurement.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessions) GetSession(ctx context.Context, userID core.UserID, id core.SessionID) (*measurement.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok && s.UserID == userID {
		return s, nil
	}
	return nil, core.NewNotFoundError("test session", id.String())
}

func (f *fakeSessions) DeleteSession(ctx context.Context, userID core.UserID, id core.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

// --- measurements ---

type fakeMeasurements struct {
	mu   sync.Mutex
	rows []*measurement.Measurement
}

func newFakeMeasurements() *fakeMeasurements { return &fakeMeasurements{} }

func (f *fakeMeasurements) CreateMeasurement(ctx context.Context, m *measurement.Measurement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, m)
	return nil
}

func (f *fakeMeasurements) GetMeasurement(ctx context.Context, userID core.UserID, id core.MeasurementID) (*measurement.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.ID == id && m.UserID == userID {
			return m, nil
		}
	}
	return nil, core.NewNotFoundError("measurement", id.String())
}

func (f *fakeMeasurements) UpdateMeasurement(ctx context.Context, m *measurement.Measurement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.rows {
		if existing.ID == m.ID {
			f.rows[i] = m
			return nil
		}
	}
	return core.NewNotFoundError("measurement", m.ID.String())
}

func (f *fakeMeasurements) DeleteMeasurement(ctx context.Context, userID core.UserID, id core.MeasurementID) (int, core.SessionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sessionID core.SessionID
	kept := f.rows[:0]
	for _, m := range f.rows {
		if m.ID == id && m.UserID == userID {
			sessionID = m.SessionID
			continue
		}
		kept = append(kept, m)
	}
	if sessionID == "" {
		return 0, "", core.NewNotFoundError("measurement", id.String())
	}
	f.rows = kept
	remaining := 0
	for _, m := range f.rows {
		if m.SessionID == sessionID {
			remaining++
		}
	}
	return remaining, sessionID, nil
}

func (f *fakeMeasurements) GetHistory(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, limit int) ([]*measurement.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*measurement.Measurement
	for _, m := range f.rows {
		if m.UserID == userID && m.BiomarkerID == biomarkerID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestDate.After(out[j].TestDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMeasurements) GetLatestFor(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID) (*measurement.Measurement, error) {
	history, _ := f.GetHistory(ctx, userID, biomarkerID, 1)
	if len(history) == 0 {
		return nil, nil
	}
	return history[0], nil
}

func (f *fakeMeasurements) FindNearDuplicate(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, value float64, testDate time.Time, epsilon float64) (*measurement.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.UserID == userID && m.BiomarkerID == biomarkerID &&
			m.TestDate.Format("2006-01-02") == testDate.Format("2006-01-02") &&
			measurement.IsDuplicateValue(m.ValueCanonical, value, epsilon) {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMeasurements) ListSessionMeasurements(ctx context.Context, userID core.UserID, sessionID core.SessionID) ([]*measurement.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*measurement.Measurement
	for _, m := range f.rows {
		if m.UserID == userID && m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- jobs ---

type fakeJobs struct {
	mu   sync.Mutex
	jobs map[core.JobID]*upload.Job
}

func newFakeJobs() *fakeJobs { return &fakeJobs{jobs: map[core.JobID]*upload.Job{}} }

func (f *fakeJobs) CreateJob(ctx context.Context, job *upload.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobs) SaveJob(ctx context.Context, job *upload.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobs) GetJob(ctx context.Context, userID core.UserID, jobID core.JobID) (*upload.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobs[jobID]; ok && job.UserID == userID {
		return job, nil
	}
	return nil, core.NewNotFoundError("lab upload job", jobID.String())
}

func (f *fakeJobs) FindByFileHash(ctx context.Context, userID core.UserID, hash core.FileHash) (*upload.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobs {
		if job.UserID == userID && job.FileHash == hash {
			return job, nil
		}
	}
	return nil, nil
}

func (f *fakeJobs) ListPending(ctx context.Context, limit int) ([]*upload.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*upload.Job
	for _, job := range f.jobs {
		if job.Status == upload.StatusPending {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- profiles ---

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[core.UserID]*profile.Profile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[core.UserID]*profile.Profile{}}
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID core.UserID) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return nil, core.NewNotFoundError("profile", userID.String())
}

func (f *fakeProfiles) UpsertProfile(ctx context.Context, p *profile.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[p.UserID] = p
	return nil
}

func (f *fakeProfiles) ListActiveUsers(ctx context.Context, limit int) ([]core.UserID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.UserID
	for id := range f.profiles {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// --- daily rows ---

type fakeDaily struct {
	mu   sync.Mutex
	rows map[core.UserID]map[core.LocalDate]*daily.MetricRow
}

func newFakeDaily() *fakeDaily {
	return &fakeDaily{rows: map[core.UserID]map[core.LocalDate]*daily.MetricRow{}}
}

func (f *fakeDaily) UpsertRow(ctx context.Context, row *daily.MetricRow) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows[row.UserID] == nil {
		f.rows[row.UserID] = map[core.LocalDate]*daily.MetricRow{}
	}
	f.rows[row.UserID][row.LocalDate] = row
	return nil
}

func (f *fakeDaily) GetRow(ctx context.Context, userID core.UserID, date core.LocalDate) (*daily.MetricRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[userID][date]; ok {
		return row, nil
	}
	return nil, nil
}

func (f *fakeDaily) ListRows(ctx context.Context, userID core.UserID, from, to core.LocalDate) ([]*daily.MetricRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*daily.MetricRow
	for date, row := range f.rows[userID] {
		if date >= from && date <= to {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocalDate < out[j].LocalDate })
	return out, nil
}

// --- sleep nights ---

type fakeSleep struct {
	mu     sync.Mutex
	nights map[core.UserID]map[core.LocalDate]*sleep.Night
}

func newFakeSleep() *fakeSleep {
	return &fakeSleep{nights: map[core.UserID]map[core.LocalDate]*sleep.Night{}}
}

func (f *fakeSleep) UpsertNight(ctx context.Context, night *sleep.Night) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.nights[night.UserID] == nil {
		f.nights[night.UserID] = map[core.LocalDate]*sleep.Night{}
	}
	f.nights[night.UserID][night.SleepDate] = night
	return nil
}

func (f *fakeSleep) GetNight(ctx context.Context, userID core.UserID, date core.LocalDate) (*sleep.Night, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if night, ok := f.nights[userID][date]; ok {
		return night, nil
	}
	return nil, nil
}

func (f *fakeSleep) ListRecentNights(ctx context.Context, userID core.UserID, limit int) ([]*sleep.Night, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*sleep.Night
	for _, night := range f.nights[userID] {
		out = append(out, night)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SleepDate > out[j].SleepDate })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- baselines ---

type fakeBaselines struct {
	mu   sync.Mutex
	sets map[core.UserID]baseline.Set
}

func newFakeBaselines() *fakeBaselines {
	return &fakeBaselines{sets: map[core.UserID]baseline.Set{}}
}

func (f *fakeBaselines) SaveSet(ctx context.Context, userID core.UserID, set baseline.Set) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[userID] = set
	return nil
}

func (f *fakeBaselines) GetSet(ctx context.Context, userID core.UserID) (baseline.Set, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sets[userID], nil
}

// --- score cache ---

type fakeScores struct {
	mu     sync.Mutex
	scores map[string]*scoring.Score
}

func newFakeScores() *fakeScores { return &fakeScores{scores: map[string]*scoring.Score{}} }

func scoreFakeKey(userID core.UserID, kind scoring.Kind, date core.LocalDate) string {
	return fmt.Sprintf("%s/%s/%s", userID, kind, date)
}

func (f *fakeScores) GetScore(ctx context.Context, userID core.UserID, kind scoring.Kind, date core.LocalDate) (*scoring.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scores[scoreFakeKey(userID, kind, date)], nil
}

func (f *fakeScores) PutScore(ctx context.Context, userID core.UserID, score *scoring.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[scoreFakeKey(userID, score.Kind, score.LocalDate)] = score
	return nil
}

func (f *fakeScores) InvalidateDay(ctx context.Context, userID core.UserID, date core.LocalDate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, kind := range scoring.Kinds {
		delete(f.scores, scoreFakeKey(userID, kind, date))
	}
	return nil
}

// --- recompute queue ---

type fakeQueue struct {
	mu        sync.Mutex
	events    []forecast.RecomputeEvent
	compacted []core.UserID
}

func newFakeQueue() *fakeQueue { return &fakeQueue{} }

func (f *fakeQueue) Enqueue(ctx context.Context, event forecast.RecomputeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeQueue) FetchReady(ctx context.Context, queuedBefore time.Time, limit int) ([]forecast.RecomputeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []forecast.RecomputeEvent
	for _, ev := range f.events {
		if ev.QueuedAt.Before(queuedBefore) {
			out = append(out, ev)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeQueue) Delete(ctx context.Context, eventIDs []core.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[core.ID]bool, len(eventIDs))
	for _, id := range eventIDs {
		drop[id] = true
	}
	kept := f.events[:0]
	for _, ev := range f.events {
		if !drop[ev.EventID] {
			kept = append(kept, ev)
		}
	}
	f.events = kept
	return nil
}

func (f *fakeQueue) CompactUser(ctx context.Context, userID core.UserID, before time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compacted = append(f.compacted, userID)
	kept := f.events[:0]
	for _, ev := range f.events {
		if ev.UserID == userID && ev.QueuedAt.Before(before) {
			continue
		}
		kept = append(kept, ev)
	}
	f.events = kept
	return nil
}

func (f *fakeQueue) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

// --- forecast repo ---

type fakeForecastRepo struct {
	mu      sync.Mutex
	goals   map[core.UserID]*forecast.Goal
	states  map[core.UserID]*forecast.ModelState
	results map[core.UserID]*forecast.Result
	saves   int
}

func newFakeForecastRepo() *fakeForecastRepo {
	return &fakeForecastRepo{
		goals:   map[core.UserID]*forecast.Goal{},
		states:  map[core.UserID]*forecast.ModelState{},
		results: map[core.UserID]*forecast.Result{},
	}
}

func (f *fakeForecastRepo) GetGoal(ctx context.Context, userID core.UserID) (*forecast.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.goals[userID], nil
}

func (f *fakeForecastRepo) SaveGoal(ctx context.Context, goal *forecast.Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goals[goal.UserID] = goal
	return nil
}

func (f *fakeForecastRepo) GetModelState(ctx context.Context, userID core.UserID) (*forecast.ModelState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[userID], nil
}

func (f *fakeForecastRepo) SaveModelState(ctx context.Context, state *forecast.ModelState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[state.UserID] = state
	return nil
}

func (f *fakeForecastRepo) SaveResult(ctx context.Context, result *forecast.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[result.Summary.UserID] = result
	f.saves++
	return nil
}

func (f *fakeForecastRepo) GetLatestResult(ctx context.Context, userID core.UserID) (*forecast.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.results[userID]; ok {
		return r, nil
	}
	return nil, core.NewNotFoundError("forecast", userID.String())
}

// --- insight repo ---

type fakeInsightRepo struct {
	mu     sync.Mutex
	cards  []*insight.Card
	events []insight.LifeEvent
}

func newFakeInsightRepo() *fakeInsightRepo { return &fakeInsightRepo{} }

func (f *fakeInsightRepo) SaveCard(ctx context.Context, card *insight.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cards = append(f.cards, card)
	return nil
}

func (f *fakeInsightRepo) ListCards(ctx context.Context, userID core.UserID, includeDismissed bool, limit int) ([]*insight.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*insight.Card
	for _, c := range f.cards {
		if c.UserID != userID {
			continue
		}
		if c.IsDismissed && !includeDismissed {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeInsightRepo) DismissCard(ctx context.Context, userID core.UserID, id core.InsightID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cards {
		if c.ID == id && c.UserID == userID {
			c.IsDismissed = true
			return nil
		}
	}
	return core.NewNotFoundError("insight", id.String())
}

func (f *fakeInsightRepo) SignatureExists(ctx context.Context, userID core.UserID, sig core.PatternSignature) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.cards {
		if c.UserID == userID && c.PatternSignature == sig {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeInsightRepo) LogEvent(ctx context.Context, event *insight.LifeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeInsightRepo) ListEvents(ctx context.Context, userID core.UserID, from, to core.LocalDate) ([]insight.LifeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []insight.LifeEvent
	for _, e := range f.events {
		if e.UserID == userID && e.LocalDate >= from && e.LocalDate <= to {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- insight cache ---

type fakeInsightCache struct {
	mu      sync.Mutex
	entries map[string]*insight.CacheEntry
	latest  map[string]*insight.CacheEntry
}

func newFakeInsightCache() *fakeInsightCache {
	return &fakeInsightCache{
		entries: map[string]*insight.CacheEntry{},
		latest:  map[string]*insight.CacheEntry{},
	}
}

func (f *fakeInsightCache) Get(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID, fingerprint string) (*insight.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry := f.entries[fmt.Sprintf("%s/%s/%s", userID, biomarkerID, fingerprint)]
	if entry == nil || entry.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return entry, nil
}

func (f *fakeInsightCache) GetAny(ctx context.Context, userID core.UserID, biomarkerID core.BiomarkerID) (*insight.CacheEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest[fmt.Sprintf("%s/%s", userID, biomarkerID)], nil
}

func (f *fakeInsightCache) Put(ctx context.Context, entry *insight.CacheEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[fmt.Sprintf("%s/%s/%s", entry.UserID, entry.BiomarkerID, entry.Fingerprint)] = entry
	f.latest[fmt.Sprintf("%s/%s", entry.UserID, entry.BiomarkerID)] = entry
	return nil
}

// --- generator / notifier ---

type fakeGenerator struct {
	payload []byte
	err     error
	calls   int
}

func (f *fakeGenerator) GenerateBiomarkerInsight(ctx context.Context, req ports.BiomarkerInsightRequest) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	calls int
}

func (f *fakeNotifier) Notify(ctx context.Context, userID core.UserID, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, title)
	f.calls++
	return nil
}

// interface conformance
var (
	_ ports.SessionRepository     = (*fakeSessions)(nil)
	_ ports.MeasurementRepository = (*fakeMeasurements)(nil)
	_ ports.JobRepository         = (*fakeJobs)(nil)
	_ ports.ProfileRepository     = (*fakeProfiles)(nil)
	_ ports.DailyRepository       = (*fakeDaily)(nil)
	_ ports.SleepRepository       = (*fakeSleep)(nil)
	_ ports.BaselineRepository    = (*fakeBaselines)(nil)
	_ ports.ScoreCache            = (*fakeScores)(nil)
	_ ports.RecomputeQueue        = (*fakeQueue)(nil)
	_ ports.ForecastRepository    = (*fakeForecastRepo)(nil)
	_ ports.InsightRepository     = (*fakeInsightRepo)(nil)
	_ ports.InsightCache          = (*fakeInsightCache)(nil)
	_ ports.InsightGenerator      = (*fakeGenerator)(nil)
	_ ports.Notifier              = (*fakeNotifier)(nil)
)
