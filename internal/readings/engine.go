package readings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// DefaultCacheTTL is how long a cached snapshot is trusted without a fetch.
const DefaultCacheTTL = 5 * time.Minute

// State is the engine's serving state.
type State int

const (
	StateColdStart State = iota
	StateServingProvisional
	StateRefreshing
	StateServingFresh
)

func (s State) String() string {
	switch s {
	case StateColdStart:
		return "cold-start"
	case StateServingProvisional:
		return "serving-provisional"
	case StateRefreshing:
		return "refreshing"
	case StateServingFresh:
		return "serving-fresh"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Serving reports whether s is one of the two serving states.
func (s State) Serving() bool {
	return s == StateServingProvisional || s == StateServingFresh
}

// Status is the user-facing freshness of a publication.
type Status string

const (
	StatusFresh       Status = "fresh"
	StatusProvisional Status = "provisional"
	StatusStale       Status = "stale" // a refresh failed; data may be stale
	StatusEmpty       Status = "empty" // no data available
)

// Publication is what the engine hands to consumers on every publish.
type Publication struct {
	Markers     MarkerSet `json:"markers"`
	State       State     `json:"state"`
	Status      Status    `json:"status"`
	CapturedAt  time.Time `json:"capturedAt"`
	PublishedAt time.Time `json:"publishedAt"`
}

// NeedsFetch decides whether a refresh must hit the network: there is no
// cache, the cache is stale, or a fresh cache has no station readings and
// is therefore treated as incomplete.
func NeedsFetch(entry *CacheEntry, ttl time.Duration, now time.Time) bool {
	if !IsFresh(entry, ttl, now) {
		return true
	}
	return entry.Snapshot.StationCount() == 0
}

// afterFailedFetch is the state the engine falls back to when every source
// failed during a refresh started from prev.
func afterFailedFetch(prev State) State {
	if prev.Serving() {
		return prev
	}
	return StateServingProvisional
}

func statusFor(ms MarkerSet, s State, degraded bool) Status {
	switch {
	case len(ms) == 0:
		return StatusEmpty
	case degraded:
		return StatusStale
	case s == StateServingFresh:
		return StatusFresh
	default:
		return StatusProvisional
	}
}

// EngineConfig tunes an Engine. Zero values take defaults.
type EngineConfig struct {
	RadiusKm    float64
	CacheTTL    time.Duration
	Now         func() time.Time
	Diagnostics Diagnostics
}

// Engine runs refresh cycles and publishes marker sets to subscribers.
// Refreshes are serialized. Every publish (refresh commit, Submit) runs
// under pubMu together with its cache write and observer delivery, so
// publications are totally ordered and none is built on a superseded set.
type Engine struct {
	cache    SnapshotStore
	stations Fetcher
	users    Fetcher

	radiusKm float64
	ttl      time.Duration
	now      func() time.Time
	diag     Diagnostics

	refreshMu sync.Mutex
	pubMu     sync.Mutex

	mu       sync.RWMutex
	state    State
	degraded bool
	entry    *CacheEntry
	current  Publication

	obsMu     sync.Mutex
	observers map[int]func(Publication)
	nextObs   int
}

// NewEngine builds an engine and performs the cold start: the cache is read
// synchronously and, when it holds a snapshot, published as provisional.
func NewEngine(ctx context.Context, cache SnapshotStore, stations, users Fetcher, cfg EngineConfig) (*Engine, error) {
	if cache == nil || stations == nil || users == nil {
		return nil, errors.New("engine requires a cache and both fetchers")
	}
	if cfg.RadiusKm == 0 {
		cfg.RadiusKm = DefaultRadiusKm
	}
	if err := checkRadius(cfg.RadiusKm); err != nil {
		return nil, err
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Diagnostics == nil {
		cfg.Diagnostics = LogDiagnostics{}
	}

	e := &Engine{
		cache:     cache,
		stations:  stations,
		users:     users,
		radiusKm:  cfg.RadiusKm,
		ttl:       cfg.CacheTTL,
		now:       cfg.Now,
		diag:      cfg.Diagnostics,
		state:     StateColdStart,
		observers: make(map[int]func(Publication)),
	}
	e.coldStart(ctx)
	return e, nil
}

func (e *Engine) coldStart(ctx context.Context) {
	entry, err := e.cache.Read(ctx)
	if err != nil {
		e.diag.CacheUnavailable("read", err)
		return
	}
	if entry == nil {
		return
	}

	var stations, users []Reading
	for _, r := range entry.Snapshot.Readings() {
		if err := Validate(r); err != nil {
			e.diag.ReadingDropped(r.Origin, err)
			continue
		}
		if r.Origin == OriginStation {
			stations = append(stations, r)
		} else {
			users = append(users, r)
		}
	}

	ms := buildMarkerSet(stations, users, e.radiusKm)
	rebuilt := &CacheEntry{Snapshot: ms, CapturedAt: entry.CapturedAt}

	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	e.mu.Lock()
	e.entry = rebuilt
	e.state = StateServingProvisional
	pub := e.publishLocked(ms, entry.CapturedAt)
	e.mu.Unlock()

	e.notify(pub)
}

// Refresh runs one cycle. When the cached snapshot is fresh, contains
// station readings and the last refresh fully succeeded, no fetch is made
// and the current set is returned.
// Network failures never surface as errors; see Current().Status.
func (e *Engine) Refresh(ctx context.Context) MarkerSet {
	return e.refresh(ctx, false)
}

// ForceRefresh fetches regardless of cache freshness.
func (e *Engine) ForceRefresh(ctx context.Context) MarkerSet {
	return e.refresh(ctx, true)
}

type fetchResult struct {
	list RawList
	err  error
}

func (e *Engine) refresh(ctx context.Context, force bool) MarkerSet {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	started := e.now()

	e.mu.Lock()
	if !force && !e.degraded && !NeedsFetch(e.entry, e.ttl, started) {
		ms := e.current.Markers
		e.mu.Unlock()
		return ms
	}
	prev := e.state
	e.state = StateRefreshing
	e.mu.Unlock()

	// Fetch both sources concurrently; one failing does not cancel the other.
	var (
		wg      sync.WaitGroup
		results [2]fetchResult
	)
	for i, f := range []Fetcher{e.stations, e.users} {
		i, f := i, f
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := f.Fetch(ctx)
			results[i] = fetchResult{list: list, err: err}
		}()
	}
	wg.Wait()

	stationRes, userRes := results[0], results[1]
	if stationRes.err != nil {
		e.diag.FetchFailed(e.stations.Name(), stationRes.err)
	}
	if userRes.err != nil {
		e.diag.FetchFailed(e.users.Name(), userRes.err)
	}

	// Submissions accepted during the fetch are part of latest.
	e.pubMu.Lock()
	defer e.pubMu.Unlock()
	latest := e.Current().Markers

	if stationRes.err != nil && userRes.err != nil {
		e.diag.AllSourcesFailed(fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(
			&FetchFailure{Source: e.stations.Name(), Err: stationRes.err},
			&FetchFailure{Source: e.users.Name(), Err: userRes.err},
		)))

		e.mu.Lock()
		e.state = afterFailedFetch(prev)
		e.degraded = true
		pub := e.publishLocked(latest, e.current.CapturedAt)
		e.mu.Unlock()

		e.notify(pub)
		return latest
	}

	fetchedAt := e.now().UTC()

	// A failed source keeps its last published readings.
	var stations, users []Reading
	if stationRes.err == nil {
		stations = e.normalizeAll(stationRes.list, OriginStation, fetchedAt)
	} else {
		stations = originReadings(latest, OriginStation)
	}
	if userRes.err == nil {
		users = e.normalizeAll(userRes.list, OriginUser, fetchedAt)
	} else {
		users = originReadings(latest, OriginUser)
	}

	ms := buildMarkerSet(stations, users, e.radiusKm)
	entry := CacheEntry{Snapshot: ms, CapturedAt: fetchedAt}
	if err := e.cache.Write(ctx, entry); err != nil {
		e.diag.CacheUnavailable("write", err)
	}

	e.mu.Lock()
	e.entry = &entry
	e.state = StateServingFresh
	e.degraded = stationRes.err != nil || userRes.err != nil
	pub := e.publishLocked(ms, fetchedAt)
	e.mu.Unlock()

	e.notify(pub)
	e.diag.RefreshCompleted(e.now().Sub(started), len(ms))
	return ms
}

func (e *Engine) normalizeAll(list RawList, origin Origin, fetchedAt time.Time) []Reading {
	out := make([]Reading, 0, len(list.Items))
	for _, raw := range list.Items {
		r, err := Normalize(raw, origin, fetchedAt)
		if err != nil {
			e.diag.ReadingDropped(origin, err)
			continue
		}
		out = append(out, r)
	}
	return out
}

func originReadings(ms MarkerSet, origin Origin) []Reading {
	var out []Reading
	for _, r := range ms.Readings() {
		if r.Origin == origin {
			out = append(out, r)
		}
	}
	return out
}

// Submit incorporates one user reading into the published set, writes the
// cache and publishes. The cache keeps its previous capture time so a
// submission never makes stale feed data look fresh. A refresh whose fetch
// is in flight supersedes the submission when it commits.
func (e *Engine) Submit(ctx context.Context, r Reading) (MarkerSet, error) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.mu.RLock()
	current := e.current.Markers
	var capturedAt time.Time
	if e.entry != nil {
		capturedAt = e.entry.CapturedAt
	}
	e.mu.RUnlock()

	ms, err := Incorporate(current, r, e.radiusKm)
	if err != nil {
		return nil, err
	}

	entry := CacheEntry{Snapshot: ms, CapturedAt: capturedAt}
	if err := e.cache.Write(ctx, entry); err != nil {
		e.diag.CacheUnavailable("write", err)
	}

	e.mu.Lock()
	e.entry = &entry
	if e.state == StateColdStart {
		e.state = StateServingProvisional
	}
	state := e.state
	if state == StateRefreshing {
		// The refresh has not published yet; keep what consumers already see.
		state = e.current.State
		if !state.Serving() {
			state = StateServingProvisional
		}
	}
	pub := e.publishAs(ms, capturedAt, state)
	e.mu.Unlock()

	e.notify(pub)
	return ms, nil
}

// publishLocked replaces the current publication. e.mu must be held.
func (e *Engine) publishLocked(ms MarkerSet, capturedAt time.Time) Publication {
	return e.publishAs(ms, capturedAt, e.state)
}

func (e *Engine) publishAs(ms MarkerSet, capturedAt time.Time, state State) Publication {
	e.current = Publication{
		Markers:     ms,
		State:       state,
		Status:      statusFor(ms, state, e.degraded),
		CapturedAt:  capturedAt,
		PublishedAt: e.now().UTC(),
	}
	return e.current
}

// Current returns the latest publication.
func (e *Engine) Current() Publication {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// State returns the engine's current state.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// RadiusKm returns the clustering radius in use.
func (e *Engine) RadiusKm() float64 { return e.radiusKm }

// Subscribe registers fn for every future publication. If something has
// already been published, fn receives it immediately. fn is called in
// publication order and must not call Submit or Subscribe. The returned
// func removes the subscription.
func (e *Engine) Subscribe(fn func(Publication)) (cancel func()) {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.obsMu.Lock()
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	e.obsMu.Unlock()

	if pub := e.Current(); !pub.PublishedAt.IsZero() {
		fn(pub)
	}

	return func() {
		e.obsMu.Lock()
		delete(e.observers, id)
		e.obsMu.Unlock()
	}
}

// notify delivers pub to every observer. e.pubMu must be held.
func (e *Engine) notify(pub Publication) {
	e.obsMu.Lock()
	ids := make([]int, 0, len(e.observers))
	for id := range e.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Publication), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, e.observers[id])
	}
	e.obsMu.Unlock()

	for _, fn := range fns {
		fn(pub)
	}
}
