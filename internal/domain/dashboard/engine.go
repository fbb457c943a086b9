package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/patient360/internal/domain/customer"
	"github.com/ehr/patient360/pkg/pagination"
)

const tracerName = "github.com/ehr/patient360/internal/domain/dashboard"

// Feed completion outcomes reported to a Recorder.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeStale = "stale"
)

// Recorder receives one call per finished fetch.
type Recorder interface {
	FeedCompleted(feed, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) FeedCompleted(string, string, time.Duration) {}

// Options configures an Engine. Zero values select the defaults noted on
// each field.
type Options struct {
	ItemsPerPage int             // default 5
	Expansion    ExpansionPolicy // default preserve
	Mode         ResolutionMode  // default indirect
	FeedTimeout  time.Duration   // 0 disables the per-fetch timeout
	Feeds        []FeedName      // nil enables every feed
	Formatter    *Formatter      // default en-US / USD
	Logger       zerolog.Logger  // zero value discards
	Recorder     Recorder
	Tracer       trace.Tracer
}

// Engine aggregates the feeds of one subject into a Model. All state is
// guarded by mu; fetches run on their own goroutines and apply their
// results through complete.
type Engine struct {
	backend customer.Backend
	opts    Options
	specs   []FeedSpec
	log     zerolog.Logger
	tracer  trace.Tracer

	root       context.Context
	rootCancel context.CancelFunc

	mu         sync.Mutex
	subject    SubjectRef
	unifiedID  string
	model      Model
	ui         Interaction
	bindings   map[FeedName]*binding
	inflight   int
	idle       chan struct{}
	refreshing int
	closed     bool
	watch      func()
}

// New creates an engine with no subject selected.
func New(backend customer.Backend, opts Options) (*Engine, error) {
	specs, err := selectFeeds(opts.Feeds)
	if err != nil {
		return nil, err
	}
	if opts.ItemsPerPage <= 0 {
		opts.ItemsPerPage = pagination.DefaultPerPage
	}
	if opts.Expansion, err = ParseExpansionPolicy(string(opts.Expansion)); err != nil {
		return nil, err
	}
	if opts.Mode, err = ParseResolutionMode(string(opts.Mode)); err != nil {
		return nil, err
	}
	if opts.Formatter == nil {
		if opts.Formatter, err = NewFormatter("en-US", "USD", "", nil); err != nil {
			return nil, err
		}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(tracerName)
	}

	root, cancel := context.WithCancel(context.Background())
	e := &Engine{
		backend:    backend,
		opts:       opts,
		specs:      specs,
		log:        opts.Logger,
		tracer:     opts.Tracer,
		root:       root,
		rootCancel: cancel,
		model:      NewModel(opts.Formatter),
		ui:         newInteraction(),
		bindings:   make(map[FeedName]*binding, len(specs)),
		idle:       make(chan struct{}),
	}
	close(e.idle)
	for _, s := range specs {
		e.bindings[s.Name] = &binding{spec: s, state: FeedIdle}
	}
	return e, nil
}

// DefaultMode is the resolution mode applied to subjects that name none.
func (e *Engine) DefaultMode() ResolutionMode { return e.opts.Mode }

// SetSubject switches the dashboard to ref. A different subject resets the
// model and interaction state and re-binds every feed; the same subject is
// a no-op. An empty reference clears the dashboard.
func (e *Engine) SetSubject(ref SubjectRef) error {
	ref, err := ref.normalize(e.opts.Mode)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if ref == e.subject {
		return nil
	}

	e.log.Info().
		Str("reference", ref.Reference).
		Str("mode", string(ref.Mode)).
		Str("previous", e.subject.Reference).
		Msg("subject changed")

	e.subject = ref
	e.model = NewModel(e.opts.Formatter)
	e.ui = newInteraction()
	e.unifiedID = ""
	for _, s := range e.specs {
		e.bindings[s.Name].unbind()
	}
	if ref.IsZero() {
		return nil
	}

	primary, unified := ref.keys()
	e.unifiedID = unified
	for _, s := range e.specs {
		switch {
		case s.Key == KeyPrimary:
			e.issueLocked(e.bindings[s.Name], primary)
		case unified != "":
			e.issueLocked(e.bindings[s.Name], unified)
		}
	}
	return nil
}

// issueLocked starts a fetch for b with param, superseding any fetch in
// flight for the same binding. Callers hold mu.
func (e *Engine) issueLocked(b *binding, param string) {
	b.invalidate()
	b.param = param
	b.state = FeedLoading
	gen := b.generation

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if e.opts.FeedTimeout > 0 {
		ctx, cancel = context.WithTimeout(e.root, e.opts.FeedTimeout)
	} else {
		ctx, cancel = context.WithCancel(e.root)
	}
	done := make(chan struct{})
	b.cancel = cancel
	b.done = done

	if e.inflight == 0 {
		e.idle = make(chan struct{})
	}
	e.inflight++

	go e.fetch(ctx, cancel, b.spec, param, gen, done)
}

func (e *Engine) fetch(ctx context.Context, cancel context.CancelFunc, spec FeedSpec, param string, gen uint64, done chan struct{}) {
	defer close(done)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "dashboard.feed."+string(spec.Name),
		trace.WithAttributes(
			attribute.String("feed", string(spec.Name)),
			attribute.String("key", spec.Key.String()),
			attribute.Int64("generation", int64(gen)),
		))
	start := time.Now()
	raw, err := spec.fetch(ctx, e.backend, param)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	e.complete(spec, param, gen, raw, err, time.Since(start))
}

// complete applies a finished fetch. Results whose generation no longer
// matches the binding are dropped before anything else is looked at.
func (e *Engine) complete(spec FeedSpec, param string, gen uint64, raw any, err error, took time.Duration) {
	e.mu.Lock()
	applied := e.completeLocked(spec, param, gen, raw, err, took)
	e.settleLocked()
	watch := e.watch
	e.mu.Unlock()

	if applied && watch != nil {
		watch()
	}
}

// completeLocked reports whether the result changed the dashboard.
func (e *Engine) completeLocked(spec FeedSpec, param string, gen uint64, raw any, err error, took time.Duration) bool {
	if e.closed {
		return false
	}
	b := e.bindings[spec.Name]
	if b.generation != gen {
		e.opts.Recorder.FeedCompleted(string(spec.Name), OutcomeStale, took)
		e.log.Debug().
			Str("feed", string(spec.Name)).
			Uint64("generation", gen).
			Uint64("current", b.generation).
			Msg("discarding stale feed result")
		return false
	}

	now := time.Now()
	b.cancel = nil
	b.updatedAt = &now
	if err != nil {
		b.state = FeedFailed
		b.err = err.Error()
		e.opts.Recorder.FeedCompleted(string(spec.Name), OutcomeError, took)
		e.log.Warn().Err(err).
			Str("feed", string(spec.Name)).
			Str("param", param).
			Uint64("generation", gen).
			Str("subject", e.subject.Reference).
			Msg("feed fetch failed")
		return true
	}

	spec.merge(&e.model, raw, mergeContext{format: e.opts.Formatter, expansion: e.opts.Expansion})
	b.state = FeedOK
	b.err = ""
	e.opts.Recorder.FeedCompleted(string(spec.Name), OutcomeOK, took)

	if spec.Name == FeedProfile && e.subject.Mode == ResolveIndirect {
		e.resolveUnifiedLocked(e.model.Profile.UnifiedID)
	}
	e.ui.clampPage(&e.model, e.opts.ItemsPerPage)
	return true
}

// resolveUnifiedLocked re-binds the unified-keyed feeds when the profile
// feed reports a different unified identifier.
func (e *Engine) resolveUnifiedLocked(id string) {
	if id == e.unifiedID {
		return
	}
	e.log.Info().
		Str("reference", e.subject.Reference).
		Str("unified_id", id).
		Msg("unified id resolved")

	prev := e.unifiedID
	e.unifiedID = id
	def := NewModel(e.opts.Formatter)
	for _, s := range e.specs {
		if s.Key != KeyUnified {
			continue
		}
		b := e.bindings[s.Name]
		if prev != "" {
			resetFragment(&e.model, &def, s.Owns)
		}
		if id == "" {
			b.unbind()
			continue
		}
		e.issueLocked(b, id)
	}
}

func (e *Engine) settleLocked() {
	e.inflight--
	if e.inflight == 0 {
		close(e.idle)
	}
}

// Refresh re-issues every bound feed and blocks until they settle or ctx
// ends. Interaction state is kept.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	var pending []chan struct{}
	for _, s := range e.specs {
		b := e.bindings[s.Name]
		if b.param == "" {
			continue
		}
		e.issueLocked(b, b.param)
		pending = append(pending, b.done)
	}
	e.refreshing++
	e.log.Debug().Int("feeds", len(pending)).Msg("refresh issued")
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.refreshing--
		e.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, done := range pending {
		g.Go(func() error {
			select {
			case <-done:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	// A refreshed profile can re-bind the unified feeds.
	return e.Wait(ctx)
}

// Wait blocks until no fetch is in flight or ctx ends.
func (e *Engine) Wait(ctx context.Context) error {
	for {
		e.mu.Lock()
		if e.inflight == 0 {
			e.mu.Unlock()
			return nil
		}
		idle := e.idle
		e.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Watch registers fn to run after every feed result that changes the
// dashboard. fn runs on the fetch goroutine without the engine lock held, so
// it may call Snapshot. A nil fn removes the watcher.
func (e *Engine) Watch(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.watch = fn
}

// Close cancels every fetch in flight and rejects later calls with
// ErrClosed. It is safe to call more than once.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.watch = nil
	e.rootCancel()
	for _, b := range e.bindings {
		b.invalidate()
	}
}

// SetActiveTab selects tab and returns to its first page.
func (e *Engine) SetActiveTab(tab Tab) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.ui.setActiveTab(tab)
}

// SetPage moves to page n clamped to the active tab's page range and
// returns the resulting page.
func (e *Engine) SetPage(n int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	e.ui.setPage(&e.model, e.opts.ItemsPerPage, n)
	return e.ui.CurrentPage, nil
}

func (e *Engine) NextPage() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	e.ui.setPage(&e.model, e.opts.ItemsPerPage, e.ui.CurrentPage+1)
	return e.ui.CurrentPage, nil
}

func (e *Engine) PreviousPage() (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, ErrClosed
	}
	e.ui.setPage(&e.model, e.opts.ItemsPerPage, e.ui.CurrentPage-1)
	return e.ui.CurrentPage, nil
}

// ToggleExpanded flips the expanded flag of one row and returns its new
// value. Sends are addressed by campaign key in parent.
func (e *Engine) ToggleExpanded(list ListName, key, parent string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrClosed
	}
	return toggleExpanded(&e.model, list, key, parent)
}

// ToggleSection opens or closes a medical record section.
func (e *Engine) ToggleSection(s Section) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false, ErrClosed
	}
	return e.ui.toggleSection(s)
}

// Snapshot is a consistent read of the dashboard. Slices in Model are
// shared with the engine and must not be modified.
type Snapshot struct {
	Subject     SubjectRef   `json:"subject"`
	UnifiedID   string       `json:"unified_id"`
	Loading     bool         `json:"loading"`
	Refreshing  bool         `json:"refreshing"`
	Model       Model        `json:"model"`
	Interaction Interaction  `json:"interaction"`
	Derived     Derived      `json:"derived"`
	Feeds       []FeedStatus `json:"feeds"`
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	feeds := make([]FeedStatus, 0, len(e.specs))
	for _, s := range e.specs {
		feeds = append(feeds, e.bindings[s.Name].status())
	}
	return Snapshot{
		Subject:     e.subject,
		UnifiedID:   e.unifiedID,
		Loading:     e.inflight > 0 || e.refreshing > 0,
		Refreshing:  e.refreshing > 0,
		Model:       e.model,
		Interaction: e.ui.clone(),
		Derived:     derive(&e.model, e.ui, e.opts.ItemsPerPage),
		Feeds:       feeds,
	}
}
