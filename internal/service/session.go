package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/alert"
	"btc-trend-watch/internal/config"
	"btc-trend-watch/internal/feed"
	"btc-trend-watch/internal/fetcher"
	"btc-trend-watch/internal/outlook"
	"btc-trend-watch/internal/scheduler"
	"btc-trend-watch/internal/series"
	"btc-trend-watch/internal/storage"
)

// ErrNotRunning is returned for commands issued outside Run's lifetime.
var ErrNotRunning = errors.New("session is not running")

var (
	_ FeedSource       = (*feed.Manager)(nil)
	_ OutlookGenerator = (*outlook.Client)(nil)
)

// OutlookGenerator produces a short-term outlook for a sample slice.
type OutlookGenerator interface {
	Generate(ctx context.Context, samples []series.PriceSample) (string, error)
}

// FeedSource is the slice of the feed manager the session drives.
type FeedSource interface {
	Start()
	Shutdown()
	State() feed.State
}

// Dependencies are the session's external collaborators. History and
// Rules are required; the rest are optional and skipped when nil.
type Dependencies struct {
	History  fetcher.HistoryFetcher
	Rules    storage.RuleStore
	Firings  storage.FiringStore
	Outlooks storage.OutlookStore
	Notifier alert.Notifier
	Outlook  OutlookGenerator
}

// Notification is the user-visible firing message. It auto-dismisses
// after the configured TTL.
type Notification struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// OutlookView is the latest outlook state for display.
type OutlookView struct {
	Text        string    `json:"text,omitempty"`
	Error       string    `json:"error,omitempty"`
	GeneratedAt time.Time `json:"generatedAt,omitempty"`
}

// Status is an immutable snapshot of the session's derived state.
type Status struct {
	ConnectionState feed.State       `json:"connectionState"`
	Healthy         bool             `json:"healthy"`
	Trend           series.Trend     `json:"trend"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	LastUpdated     *time.Time       `json:"lastUpdated,omitempty"`
	Samples         int              `json:"samples"`
	PendingRules    int              `json:"pendingRules"`
	Notification    *Notification    `json:"notification,omitempty"`
	Outlook         OutlookView      `json:"outlook"`
}

// Session owns the live price series, the pending alert rules, and the
// connection health. Every mutation flows through a single event loop;
// asynchronous sources (feed callbacks, the outlook scheduler, API
// commands) only enqueue work. External readers receive copies.
type Session struct {
	cfg        *config.Config
	deps       Dependencies
	logger     zerolog.Logger
	store      *series.Store
	classifier *series.Classifier
	feedSrc    FeedSource

	events  chan event
	running chan struct{} // closed while the loop is accepting events

	mu           sync.RWMutex
	pending      *alert.Pending
	trend        series.Trend
	price        decimal.Decimal
	hasPrice     bool
	lastUpdated  time.Time
	connState    feed.State
	notification *Notification
	outlookView  OutlookView

	outlookBusy bool
	outlookMu   sync.Mutex
}

type event interface{}

type tickEvent struct{ sample series.PriceSample }

type stateEvent struct{ state feed.State }

type outlookEvent struct {
	text string
	err  error
	at   time.Time
}

type commandEvent struct {
	run  func()
	done chan struct{}
}

// New constructs a Session. Call AttachFeed before Run.
func New(cfg *config.Config, deps Dependencies, logger zerolog.Logger) *Session {
	return &Session{
		cfg:        cfg,
		deps:       deps,
		logger:     logger.With().Str("component", "session").Logger(),
		store:      series.NewStore(cfg.Series.RetentionWindow),
		classifier: series.NewClassifier(cfg.Series.TrendLookback, cfg.Series.DeadbandPct),
		events:     make(chan event, 512),
		trend:      series.TrendStable,
		connState:  feed.StateDisconnected,
		pending:    alert.NewPending(nil),
	}
}

// AttachFeed wires the feed source whose lifecycle Run manages.
func (s *Session) AttachFeed(src FeedSource) {
	s.feedSrc = src
}

// EnqueueTick feeds a decoded sample into the mutation stream. It is
// the feed manager's TickFunc.
func (s *Session) EnqueueTick(sample series.PriceSample) {
	s.events <- tickEvent{sample: sample}
}

// EnqueueState feeds a connection state change into the mutation
// stream. It is the feed manager's StateFunc.
func (s *Session) EnqueueState(state feed.State) {
	s.events <- stateEvent{state: state}
}

// Run bootstraps the series, reloads persisted rules, starts the feed
// and the outlook schedule, then processes the mutation stream until
// ctx is cancelled. A bootstrap failure is fatal and blocks the whole
// session; everything after that only degrades.
func (s *Session) Run(ctx context.Context) error {
	history, err := s.deps.History.FetchHistory(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap history: %w", err)
	}
	for _, sample := range history {
		s.store.Append(sample)
	}

	rules, err := s.deps.Rules.Load(ctx)
	if err != nil {
		return fmt.Errorf("load alert rules: %w", err)
	}

	s.mu.Lock()
	s.pending = alert.NewPending(rules)
	s.refreshDerivedLocked()
	s.mu.Unlock()

	s.logger.Info().
		Int("samples", s.store.Len()).
		Int("rules", len(rules)).
		Msg("session bootstrapped")

	running := make(chan struct{})
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
	defer close(running)

	if s.feedSrc != nil {
		s.feedSrc.Start()
		defer s.feedSrc.Shutdown()
	}

	if s.deps.Outlook != nil && s.cfg.Outlook.Enabled {
		interval := s.cfg.Outlook.Interval
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		sched := scheduler.New(scheduler.Options{Interval: interval}, s.logger)
		go func() {
			_ = sched.Run(ctx, s.requestOutlook)
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handle(ctx, ev)
		}
	}
}

// handle applies one event to completion before the next is accepted,
// giving per-message atomicity of series and alert updates.
func (s *Session) handle(ctx context.Context, ev event) {
	switch ev := ev.(type) {
	case tickEvent:
		s.handleTick(ctx, ev.sample)
	case stateEvent:
		s.mu.Lock()
		s.connState = ev.state
		s.mu.Unlock()
	case outlookEvent:
		s.handleOutlook(ctx, ev)
	case commandEvent:
		ev.run()
		close(ev.done)
	}
}

func (s *Session) handleTick(ctx context.Context, sample series.PriceSample) {
	s.store.Append(sample)
	snapshot := s.store.Snapshot()

	s.mu.Lock()
	s.price = sample.Price
	s.hasPrice = true
	s.lastUpdated = sample.Time
	s.trend = s.classifier.Classify(snapshot)
	firing, fired := s.pending.Evaluate(sample.Price, sample.Time)
	if fired {
		s.notification = &Notification{
			Message: alert.RenderFiring(firing),
			At:      sample.Time,
		}
	}
	remaining := s.pending.Rules()
	s.mu.Unlock()

	if fired {
		s.deliverFiring(ctx, firing, remaining)
	}
}

// deliverFiring persists the shrunken rule set and fans the event out.
// Delivery failures degrade: the rule stays consumed either way, so a
// crossing can never alert twice.
func (s *Session) deliverFiring(ctx context.Context, firing alert.Firing, remaining []alert.Rule) {
	s.logger.Info().
		Str("rule_id", firing.Rule.ID).
		Str("condition", string(firing.Rule.Condition)).
		Str("threshold", firing.Rule.Threshold.String()).
		Str("price", firing.Price.String()).
		Msg("alert fired")

	if err := s.deps.Rules.Save(ctx, remaining); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist rules after firing")
	}

	if s.deps.Firings != nil {
		record := storage.FiringRecord{
			RuleID:    firing.Rule.ID,
			Threshold: firing.Rule.Threshold,
			Condition: string(firing.Rule.Condition),
			Price:     firing.Price,
			FiredAt:   firing.At,
		}
		if _, err := s.deps.Firings.InsertFiring(ctx, record); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist firing record")
		}
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.Notify(ctx, firing); err != nil {
			s.logger.Error().Err(err).Msg("failed to dispatch alert notification")
		}
	}
}

// requestOutlook runs on the scheduler goroutine; only the result is
// applied on the mutation stream. The in-flight guard prevents
// overlap rather than queueing a second request.
func (s *Session) requestOutlook(ctx context.Context) {
	s.outlookMu.Lock()
	if s.outlookBusy {
		s.outlookMu.Unlock()
		return
	}
	s.outlookBusy = true
	s.outlookMu.Unlock()

	defer func() {
		s.outlookMu.Lock()
		s.outlookBusy = false
		s.outlookMu.Unlock()
	}()

	snapshot := s.store.Snapshot()
	if len(snapshot) < outlook.MinSamples {
		s.logger.Debug().Int("samples", len(snapshot)).Msg("skipping outlook, not enough data")
		return
	}
	latest := snapshot[len(snapshot)-1]
	window := s.cfg.Outlook.SliceWindow
	if window <= 0 {
		window = 30 * time.Minute
	}
	recent := series.Since(snapshot, latest.Time.Add(-window))

	text, err := s.deps.Outlook.Generate(ctx, recent)
	if ctx.Err() != nil {
		return
	}

	select {
	case s.events <- outlookEvent{text: text, err: err, at: time.Now().UTC()}:
	case <-ctx.Done():
	}
}

func (s *Session) handleOutlook(ctx context.Context, ev outlookEvent) {
	s.mu.Lock()
	if ev.err != nil {
		s.outlookView.Error = ev.err.Error()
	} else {
		s.outlookView = OutlookView{Text: ev.text, GeneratedAt: ev.at}
	}
	s.mu.Unlock()

	if ev.err != nil {
		if errors.Is(ev.err, outlook.ErrNotEnoughData) {
			return
		}
		s.logger.Warn().Err(ev.err).Msg("outlook generation failed")
		return
	}

	if s.deps.Outlooks != nil {
		record := storage.OutlookRecord{Text: ev.text, GeneratedAt: ev.at}
		if _, err := s.deps.Outlooks.InsertOutlook(ctx, record); err != nil {
			s.logger.Error().Err(err).Msg("failed to persist outlook note")
		}
	}
}

// CreateRule validates and adds an alert rule on the mutation stream,
// then persists the updated list.
func (s *Session) CreateRule(ctx context.Context, threshold decimal.Decimal, condition alert.Condition) (alert.Rule, error) {
	rule, err := alert.NewRule(threshold, condition)
	if err != nil {
		return alert.Rule{}, err
	}

	var cmdErr error
	err = s.command(ctx, func() {
		s.mu.Lock()
		if addErr := s.pending.Add(rule); addErr != nil {
			s.mu.Unlock()
			cmdErr = addErr
			return
		}
		rules := s.pending.Rules()
		s.mu.Unlock()

		if saveErr := s.deps.Rules.Save(ctx, rules); saveErr != nil {
			s.mu.Lock()
			_ = s.pending.Remove(rule.ID)
			s.mu.Unlock()
			cmdErr = fmt.Errorf("persist alert rules: %w", saveErr)
		}
	})
	if err != nil {
		return alert.Rule{}, err
	}
	if cmdErr != nil {
		return alert.Rule{}, cmdErr
	}
	return rule, nil
}

// DeleteRule removes a rule on the mutation stream and persists the
// updated list.
func (s *Session) DeleteRule(ctx context.Context, id string) error {
	var cmdErr error
	err := s.command(ctx, func() {
		s.mu.Lock()
		if removeErr := s.pending.Remove(id); removeErr != nil {
			s.mu.Unlock()
			cmdErr = removeErr
			return
		}
		rules := s.pending.Rules()
		s.mu.Unlock()

		if saveErr := s.deps.Rules.Save(ctx, rules); saveErr != nil {
			s.logger.Error().Err(saveErr).Msg("failed to persist rules after deletion")
		}
	})
	if err != nil {
		return err
	}
	return cmdErr
}

func (s *Session) command(ctx context.Context, run func()) error {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running == nil {
		return ErrNotRunning
	}

	cmd := commandEvent{run: run, done: make(chan struct{})}
	select {
	case s.events <- cmd:
	case <-running:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-cmd.done:
		return nil
	case <-running:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Rules returns a copy of the pending rules in insertion order.
func (s *Session) Rules() []alert.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending.Rules()
}

// VisibleRange returns the display slice for the given span.
func (s *Session) VisibleRange(span series.Span) []series.PriceSample {
	return series.SelectVisible(s.store.Snapshot(), span)
}

// Status returns an immutable view of the session's derived state.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		ConnectionState: s.connState,
		Healthy:         s.connState == feed.StateConnected,
		Trend:           s.trend,
		Samples:         s.store.Len(),
		PendingRules:    s.pending.Len(),
		Outlook:         s.outlookView,
	}
	if s.hasPrice {
		price := s.price
		updated := s.lastUpdated
		status.Price = &price
		status.LastUpdated = &updated
	}
	if s.notification != nil {
		ttl := s.cfg.Alerts.NotificationTTL
		if ttl <= 0 {
			ttl = 10 * time.Second
		}
		if time.Since(s.notification.At) < ttl {
			note := *s.notification
			status.Notification = &note
		}
	}
	return status
}

func (s *Session) refreshDerivedLocked() {
	snapshot := s.store.Snapshot()
	s.trend = s.classifier.Classify(snapshot)
	if len(snapshot) > 0 {
		latest := snapshot[len(snapshot)-1]
		s.price = latest.Price
		s.hasPrice = true
		s.lastUpdated = latest.Time
	}
}
