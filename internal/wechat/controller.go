package wechat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"wxadmin/internal/api"
	"wxadmin/internal/events"
	"wxadmin/internal/schedule"
	pkgerrors "wxadmin/pkg/errors"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultRecheckDelay = 30 * time.Second
)

// Service is the slice of the REST API the controller drives.
type Service interface {
	WeChatStatus(ctx context.Context) (*api.WeChatStatus, error)
	WeChatLogin(ctx context.Context) error
	WeChatQRCode(ctx context.Context) (*api.WeChatQRCode, error)
}

// Recorder persists transitions.
type Recorder interface {
	RecordTransition(ctx context.Context, t Transition) error
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	PollInterval time.Duration
	RecheckDelay time.Duration
	// Scheduler runs the poll and the post-login re-check. When nil the
	// controller creates and owns a gocron scheduler.
	Scheduler schedule.Scheduler
	Clock     clockwork.Clock
	Recorder  Recorder
	Logger    *zap.Logger
}

// Controller tracks the account's connection state and drives the login and
// QR recovery flow. It is safe for concurrent use.
type Controller struct {
	svc          Service
	sched        schedule.Scheduler
	ownsSched    bool
	clock        clockwork.Clock
	recorder     Recorder
	logger       *zap.Logger
	bus          *events.Bus
	pollInterval time.Duration
	recheckDelay time.Duration
	group        singleflight.Group

	mu            sync.Mutex
	state         State
	busy          int
	checking      bool
	qrcode        string
	qrVisible     bool
	notice        string
	lastChecked   time.Time
	started       bool
	stopped       bool
	baseCtx       context.Context
	cancelBase    context.CancelFunc
	cancelPoll    schedule.Cancel
	cancelRecheck schedule.Cancel
	recheckGen    uint64

	records    chan Transition
	recordDone chan struct{}
	stopOnce   sync.Once
}

// New creates a controller in the Checking state. Call Start to begin polling.
func New(svc Service, opts Options) (*Controller, error) {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.RecheckDelay <= 0 {
		opts.RecheckDelay = DefaultRecheckDelay
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Controller{
		svc:          svc,
		sched:        opts.Scheduler,
		clock:        opts.Clock,
		recorder:     opts.Recorder,
		logger:       opts.Logger.Named("wechat"),
		bus:          events.NewBus(),
		pollInterval: opts.PollInterval,
		recheckDelay: opts.RecheckDelay,
		state:        Checking,
	}
	c.baseCtx, c.cancelBase = context.WithCancel(context.Background())
	if c.recorder != nil {
		c.records = make(chan Transition, 64)
		c.recordDone = make(chan struct{})
		go c.recordLoop()
	}

	if c.sched == nil {
		s, err := schedule.NewGocron(opts.Clock, opts.Logger)
		if err != nil {
			return nil, err
		}
		c.sched = s
		c.ownsSched = true
	}
	return c, nil
}

// Subscribe returns a channel of state, notice, QR and busy events. The
// channel is closed by Stop.
func (c *Controller) Subscribe() <-chan events.Event {
	return c.bus.SubscribeAll()
}

// SubscribeTo returns a channel of events of one type only. The channel is
// closed by Stop.
func (c *Controller) SubscribeTo(eventType events.EventType) <-chan events.Event {
	return c.bus.Subscribe(eventType)
}

// Unsubscribe releases a channel returned by Subscribe or SubscribeTo.
func (c *Controller) Unsubscribe(ch <-chan events.Event) {
	c.bus.Unsubscribe(ch)
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		State:          c.state,
		Busy:           c.busy > 0,
		QrCode:         c.qrcode,
		QrVisible:      c.qrVisible,
		Notice:         c.notice,
		LastChecked:    c.lastChecked,
		RecheckPending: c.cancelRecheck != nil,
	}
}

// State returns the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Actions lists the actions offered in the current state.
func (c *Controller) Actions() []Action {
	return ActionsFor(c.State())
}

// Start arms the poll timer and runs the initial status check. The check's
// outcome is reported through events; only scheduler failures are returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return errors.New("controller is stopped")
	}
	if c.started {
		c.mu.Unlock()
		return errors.New("controller is already started")
	}
	c.started = true
	c.setStateLocked(Checking, SourcePoll, "")
	c.mu.Unlock()

	cancel, err := c.sched.Every(c.pollInterval, c.pollTick)
	if err != nil {
		return fmt.Errorf("failed to arm poll timer: %w", err)
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		cancel()
		return nil
	}
	c.cancelPoll = cancel
	c.mu.Unlock()

	c.logger.Info("controller started", zap.Duration("poll_interval", c.pollInterval))
	_, _ = c.check(ctx, SourcePoll)
	return nil
}

// Stop cancels the poll timer and any pending re-check, then closes every
// subscription. It is safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		cancelPoll, cancelRecheck := c.cancelPoll, c.cancelRecheck
		c.cancelPoll, c.cancelRecheck = nil, nil
		c.recheckGen++
		c.mu.Unlock()

		if cancelPoll != nil {
			cancelPoll()
		}
		if cancelRecheck != nil {
			cancelRecheck()
		}
		c.cancelBase()

		if c.ownsSched {
			if err := c.sched.Shutdown(); err != nil {
				c.logger.Warn("scheduler shutdown failed", zap.Error(err))
			}
		}
		c.bus.Close()
		if c.records != nil {
			close(c.records)
			<-c.recordDone
		}
		c.logger.Info("controller stopped")
	})
}

// CheckStatus queries the service and derives the state from the answer.
// A pending post-login re-check is cancelled: the manual result supersedes it.
// Concurrent callers share one request. Failures leave the state Offline and
// are also returned.
func (c *Controller) CheckStatus(ctx context.Context) (State, error) {
	c.cancelPendingRecheck()
	return c.check(ctx, SourceManual)
}

func (c *Controller) pollTick() {
	c.mu.Lock()
	skip := c.stopped || c.checking || c.state.Suppressed()
	state := c.state
	ctx := c.baseCtx
	c.mu.Unlock()

	if skip {
		c.logger.Debug("poll tick skipped", zap.String("state", string(state)))
		return
	}
	_, _ = c.check(ctx, SourcePoll)
}

type checkResult struct {
	state State
	err   error
}

// check runs one shared status request. The request itself runs on the
// controller's context so a caller that gives up does not fail the others
// joined to it; each caller stops waiting when its own ctx is done.
func (c *Controller) check(ctx context.Context, source Source) (State, error) {
	ch := c.group.DoChan("status", func() (any, error) {
		c.mu.Lock()
		c.checking = true
		c.mu.Unlock()
		c.beginBusy()

		status, err := c.svc.WeChatStatus(c.baseCtx)

		c.endBusy()
		return c.applyStatus(status, err, source), nil
	})

	select {
	case r := <-ch:
		res := r.Val.(checkResult)
		return res.state, res.err
	case <-ctx.Done():
		return c.State(), ctx.Err()
	}
}

func (c *Controller) applyStatus(status *api.WeChatStatus, err error, source Source) checkResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.checking = false
	if c.stopped {
		return checkResult{state: c.state, err: err}
	}
	c.lastChecked = c.clock.Now()

	if err != nil {
		notice := NoticeNetworkError
		if pkgerrors.IsProtocol(err) {
			notice = NoticeCheckFailed
		}
		c.logger.Warn("status check failed", zap.String("source", string(source)), zap.Error(err))
		c.setStateLocked(Offline, source, notice)
		c.noticeLocked(notice)
		return checkResult{state: Offline, err: err}
	}

	reported := ""
	if status != nil {
		reported = status.Status
	}
	next := Offline
	if State(reported) == Online {
		next = Online
	}
	notice := NoticeOffline
	if next == Online {
		notice = NoticeOnline
	}
	c.logger.Debug("status checked",
		zap.String("source", string(source)),
		zap.String("reported", reported),
		zap.String("state", string(next)))
	c.setStateLocked(next, source, notice)
	c.noticeLocked(notice)
	return checkResult{state: next}
}

// AttemptLogin asks the service to log in. On success the state becomes
// LoggingIn and exactly one re-check is scheduled after the re-check delay,
// regardless of poll suppression. On failure the state becomes QrCodeRequired
// and nothing is scheduled.
func (c *Controller) AttemptLogin(ctx context.Context) error {
	c.beginBusy()
	err := c.svc.WeChatLogin(ctx)
	c.endBusy()

	if err != nil {
		notice := NoticeLoginRequestFailed
		if pkgerrors.IsProtocol(err) {
			notice = NoticeLoginFailed
		}
		c.logger.Warn("login failed", zap.Error(err))

		c.mu.Lock()
		c.setStateLocked(QrCodeRequired, SourceLogin, notice)
		c.noticeLocked(notice)
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.setStateLocked(LoggingIn, SourceLogin, NoticeLoginSent)
	c.noticeLocked(NoticeLoginSent)
	c.mu.Unlock()

	return c.scheduleRecheck()
}

func (c *Controller) scheduleRecheck() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.recheckGen++
	gen := c.recheckGen
	old := c.cancelRecheck
	c.cancelRecheck = nil
	c.mu.Unlock()

	if old != nil {
		old()
	}

	cancel, err := c.sched.Once(c.recheckDelay, func() { c.runRecheck(gen) })
	if err != nil {
		c.logger.Error("failed to schedule re-check", zap.Error(err))
		return fmt.Errorf("failed to schedule re-check: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.recheckGen != gen {
		cancel()
		return nil
	}
	c.cancelRecheck = cancel
	c.logger.Debug("re-check scheduled", zap.Duration("delay", c.recheckDelay))
	return nil
}

func (c *Controller) runRecheck(gen uint64) {
	c.mu.Lock()
	if c.stopped || c.recheckGen != gen {
		c.mu.Unlock()
		return
	}
	c.cancelRecheck = nil
	ctx := c.baseCtx
	c.mu.Unlock()

	_, _ = c.check(ctx, SourceRecheck)
}

func (c *Controller) cancelPendingRecheck() {
	c.mu.Lock()
	cancel := c.cancelRecheck
	c.cancelRecheck = nil
	if cancel != nil {
		c.recheckGen++
	}
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		c.logger.Debug("pending re-check cancelled by manual check")
	}
}

// RequestQrCode fetches a login QR code. On success the payload is stored, the
// presentation opens and the state becomes QrCodeRequired. On failure the
// state is left alone and a single notice is raised.
func (c *Controller) RequestQrCode(ctx context.Context) error {
	c.beginBusy()
	qr, err := c.svc.WeChatQRCode(ctx)
	c.endBusy()

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil || qr == nil || qr.Base64 == "" {
		if err == nil {
			err = &pkgerrors.ProtocolError{Endpoint: "/wechat_qrcode", Err: pkgerrors.ErrEmptyQRCode}
		}
		c.logger.Warn("qrcode request failed", zap.Error(err))
		c.noticeLocked(NoticeQrCodeFailed)
		return err
	}

	c.qrcode = qr.Base64
	c.qrVisible = true
	c.setStateLocked(QrCodeRequired, SourceQrCode, "")
	c.bus.Publish(events.Event{
		Type:      events.QrCodeIssued,
		NewState:  string(c.state),
		Timestamp: c.clock.Now(),
		Data:      qr.Base64,
	})
	return nil
}

// DismissQrCode closes the QR presentation and drops the payload. The
// connection state is not touched.
func (c *Controller) DismissQrCode() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dismissQrCodeLocked()
}

// dismissQrCodeLocked drops the payload and closes the presentation if one is
// open. Must hold c.mu.
func (c *Controller) dismissQrCodeLocked() {
	if !c.qrVisible && c.qrcode == "" {
		return
	}
	c.qrcode = ""
	c.qrVisible = false
	c.bus.Publish(events.Event{
		Type:      events.QrCodeDismissed,
		NewState:  string(c.state),
		Timestamp: c.clock.Now(),
	})
}

// setStateLocked applies a transition. Must hold c.mu.
func (c *Controller) setStateLocked(next State, source Source, message string) {
	prev := c.state
	if prev == next {
		return
	}
	c.state = next
	now := c.clock.Now()

	c.bus.Publish(events.Event{
		Type:      events.StateChanged,
		OldState:  string(prev),
		NewState:  string(next),
		Timestamp: now,
		Data:      source,
	})

	// A QR payload only lives while a scan is required.
	if next != QrCodeRequired {
		c.dismissQrCodeLocked()
	}

	if c.records != nil && !c.stopped {
		select {
		case c.records <- Transition{From: prev, To: next, Source: source, Message: message, At: now}:
		default:
			c.logger.Warn("transition dropped, recorder is behind", zap.String("state", string(next)))
		}
	}
}

// recordLoop writes transitions in order until Stop closes the queue.
func (c *Controller) recordLoop() {
	defer close(c.recordDone)
	for t := range c.records {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.recorder.RecordTransition(ctx, t); err != nil {
			c.logger.Warn("failed to record transition", zap.Error(err))
		}
		cancel()
	}
}

// noticeLocked raises a notice. Must hold c.mu.
func (c *Controller) noticeLocked(notice string) {
	c.notice = notice
	c.bus.Publish(events.Event{
		Type:      events.NoticeRaised,
		NewState:  string(c.state),
		Notice:    notice,
		Timestamp: c.clock.Now(),
	})
}

func (c *Controller) beginBusy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy++
	if c.busy == 1 {
		c.bus.Publish(events.Event{Type: events.BusyChanged, Busy: true, NewState: string(c.state), Timestamp: c.clock.Now()})
	}
}

func (c *Controller) endBusy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy > 0 {
		c.busy--
	}
	if c.busy == 0 {
		c.bus.Publish(events.Event{Type: events.BusyChanged, Busy: false, NewState: string(c.state), Timestamp: c.clock.Now()})
	}
}
