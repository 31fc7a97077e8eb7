package wechat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wxadmin/internal/api"
	"wxadmin/internal/events"
	"wxadmin/internal/schedule"
	pkgerrors "wxadmin/pkg/errors"
)

// fakeJob is a task registered with fakeScheduler.
type fakeJob struct {
	every   time.Duration
	delay   time.Duration
	repeat  bool
	task    func()
	cancels int
	done    bool
}

// fakeScheduler records jobs and runs them only when the test fires them.
type fakeScheduler struct {
	mu   sync.Mutex
	jobs []*fakeJob
}

func (f *fakeScheduler) add(j *fakeJob) schedule.Cancel {
	f.mu.Lock()
	f.jobs = append(f.jobs, j)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		j.cancels++
	}
}

func (f *fakeScheduler) Every(interval time.Duration, task func()) (schedule.Cancel, error) {
	return f.add(&fakeJob{every: interval, repeat: true, task: task}), nil
}

func (f *fakeScheduler) Once(delay time.Duration, task func()) (schedule.Cancel, error) {
	return f.add(&fakeJob{delay: delay, task: task}), nil
}

func (f *fakeScheduler) Shutdown() error { return nil }

func (f *fakeScheduler) active(repeat bool) []*fakeJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*fakeJob
	for _, j := range f.jobs {
		if j.repeat == repeat && j.cancels == 0 && !j.done {
			out = append(out, j)
		}
	}
	return out
}

// tick runs every live repeating job once.
func (f *fakeScheduler) tick() {
	for _, j := range f.active(true) {
		j.task()
	}
}

// fireOnce runs every live one-shot job.
func (f *fakeScheduler) fireOnce() {
	for _, j := range f.active(false) {
		f.mu.Lock()
		j.done = true
		f.mu.Unlock()
		j.task()
	}
}

// fakeService answers with whatever the test sets.
type fakeService struct {
	mu          sync.Mutex
	status      string
	statusErr   error
	loginErr    error
	qrcode      string
	qrErr       error
	gate        chan struct{}
	entered     chan struct{}
	statusCalls int32
	loginCalls  int32
	qrCalls     int32
}

func (s *fakeService) setStatus(status string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status, s.statusErr = status, err
}

func (s *fakeService) WeChatStatus(ctx context.Context) (*api.WeChatStatus, error) {
	atomic.AddInt32(&s.statusCalls, 1)
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	if err := ctx.Err(); err != nil {
		return nil, &pkgerrors.TransportError{Method: "GET", URL: "http://x", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &api.WeChatStatus{Status: s.status}, nil
}

func (s *fakeService) WeChatLogin(ctx context.Context) error {
	atomic.AddInt32(&s.loginCalls, 1)
	return s.loginErr
}

func (s *fakeService) WeChatQRCode(ctx context.Context) (*api.WeChatQRCode, error) {
	atomic.AddInt32(&s.qrCalls, 1)
	if s.qrErr != nil {
		return nil, s.qrErr
	}
	return &api.WeChatQRCode{Base64: s.qrcode}, nil
}

func (s *fakeService) calls() int32 { return atomic.LoadInt32(&s.statusCalls) }

type memRecorder struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *memRecorder) RecordTransition(ctx context.Context, t Transition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, t)
	return nil
}

func (r *memRecorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transitions)
}

var (
	protocolErr  = &pkgerrors.ProtocolError{Endpoint: "/x", Status: "error", Err: pkgerrors.ErrUnexpectedStatus}
	transportErr = &pkgerrors.TransportError{Method: "GET", URL: "http://x", Err: errors.New("connection refused")}
)

type harness struct {
	ctrl  *Controller
	svc   *fakeService
	sched *fakeScheduler
	clock *clockwork.FakeClock
}

func newHarness(t *testing.T, svc *fakeService) *harness {
	t.Helper()
	h := &harness{
		svc:   svc,
		sched: &fakeScheduler{},
		clock: clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)),
	}
	ctrl, err := New(svc, Options{Scheduler: h.sched, Clock: h.clock})
	require.NoError(t, err)
	t.Cleanup(ctrl.Stop)
	h.ctrl = ctrl
	return h
}

func drain(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func notices(evs []events.Event) []string {
	var out []string
	for _, ev := range evs {
		if ev.Type == events.NoticeRaised {
			out = append(out, ev.Notice)
		}
	}
	return out
}

func TestCheckStatusMapsReportedValue(t *testing.T) {
	tests := []struct {
		reported string
		want     State
		notice   string
	}{
		{"online", Online, NoticeOnline},
		{"offline", Offline, NoticeOffline},
		{"", Offline, NoticeOffline},
		{"logining", Offline, NoticeOffline},
		{"banana", Offline, NoticeOffline},
	}

	for _, tt := range tests {
		t.Run(tt.reported, func(t *testing.T) {
			h := newHarness(t, &fakeService{status: tt.reported})

			got, err := h.ctrl.CheckStatus(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			snap := h.ctrl.Snapshot()
			assert.Equal(t, tt.want, snap.State)
			assert.Equal(t, tt.notice, snap.Notice)
			assert.False(t, snap.Busy)
			assert.Equal(t, h.clock.Now(), snap.LastChecked)
		})
	}
}

func TestCheckStatusFailuresGoOffline(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		notice string
	}{
		{"protocol", protocolErr, NoticeCheckFailed},
		{"transport", transportErr, NoticeNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeService{status: "online"})
			_, err := h.ctrl.CheckStatus(context.Background())
			require.NoError(t, err)
			require.Equal(t, Online, h.ctrl.State())

			h.svc.setStatus("", tt.err)
			got, err := h.ctrl.CheckStatus(context.Background())
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, Offline, got)
			assert.Equal(t, tt.notice, h.ctrl.Snapshot().Notice)

			// The controller stays usable.
			h.svc.setStatus("online", nil)
			got, err = h.ctrl.CheckStatus(context.Background())
			require.NoError(t, err)
			assert.Equal(t, Online, got)
		})
	}
}

func TestCheckStatusSingleFlight(t *testing.T) {
	svc := &fakeService{
		status:  "online",
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
	h := newHarness(t, svc)

	var wg sync.WaitGroup
	results := make([]State, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = h.ctrl.CheckStatus(context.Background())
		}(i)
	}

	<-svc.entered
	assert.True(t, h.ctrl.Snapshot().Busy)
	// Give the remaining callers time to join the in-flight request.
	time.Sleep(50 * time.Millisecond)
	close(svc.gate)
	wg.Wait()

	assert.Equal(t, int32(1), svc.calls())
	for _, s := range results {
		assert.Equal(t, Online, s)
	}
}

func TestCancelledCallerDoesNotFailSharedCheck(t *testing.T) {
	svc := &fakeService{
		status:  "online",
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
	h := newHarness(t, svc)
	ch := h.ctrl.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.ctrl.CheckStatus(ctx)
		done <- err
	}()
	<-svc.entered

	joined := make(chan State, 1)
	go func() {
		s, _ := h.ctrl.CheckStatus(context.Background())
		joined <- s
	}()

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(svc.gate)
	assert.Equal(t, Online, <-joined)
	assert.Equal(t, Online, h.ctrl.State())
	assert.NotContains(t, notices(drain(ch)), NoticeNetworkError)
}

func TestPollSkippedWhileCheckInFlight(t *testing.T) {
	svc := &fakeService{
		status:  "online",
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
	h := newHarness(t, svc)

	// Start arms the poll timer before running the initial check.
	done := make(chan error, 1)
	go func() { done <- h.ctrl.Start(context.Background()) }()
	<-svc.entered

	h.sched.tick()
	close(svc.gate)
	require.NoError(t, <-done)

	assert.Equal(t, int32(1), svc.calls())
}

func TestPollSuppressedWhileLoggingIn(t *testing.T) {
	h := newHarness(t, &fakeService{status: "offline"})
	require.NoError(t, h.ctrl.Start(context.Background()))
	require.Equal(t, Offline, h.ctrl.State())
	require.Equal(t, int32(1), h.svc.calls())

	h.sched.tick()
	assert.Equal(t, int32(2), h.svc.calls())

	require.NoError(t, h.ctrl.AttemptLogin(context.Background()))
	require.Equal(t, LoggingIn, h.ctrl.State())

	for i := 0; i < 3; i++ {
		h.sched.tick()
	}
	assert.Equal(t, int32(2), h.svc.calls())
}

func TestPollSuppressedWhileQrCodeRequired(t *testing.T) {
	h := newHarness(t, &fakeService{status: "offline", qrcode: "iVBORw0KGgo="})
	require.NoError(t, h.ctrl.Start(context.Background()))

	require.NoError(t, h.ctrl.RequestQrCode(context.Background()))
	require.Equal(t, QrCodeRequired, h.ctrl.State())

	h.sched.tick()
	h.sched.tick()
	assert.Equal(t, int32(1), h.svc.calls())

	// A manual check still goes through.
	h.svc.setStatus("online", nil)
	got, err := h.ctrl.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Online, got)
	assert.Equal(t, int32(2), h.svc.calls())
}

func TestLoginSuccessSchedulesOneRecheck(t *testing.T) {
	h := newHarness(t, &fakeService{status: "offline"})
	ch := h.ctrl.Subscribe()

	require.NoError(t, h.ctrl.AttemptLogin(context.Background()))

	snap := h.ctrl.Snapshot()
	assert.Equal(t, LoggingIn, snap.State)
	assert.Equal(t, NoticeLoginSent, snap.Notice)
	assert.True(t, snap.RecheckPending)
	assert.Contains(t, notices(drain(ch)), NoticeLoginSent)

	pending := h.sched.active(false)
	require.Len(t, pending, 1)
	assert.Equal(t, DefaultRecheckDelay, pending[0].delay)

	// The re-check ignores suppression.
	h.svc.setStatus("online", nil)
	h.sched.fireOnce()
	assert.Equal(t, Online, h.ctrl.State())
	assert.Equal(t, int32(1), h.svc.calls())
	assert.False(t, h.ctrl.Snapshot().RecheckPending)

	h.sched.fireOnce()
	assert.Equal(t, int32(1), h.svc.calls())
}

func TestRepeatedLoginKeepsOneRecheck(t *testing.T) {
	h := newHarness(t, &fakeService{status: "online"})

	require.NoError(t, h.ctrl.AttemptLogin(context.Background()))
	require.NoError(t, h.ctrl.AttemptLogin(context.Background()))

	assert.Len(t, h.sched.active(false), 1)
	h.sched.fireOnce()
	assert.Equal(t, int32(1), h.svc.calls())
}

func TestLoginFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		notice string
	}{
		{"rejected", protocolErr, NoticeLoginFailed},
		{"transport", transportErr, NoticeLoginRequestFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeService{status: "offline", loginErr: tt.err})
			_, _ = h.ctrl.CheckStatus(context.Background())

			err := h.ctrl.AttemptLogin(context.Background())
			assert.ErrorIs(t, err, tt.err)

			snap := h.ctrl.Snapshot()
			assert.Equal(t, QrCodeRequired, snap.State)
			assert.Equal(t, tt.notice, snap.Notice)
			assert.False(t, snap.RecheckPending)
			assert.Empty(t, h.sched.active(false))
		})
	}
}

func TestQrCodeFailureLeavesStateAlone(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		err     error
	}{
		{"empty payload", "", nil},
		{"empty envelope", "", &pkgerrors.ProtocolError{Endpoint: "/wechat_qrcode", Err: pkgerrors.ErrEmptyQRCode}},
		{"transport", "", transportErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeService{status: "offline", qrcode: tt.payload, qrErr: tt.err})
			_, _ = h.ctrl.CheckStatus(context.Background())
			ch := h.ctrl.Subscribe()

			err := h.ctrl.RequestQrCode(context.Background())
			require.Error(t, err)

			evs := drain(ch)
			assert.Equal(t, []string{NoticeQrCodeFailed}, notices(evs))
			for _, ev := range evs {
				assert.NotEqual(t, events.QrCodeIssued, ev.Type)
				assert.NotEqual(t, events.StateChanged, ev.Type)
			}

			snap := h.ctrl.Snapshot()
			assert.Equal(t, Offline, snap.State)
			assert.False(t, snap.QrVisible)
			assert.Empty(t, snap.QrCode)
		})
	}
}

func TestQrCodeDismissKeepsState(t *testing.T) {
	h := newHarness(t, &fakeService{status: "offline", qrcode: "data:image/png;base64,AAAA"})
	_, _ = h.ctrl.CheckStatus(context.Background())
	ch := h.ctrl.Subscribe()

	require.NoError(t, h.ctrl.RequestQrCode(context.Background()))
	snap := h.ctrl.Snapshot()
	assert.Equal(t, QrCodeRequired, snap.State)
	assert.True(t, snap.QrVisible)
	assert.Equal(t, "data:image/png;base64,AAAA", snap.QrCode)

	h.ctrl.DismissQrCode()
	snap = h.ctrl.Snapshot()
	assert.Equal(t, QrCodeRequired, snap.State)
	assert.False(t, snap.QrVisible)
	assert.Empty(t, snap.QrCode)

	var types []events.EventType
	for _, ev := range drain(ch) {
		if ev.Type != events.BusyChanged {
			types = append(types, ev.Type)
		}
	}
	assert.Equal(t, []events.EventType{events.StateChanged, events.QrCodeIssued, events.QrCodeDismissed}, types)

	// Dismissing twice is a no-op.
	h.ctrl.DismissQrCode()
	assert.Empty(t, drain(ch))
}

func TestStateChangeDropsQrCode(t *testing.T) {
	tests := []struct {
		name    string
		resolve func(h *harness)
	}{
		{"recheck after login", func(h *harness) { h.sched.fireOnce() }},
		{"manual check", func(h *harness) { _, _ = h.ctrl.CheckStatus(context.Background()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeService{status: "offline", qrcode: "AAAA"})
			_, _ = h.ctrl.CheckStatus(context.Background())
			require.NoError(t, h.ctrl.AttemptLogin(context.Background()))
			require.NoError(t, h.ctrl.RequestQrCode(context.Background()))
			require.True(t, h.ctrl.Snapshot().QrVisible)
			ch := h.ctrl.Subscribe()

			h.svc.setStatus("online", nil)
			tt.resolve(h)

			snap := h.ctrl.Snapshot()
			assert.Equal(t, Online, snap.State)
			assert.False(t, snap.QrVisible)
			assert.Empty(t, snap.QrCode)

			var types []events.EventType
			for _, ev := range drain(ch) {
				if ev.Type == events.StateChanged || ev.Type == events.QrCodeDismissed {
					types = append(types, ev.Type)
				}
			}
			assert.Equal(t, []events.EventType{events.StateChanged, events.QrCodeDismissed}, types)
		})
	}
}

func TestSubscribeToFiltersByType(t *testing.T) {
	h := newHarness(t, &fakeService{status: "offline"})
	states := h.ctrl.SubscribeTo(events.StateChanged)

	_, _ = h.ctrl.CheckStatus(context.Background())
	require.NoError(t, h.ctrl.AttemptLogin(context.Background()))

	evs := drain(states)
	require.Len(t, evs, 2)
	for _, ev := range evs {
		assert.Equal(t, events.StateChanged, ev.Type)
	}
	assert.Equal(t, string(LoggingIn), evs[1].NewState)

	h.ctrl.Unsubscribe(states)
	_, ok := <-states
	assert.False(t, ok)
}

func TestManualCheckCancelsPendingRecheck(t *testing.T) {
	h := newHarness(t, &fakeService{status: "offline"})

	require.NoError(t, h.ctrl.AttemptLogin(context.Background()))
	pending := h.sched.active(false)
	require.Len(t, pending, 1)

	h.svc.setStatus("online", nil)
	got, err := h.ctrl.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Online, got)
	assert.False(t, h.ctrl.Snapshot().RecheckPending)
	assert.Equal(t, 1, pending[0].cancels)

	// A re-check that fires anyway after cancellation is ignored.
	h.svc.setStatus("offline", nil)
	pending[0].task()
	assert.Equal(t, Online, h.ctrl.State())
	assert.Equal(t, int32(1), h.svc.calls())
}

func TestEndToEndLoginFlow(t *testing.T) {
	h := newHarness(t, &fakeService{status: "offline"})
	ch := h.ctrl.Subscribe()
	assert.Equal(t, Checking, h.ctrl.State())

	require.NoError(t, h.ctrl.Start(context.Background()))
	assert.Equal(t, Offline, h.ctrl.State())
	assert.Equal(t, []string{NoticeOffline}, notices(drain(ch)))
	assert.Equal(t, []Action{ActionRefresh, ActionLogin, ActionQrCode}, h.ctrl.Actions())

	require.NoError(t, h.ctrl.AttemptLogin(context.Background()))
	assert.Equal(t, LoggingIn, h.ctrl.State())
	assert.Equal(t, []string{NoticeLoginSent}, notices(drain(ch)))
	recheck := h.sched.active(false)
	require.Len(t, recheck, 1)
	assert.Equal(t, 30*time.Second, recheck[0].delay)

	h.svc.setStatus("online", nil)
	h.clock.Advance(30 * time.Second)
	h.sched.fireOnce()

	snap := h.ctrl.Snapshot()
	assert.Equal(t, Online, snap.State)
	assert.Equal(t, NoticeOnline, snap.Notice)
	assert.Equal(t, h.clock.Now(), snap.LastChecked)
	assert.Equal(t, []Action{ActionRefresh}, h.ctrl.Actions())
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t, &fakeService{status: "online"})
	require.NoError(t, h.ctrl.Start(context.Background()))
	assert.Error(t, h.ctrl.Start(context.Background()))
	assert.Len(t, h.sched.active(true), 1)
}

func TestStopCancelsTimersOnce(t *testing.T) {
	h := newHarness(t, &fakeService{status: "offline"})
	ch := h.ctrl.Subscribe()
	require.NoError(t, h.ctrl.Start(context.Background()))
	require.NoError(t, h.ctrl.AttemptLogin(context.Background()))

	jobs := append(h.sched.active(true), h.sched.active(false)...)
	require.Len(t, jobs, 2)

	h.ctrl.Stop()
	h.ctrl.Stop()

	for _, j := range jobs {
		assert.Equal(t, 1, j.cancels)
	}

	drain(ch)
	_, ok := <-ch
	assert.False(t, ok)

	calls := h.svc.calls()
	for _, j := range jobs {
		j.task()
	}
	assert.Equal(t, calls, h.svc.calls())
	assert.Error(t, h.ctrl.Start(context.Background()))
}

func TestTransitionsRecorded(t *testing.T) {
	rec := &memRecorder{}
	svc := &fakeService{status: "offline"}
	sched := &fakeScheduler{}
	ctrl, err := New(svc, Options{Scheduler: sched, Recorder: rec})
	require.NoError(t, err)
	defer ctrl.Stop()

	_, _ = ctrl.CheckStatus(context.Background())
	require.NoError(t, ctrl.AttemptLogin(context.Background()))
	svc.setStatus("online", nil)
	sched.fireOnce()

	require.Eventually(t, func() bool { return rec.len() == 3 }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, Transition{From: Checking, To: Offline, Source: SourceManual, Message: NoticeOffline}, withoutTime(rec.transitions[0]))
	assert.Equal(t, LoggingIn, rec.transitions[1].To)
	assert.Equal(t, SourceLogin, rec.transitions[1].Source)
	assert.Equal(t, Online, rec.transitions[2].To)
	assert.Equal(t, SourceRecheck, rec.transitions[2].Source)
}

func withoutTime(t Transition) Transition {
	t.At = time.Time{}
	return t
}

func TestStateDisplay(t *testing.T) {
	assert.Equal(t, "在线", Online.Display().Label)
	assert.Equal(t, ToneDanger, Offline.Display().Tone)
	assert.Equal(t, "需要扫码", QrCodeRequired.Display().Label)
	assert.Equal(t, Offline.Display(), State("nope").Display())

	assert.Equal(t, Offline, ParseState("nope"))
	assert.Equal(t, LoggingIn, ParseState("logining"))

	assert.Equal(t, []Action{ActionRefresh}, ActionsFor(LoggingIn))
	assert.Equal(t, []Action{ActionRefresh, ActionQrCode}, ActionsFor(QrCodeRequired))
}
