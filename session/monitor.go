package session

import (
	"context"
	"sync"
	"time"

	"github.com/repclub/guard/internal/clock"
)

// State is the monitor lifecycle state.
type State uint8

const (
	// StateInactive means no session is being tracked.
	StateInactive State = iota
	// StateActive means the session is live and timers are armed.
	StateActive
	// StateWarning means the warning window has begun.
	StateWarning
	// StateExpired means the session timed out; terminal until Start.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateActive:
		return "active"
	case StateWarning:
		return "warning"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// activityThrottle collapses bursts of activity events (continuous
// pointer movement) into at most one timer reset per interval.
const activityThrottle = time.Second

// Hooks are the monitor's external collaborators. All hooks are invoked
// outside the monitor mutex, so they may call back into the monitor.
type Hooks struct {
	// OnWarning surfaces the warning countdown when ShowWarningDialog is
	// set. remaining is the time left before forced logout.
	OnWarning func(remaining time.Duration)
	// OnExpired fires when the session transitions to Expired.
	OnExpired func()
	// SignOut is the external sign-out call. Its failure never blocks
	// local invalidation.
	SignOut func(ctx context.Context) error
	// OnSignOutError observes a failed SignOut; the monitor is already
	// locally signed out when it fires.
	OnSignOutError func(err error)
}

// Option adjusts monitor construction.
type Option func(*Monitor)

// WithClock substitutes the wall clock, for tests.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) {
		m.clk = c
	}
}

// Monitor enforces the per-role session timeout lifecycle. One Monitor
// serves one session at a time. The host calls Activity on user input,
// Heartbeat periodically, Hidden/Visible on visibility changes, and
// Logout on explicit sign-out. Explicit Start/Dispose replaces any
// implicit subscription lifecycle; there is nothing to leak when the
// host forgets a closure.
type Monitor struct {
	mu    sync.Mutex
	clk   clock.Clock
	hooks Hooks

	cfg   TimeoutConfig
	state State

	// gen invalidates previously scheduled timers: every reset increments
	// it and callbacks re-check it under mu before acting. This is the
	// atomic cancel-then-reschedule discipline that stands in for a lock
	// around the timer set.
	gen uint64

	warnTimer   *time.Timer
	logoutTimer *time.Timer

	lastActivity     time.Time
	lastActivityMark time.Time
	pendingLogout    bool
	signedOut        bool
}

// NewMonitor creates a monitor for cfg. Start arms it.
func NewMonitor(cfg TimeoutConfig, hooks Hooks, opts ...Option) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{
		clk:   clock.System{},
		hooks: hooks,
		cfg:   cfg,
		state: StateInactive,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State reports the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Start begins tracking a new session. With a disabled config the
// monitor stays Inactive. Starting over an existing session is a full
// reset.
func (m *Monitor) Start() {
	m.mu.Lock()
	if !m.cfg.Enabled {
		m.cancelTimersLocked()
		m.state = StateInactive
		m.mu.Unlock()
		return
	}
	now := m.clk.Now()
	m.state = StateActive
	m.signedOut = false
	m.pendingLogout = false
	m.lastActivity = now
	m.lastActivityMark = time.Time{}
	m.rescheduleLocked(m.cfg.Timeout - m.cfg.Warning)
	m.mu.Unlock()
}

// Activity records user input at now. It is throttled to one reset per
// second and only extends while Active with ExtendOnActivity set.
// Activity during Warning deliberately does not cancel the warning: a
// stuck or automated input source must not keep a session alive;
// extension from the warning dialog goes through ExtendSession.
func (m *Monitor) Activity(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || !m.cfg.ExtendOnActivity {
		return
	}
	if !m.lastActivityMark.IsZero() && now.Sub(m.lastActivityMark) < activityThrottle {
		return
	}
	m.lastActivityMark = now
	m.lastActivity = now
	m.rescheduleLocked(m.cfg.Timeout - m.cfg.Warning)
}

// ExtendSession performs a full reset from Active or Warning. Expired is
// terminal until a new Start; Inactive has nothing to extend.
func (m *Monitor) ExtendSession() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive && m.state != StateWarning {
		return
	}
	now := m.clk.Now()
	m.state = StateActive
	m.lastActivity = now
	m.lastActivityMark = time.Time{}
	m.rescheduleLocked(m.cfg.Timeout - m.cfg.Warning)
}

// Heartbeat recomputes the lifecycle from wall-clock time. The host
// calls it periodically; scheduled timers are only an optimization and
// a suspended host must still expire correctly once it heartbeats.
// It returns the state after recomputation.
func (m *Monitor) Heartbeat(now time.Time) State {
	m.mu.Lock()
	state, after := m.recomputeLocked(now)
	m.mu.Unlock()
	if after != nil {
		after()
	}
	return state
}

// Hidden tells the monitor the session became invisible (backgrounded
// tab, closed lid). With LogoutOnClose a pending-logout marker is
// recorded; hosts persist it via LogoutPending so a tab that never comes
// back is signed out on the next launch. A session that does come back
// gets its verdict from Visible's wall-clock recompute instead.
func (m *Monitor) Hidden(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive && m.state != StateWarning {
		return
	}
	if m.cfg.LogoutOnClose {
		m.pendingLogout = true
	}
}

// LogoutPending reports whether the session was hidden under
// LogoutOnClose and has not become visible since.
func (m *Monitor) LogoutPending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingLogout
}

// Visible recomputes elapsed time from wall-clock timestamps after the
// host becomes visible again. Backgrounding may have suspended every
// scheduled callback, so timer counts are not trusted: if the full
// timeout elapsed the session expires immediately, otherwise tracking
// resumes with the correctly reduced remaining time.
func (m *Monitor) Visible(now time.Time) State {
	m.mu.Lock()
	m.pendingLogout = false
	state, after := m.recomputeLocked(now)
	m.mu.Unlock()
	if after != nil {
		after()
	}
	return state
}

// Logout ends the session locally and delegates to the external
// sign-out collaborator. It is idempotent, cancels all pending timers,
// and always leaves the monitor Inactive even when the external call
// fails; the server remains the ultimate trust boundary.
func (m *Monitor) Logout(ctx context.Context) {
	m.mu.Lock()
	needSignOut := m.endSessionLocked()
	m.mu.Unlock()

	if needSignOut {
		m.callSignOut(ctx)
	}
}

// endSessionLocked tears the session down locally and reports whether
// the external sign-out still needs to run.
func (m *Monitor) endSessionLocked() bool {
	hadSession := m.state == StateActive || m.state == StateWarning
	m.cancelTimersLocked()
	m.state = StateInactive
	m.pendingLogout = false
	needSignOut := hadSession && !m.signedOut
	if needSignOut {
		m.signedOut = true
	}
	return needSignOut
}

// Reconfigure applies a hot config change as an immediate reset. The
// config-change notification from the timeout watcher lands here.
func (m *Monitor) Reconfigure(cfg TimeoutConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cfg = cfg
	switch m.state {
	case StateActive, StateWarning:
		if !cfg.Enabled {
			m.cancelTimersLocked()
			m.state = StateInactive
			return nil
		}
		m.state = StateActive
		m.lastActivity = m.clk.Now()
		m.lastActivityMark = time.Time{}
		m.rescheduleLocked(cfg.Timeout - cfg.Warning)
	}
	return nil
}

// Dispose cancels all timers and detaches without signing out.
func (m *Monitor) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelTimersLocked()
	m.state = StateInactive
}

// recomputeLocked derives the correct state from wall-clock elapsed time
// and reschedules timers for the corrected remainder. It returns the new
// state plus a callback (hook invocations) to run after unlocking.
func (m *Monitor) recomputeLocked(now time.Time) (State, func()) {
	if m.state != StateActive && m.state != StateWarning {
		return m.state, nil
	}

	elapsed := now.Sub(m.lastActivity)
	switch {
	case elapsed >= m.cfg.Timeout:
		return StateExpired, m.expireLocked()

	case elapsed >= m.cfg.Timeout-m.cfg.Warning:
		remaining := m.cfg.Timeout - elapsed
		if m.state == StateActive {
			return StateWarning, m.enterWarningLocked(remaining)
		}
		// Already warning; correct the logout timer to the wall-clock
		// remainder.
		m.rescheduleLogoutLocked(remaining)
		return StateWarning, nil

	default:
		m.state = StateActive
		m.rescheduleLocked(m.cfg.Timeout - m.cfg.Warning - elapsed)
		return StateActive, nil
	}
}

// rescheduleLocked atomically replaces the timer set: it bumps the
// generation (orphaning every outstanding timer), then arms a fresh
// warning timer.
func (m *Monitor) rescheduleLocked(warnDelay time.Duration) {
	m.cancelTimersLocked()
	gen := m.gen

	if warnDelay < 0 {
		warnDelay = 0
	}
	m.warnTimer = time.AfterFunc(warnDelay, func() {
		m.warnFired(gen)
	})
}

func (m *Monitor) rescheduleLogoutLocked(remaining time.Duration) {
	m.cancelTimersLocked()
	gen := m.gen

	if remaining < 0 {
		remaining = 0
	}
	m.logoutTimer = time.AfterFunc(remaining, func() {
		m.logoutFired(gen)
	})
}

// cancelTimersLocked stops both timers and invalidates their callbacks.
// Stop can miss a callback already in flight, which is why the
// generation check exists.
func (m *Monitor) cancelTimersLocked() {
	m.gen++
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.logoutTimer != nil {
		m.logoutTimer.Stop()
		m.logoutTimer = nil
	}
}

func (m *Monitor) warnFired(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateActive {
		m.mu.Unlock()
		return
	}
	after := m.enterWarningLocked(m.cfg.Warning)
	m.mu.Unlock()
	if after != nil {
		after()
	}
}

func (m *Monitor) logoutFired(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateWarning {
		m.mu.Unlock()
		return
	}
	after := m.expireLocked()
	m.mu.Unlock()
	if after != nil {
		after()
	}
}

func (m *Monitor) enterWarningLocked(remaining time.Duration) func() {
	m.state = StateWarning
	m.rescheduleLogoutLocked(remaining)

	if !m.cfg.ShowWarningDialog || m.hooks.OnWarning == nil {
		return nil
	}
	onWarning := m.hooks.OnWarning
	return func() {
		onWarning(remaining)
	}
}

func (m *Monitor) expireLocked() func() {
	m.cancelTimersLocked()
	m.state = StateExpired
	needSignOut := !m.signedOut
	if needSignOut {
		m.signedOut = true
	}

	onExpired := m.hooks.OnExpired
	return func() {
		if onExpired != nil {
			onExpired()
		}
		if needSignOut {
			m.callSignOut(context.Background())
		}
	}
}

func (m *Monitor) callSignOut(ctx context.Context) {
	if m.hooks.SignOut == nil {
		return
	}
	if err := m.hooks.SignOut(ctx); err != nil && m.hooks.OnSignOutError != nil {
		m.hooks.OnSignOutError(err)
	}
}
