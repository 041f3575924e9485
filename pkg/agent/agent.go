// Package agent drives a web-based chat client through DOM automation:
// it watches for inbound messages, retrieves their attachments, hands them
// to a file-processing sink, and delivers replies with at-most-once
// semantics. The DOM is treated as an unstable external system; every
// operation that touches it is a fallback chain with bounded timeouts.
package agent

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/docuflow/waagent/pkg/config"
	"github.com/docuflow/waagent/pkg/driver"
	"github.com/docuflow/waagent/pkg/logging"
	"github.com/docuflow/waagent/pkg/security/sandbox"
)

const providerURL = "https://web.whatsapp.com/"

// Operation timing. Timeouts are per DOM operation so one hung selector
// cannot stall the session; they are recoverable failures that fall
// through to the next strategy or cycle.
const (
	shortTimeout  = 2 * time.Second
	mediumTimeout = 5 * time.Second
	longTimeout   = 20 * time.Second
	navTimeout    = 60 * time.Second

	renderSettleDelay = time.Second

	authCheckInterval  = 2 * time.Second
	pollActiveInterval = 2 * time.Second
	pollIdleInterval   = 5 * time.Second
	queueDrainSpacing  = 3 * time.Second
	stopJoinTimeout    = 5 * time.Second
)

// State is the session lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateLaunching
	StateAwaitingAuth
	StateListening
	StateCrashed
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateLaunching:
		return "launching"
	case StateAwaitingAuth:
		return "awaiting-auth"
	case StateListening:
		return "listening"
	case StateCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// FileSink consumes retrieved attachments. The return value decides which
// acknowledgement the sender receives.
type FileSink interface {
	EnqueueFile(path, sourceTag string, metadata map[string]string) bool
}

// LaunchFunc opens the browser page the agent drives and returns a close
// function for teardown.
type LaunchFunc func() (driver.Page, func() error, error)

// Options configures a new Agent.
type Options struct {
	Config config.Config

	// Launch opens the browser. Required.
	Launch LaunchFunc

	// Sink receives retrieved attachment files. Optional.
	Sink FileSink

	// Status receives human-readable status updates for display. Optional.
	Status func(string)

	// Selectors overrides the default locator set. Nil uses defaults.
	Selectors *Selectors
}

// Agent is one automation session. A single goroutine, the automation
// loop, owns the page and all DOM operations; external callers interact
// through RunOnLoop, the command queue, and the processing-event callback.
// Only one Agent may drive a given profile directory at a time.
type Agent struct {
	cfg    config.Config
	sel    Selectors
	launch LaunchFunc
	sink   FileSink
	status func(string)

	state    atomic.Int32
	identity atomic.Value // string, set once authenticated

	mu      sync.Mutex // guards start/stop transitions
	running atomic.Bool
	stopCh  chan struct{}
	done    chan struct{}
	tasks   chan func()

	page         driver.Page
	closeBrowser func() error
	lastHint     string // sender of the conversation currently open; loop-owned

	dedup      *DedupCache
	queue      *CommandQueue
	guard      *sandbox.Guard
	composerMu sync.Mutex

	log       *logging.Logger
	pollLog   *logging.Logger
	replyLog  *logging.Logger
	attachLog *logging.Logger
}

// profiles tracks which profile directories have a live session, enforcing
// the one-agent-per-profile invariant.
var (
	profilesMu sync.Mutex
	profiles   = make(map[string]*Agent)
)

// New creates an agent in the Stopped state.
func New(opts Options) (*Agent, error) {
	if opts.Launch == nil {
		return nil, fmt.Errorf("launch function is required")
	}

	sel := DefaultSelectors()
	if opts.Selectors != nil {
		sel = *opts.Selectors
	}

	status := opts.Status
	if status == nil {
		status = func(string) {}
	}

	guard, err := sandbox.NewGuard(opts.Config.DownloadsDir)
	if err != nil {
		return nil, fmt.Errorf("invalid downloads directory: %w", err)
	}

	log, _ := logging.NewLogger("session")
	pollLog, _ := logging.NewLogger("poller")
	replyLog, _ := logging.NewLogger("reply")
	attachLog, _ := logging.NewLogger("attach")

	a := &Agent{
		cfg:       opts.Config,
		sel:       sel,
		launch:    opts.Launch,
		sink:      opts.Sink,
		status:    status,
		dedup:     NewDedupCache(DefaultDedupCapacity),
		queue:     NewCommandQueue(),
		guard:     guard,
		log:       log,
		pollLog:   pollLog,
		replyLog:  replyLog,
		attachLog: attachLog,
	}
	a.state.Store(int32(StateStopped))
	a.identity.Store("")
	return a, nil
}

// State returns the current lifecycle state.
func (a *Agent) State() State {
	return State(a.state.Load())
}

// Identity returns the authenticated identity, empty until Listening.
func (a *Agent) Identity() string {
	return a.identity.Load().(string)
}

// Queue returns the cross-context command queue.
func (a *Agent) Queue() *CommandQueue {
	return a.queue
}

func (a *Agent) setState(s State) {
	a.state.Store(int32(s))
	a.log.Infof("session state: %s", s)
}

func (a *Agent) setStatus(msg string) {
	a.log.Infof("status: %s", msg)
	a.status(msg)
}

// Start launches the automation loop. It returns once the loop goroutine
// is running; authentication progress is reported through the status sink.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running.Load() {
		return fmt.Errorf("agent is already running")
	}

	profile := filepath.Clean(a.cfg.ProfileDir)
	profilesMu.Lock()
	if owner, ok := profiles[profile]; ok && owner != a {
		profilesMu.Unlock()
		return fmt.Errorf("profile %s is already in use by another session", profile)
	}
	profiles[profile] = a
	profilesMu.Unlock()

	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	a.tasks = make(chan func(), 16)
	a.running.Store(true)
	a.setState(StateLaunching)

	go a.run()
	return nil
}

// Stop signals the loop to shut down and waits up to a bounded join for
// teardown to finish. Safe to call when already stopped.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running.Load() {
		return
	}

	a.setStatus("Stopping agent...")
	a.running.Store(false)
	close(a.stopCh)

	select {
	case <-a.done:
	case <-time.After(stopJoinTimeout):
		a.log.Warnf("shutdown join timed out after %s", stopJoinTimeout)
	}

	a.releaseProfile()
}

func (a *Agent) releaseProfile() {
	profile := filepath.Clean(a.cfg.ProfileDir)
	profilesMu.Lock()
	if profiles[profile] == a {
		delete(profiles, profile)
	}
	profilesMu.Unlock()
}

// loopChannels snapshots the task and stop channels of the current
// session under the lifecycle lock. Start swaps these fields on restart,
// so callers on other goroutines must never read them directly; the
// snapshot pins one consistent session even when a Stop/Start cycle races
// the caller. The second return is false when no session is running.
func (a *Agent) loopChannels() (chan func(), chan struct{}, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running.Load() {
		return nil, nil, false
	}
	return a.tasks, a.stopCh, true
}

// RunOnLoop submits fn to the automation loop and waits for it to run.
// This is the only way external goroutines may touch the page.
func (a *Agent) RunOnLoop(fn func()) error {
	tasks, stop, ok := a.loopChannels()
	if !ok {
		return fmt.Errorf("agent loop is not running")
	}

	ran := make(chan struct{})
	wrapped := func() {
		defer close(ran)
		fn()
	}

	select {
	case tasks <- wrapped:
	case <-stop:
		return fmt.Errorf("agent stopped before task was scheduled")
	}

	select {
	case <-ran:
		return nil
	case <-stop:
		return fmt.Errorf("agent stopped before task completed")
	}
}

// submit enqueues fn on the loop without waiting. Used for deferred work
// and for notifications arriving from other goroutines; a submit landing
// after the session stopped is dropped.
func (a *Agent) submit(fn func()) {
	tasks, stop, ok := a.loopChannels()
	if !ok {
		return
	}

	select {
	case tasks <- fn:
	case <-stop:
	}
}

// isRunning reports whether no stop has been requested.
func (a *Agent) isRunning() bool {
	return a.running.Load()
}

// pause sleeps for d without servicing loop tasks. Required wherever a
// serviced task could re-enter a lock the caller still holds, such as the
// composer lock during context restoration. Returns false if a stop was
// requested.
func (a *Agent) pause(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-a.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// sleepLoop sleeps for d on the loop, servicing submitted tasks while
// waiting. Returns false if a stop was requested. Must not be called with
// the composer lock held; use pause there instead.
func (a *Agent) sleepLoop(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case <-a.stopCh:
			return false
		case fn := <-a.tasks:
			fn()
		case <-timer.C:
			return true
		}
	}
}

// run is the automation loop body: launch, authenticate, poll, teardown.
func (a *Agent) run() {
	defer close(a.done)
	defer a.teardown()

	a.setStatus("Starting browser...")
	page, closeBrowser, err := a.launch()
	if err != nil {
		a.setState(StateCrashed)
		a.setStatus(fmt.Sprintf("Error: %v", err))
		return
	}
	a.page = page
	a.closeBrowser = closeBrowser

	if a.cfg.UserAgent != "" {
		if err := a.page.SetExtraHTTPHeaders(map[string]string{"User-Agent": a.cfg.UserAgent}); err != nil {
			a.log.Warnf("failed to set user agent header: %v", err)
		}
	}

	a.setStatus("Navigating to WhatsApp Web...")
	if err := a.page.Navigate(providerURL, navTimeout); err != nil {
		a.setStatus("Failed to load WhatsApp Web. Check connection.")
		a.setState(StateCrashed)
		return
	}

	a.setState(StateAwaitingAuth)
	a.setStatus("Checking login status...")

	for a.isRunning() {
		authenticated, err := a.checkAuthenticated()
		if err != nil {
			a.log.Warnf("login check failed: %v", err)
			if !a.sleepLoop(pollIdleInterval) {
				return
			}
			continue
		}

		if authenticated {
			a.identity.Store("whatsapp:" + filepath.Base(a.cfg.ProfileDir))
			a.setState(StateListening)
			a.setStatus("Connected and listening.")
			a.pollLoop()
			return
		}

		a.captureLoginChallenge()

		if !a.sleepLoop(authCheckInterval) {
			return
		}
	}
}

// checkAuthenticated reports whether the authenticated marker is present.
func (a *Agent) checkAuthenticated() (bool, error) {
	count, err := a.page.Locator(a.sel.AuthenticatedMarker).Count()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// captureLoginChallenge screenshots the login code, if rendered, to an
// addressable artifact the host can display. The code refreshes often, so
// this repeats every auth-check interval until authenticated.
func (a *Agent) captureLoginChallenge() {
	challenge := a.page.Locator(a.sel.LoginChallenge)
	count, err := challenge.Count()
	if err != nil || count == 0 {
		return
	}

	qrPath := filepath.Join(a.cfg.ProfileDir, "qr.png")
	if err := challenge.First().Screenshot(qrPath); err != nil {
		a.log.Warnf("failed to capture login code: %v", err)
		return
	}
	a.setStatus(fmt.Sprintf("Scan the QR code to connect: %s", qrPath))
}

// teardown closes browser resources and settles the final state.
func (a *Agent) teardown() {
	a.running.Store(false)
	defer a.releaseProfile()

	if a.closeBrowser != nil {
		if err := a.closeBrowser(); err != nil {
			a.log.Warnf("browser teardown: %v", err)
		}
		a.closeBrowser = nil
	}
	a.page = nil

	if a.State() != StateCrashed {
		a.setState(StateStopped)
		a.setStatus("Agent stopped.")
	}
}
