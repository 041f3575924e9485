package agent

import (
	"strings"
	"time"

	"github.com/docuflow/waagent/pkg/driver"
)

// Reply retry schedule: a burst of immediate retries, then one deferred
// pass scheduled on the loop before the attempt is abandoned.
const (
	replyRetries    = 4
	replySpacing    = 350 * time.Millisecond
	deferredDelay   = 2 * time.Second
	deferredRetries = 3
	deferredSpacing = 500 * time.Millisecond
)

// SendOnce delivers text into the open conversation at most once per key.
// A key already in the dedup cache is a no-op. On retry exhaustion one
// deferred pass is scheduled on the automation loop; after that the
// attempt is abandoned and logged. SendOnce never fails loudly — the
// at-most-once guarantee matters more than any single delivery.
//
// Must be called on the automation loop (the poller and the notification
// paths already are).
func (a *Agent) SendOnce(key, text string, metadata map[string]string) {
	if !a.dedup.ShouldSend(key) {
		a.replyLog.Debugf("key %s already sent, skipping", key)
		return
	}

	for attempt := 1; attempt <= replyRetries; attempt++ {
		if a.Deliver(text) {
			a.dedup.MarkSent(key)
			a.replyLog.Infof("sent key=%s (attempt %d) meta=%v", key, attempt, metadata)
			return
		}
		if !a.sleepLoop(replySpacing) {
			return
		}
	}

	a.replyLog.Warnf("delivery failed for key=%s, scheduling deferred retry", key)
	time.AfterFunc(deferredDelay, func() {
		a.submit(func() {
			a.deferredSend(key, text)
		})
	})
}

// deferredSend is the single additional delivery pass after the immediate
// retry budget is exhausted.
func (a *Agent) deferredSend(key, text string) {
	if !a.dedup.ShouldSend(key) {
		return
	}

	for attempt := 1; attempt <= deferredRetries; attempt++ {
		if a.Deliver(text) {
			a.dedup.MarkSent(key)
			a.replyLog.Infof("deferred send succeeded for key=%s (attempt %d)", key, attempt)
			return
		}
		if !a.sleepLoop(deferredSpacing) {
			return
		}
	}

	a.replyLog.Errorf("abandoning delivery for key=%s after deferred retries", key)
}

// Deliver types text into the active conversation's composer and submits
// it. Returns false, without raising, when no composer can be found after
// every fallback. The composer lock serializes concurrent callers so the
// poller's acknowledgements and queued notifications never interleave
// keystrokes.
func (a *Agent) Deliver(text string) bool {
	a.composerMu.Lock()
	defer a.composerMu.Unlock()

	composer := a.findComposer()
	if composer == nil {
		// An open viewer or menu may be covering the input region.
		a.dismissOverlay()
		composer = a.findComposer()
	}
	if composer == nil {
		if a.restoreContext(a.lastHint) {
			composer = a.findComposer()
		}
	}
	if composer == nil {
		a.replyLog.Warnf("composer not found after all fallbacks")
		return false
	}

	if err := composer.Focus(shortTimeout); err != nil {
		a.replyLog.Debugf("composer focus failed: %v", err)
		return false
	}

	kb := a.page.Keyboard()

	// Clear any draft left behind by a previous failed attempt.
	if err := composer.Press("Control+A", shortTimeout); err == nil {
		_ = kb.Press("Delete")
	}

	// Line breaks must not submit, so insert lines with Shift+Enter
	// between them and confirm once at the end.
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if err := kb.InsertText(line); err != nil {
			a.replyLog.Debugf("text insert failed: %v", err)
			return false
		}
		if i < len(lines)-1 {
			if err := kb.Press("Shift+Enter"); err != nil {
				a.replyLog.Debugf("line break failed: %v", err)
				return false
			}
		}
	}

	if err := kb.Press("Enter"); err != nil {
		a.replyLog.Debugf("submit failed: %v", err)
		return false
	}

	return true
}

// findComposer walks the composer selector chain and returns the first
// visible match, or nil.
func (a *Agent) findComposer() driver.Locator {
	for _, sel := range a.sel.Composer {
		candidate := a.page.Locator(sel).First()
		count, err := candidate.Count()
		if err != nil || count == 0 {
			continue
		}
		visible, err := candidate.IsVisible()
		if err != nil || !visible {
			continue
		}
		return candidate
	}
	return nil
}
