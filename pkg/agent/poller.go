package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docuflow/waagent/pkg/driver"
)

// AttachmentKind classifies what, if anything, a message bubble carries.
type AttachmentKind int

const (
	AttachmentNone AttachmentKind = iota
	AttachmentDocument
	AttachmentImage
)

func (k AttachmentKind) String() string {
	switch k {
	case AttachmentDocument:
		return "document"
	case AttachmentImage:
		return "image"
	default:
		return "none"
	}
}

// rawIDPattern extracts the numeric identifier from a message's native
// data-id attribute (for example "false_966501234567@c.us_3EB0...").
var rawIDPattern = regexp.MustCompile(`(\d{7,15})@`)

// pollLoop runs poll cycles until a stop is requested, backing off when a
// cycle processed nothing.
func (a *Agent) pollLoop() {
	a.pollLog.Infof("poller started")

	for a.isRunning() {
		processed := a.pollCycle()
		a.drainCommands()

		interval := pollIdleInterval
		if processed > 0 {
			interval = pollActiveInterval
		}
		if !a.sleepLoop(interval) {
			return
		}
	}
}

// pollCycle discovers unread conversation rows and processes each distinct
// one. Row failures are logged and skipped; they never abort the cycle.
func (a *Agent) pollCycle() int {
	badges, err := a.page.Locator(a.sel.UnreadBadge).All()
	if err != nil {
		a.pollLog.Debugf("unread discovery failed: %v", err)
		return 0
	}

	processed := 0
	seen := make(map[string]struct{})

	for _, badge := range badges {
		if !a.isRunning() {
			return processed
		}

		// Overlapping indicator selectors can match the same row twice.
		identity := a.rowIdentity(badge)
		if _, dup := seen[identity]; dup {
			continue
		}
		seen[identity] = struct{}{}

		if a.processRow(badge) {
			processed++
		}
	}

	return processed
}

// rowIdentity derives a deduplication identity for an unread badge: the
// nearest ancestor's stable identifier when present, else the badge's
// on-screen position quantized to a coarse grid.
func (a *Agent) rowIdentity(badge driver.Locator) string {
	id, err := badge.Evaluate(`el => {
		const holder = el.closest('[data-id]');
		return holder ? holder.getAttribute('data-id') : null;
	}`, nil)
	if err == nil {
		if s, ok := id.(string); ok && s != "" {
			return "id:" + s
		}
	}

	box, err := badge.BoundingBox()
	if err != nil || box == nil {
		return fmt.Sprintf("ptr:%p", badge)
	}
	return fmt.Sprintf("pos:%d,%d", int(box.X)/8, int(box.Y)/8)
}

// processRow opens one unread conversation and handles its newest inbound
// message. Returns true if the row was fully processed.
func (a *Agent) processRow(badge driver.Locator) bool {
	if !a.openRow(badge) {
		a.pollLog.Debugf("all open strategies failed, skipping row")
		return false
	}

	// Let the conversation render before reading it.
	if !a.sleepLoop(renderSettleDelay) {
		return false
	}

	hint := a.senderHint()
	a.lastHint = hint
	if !senderAllowed(a.cfg.SenderFilter, hint) {
		a.pollLog.Infof("sender %q filtered out", hint)
		return false
	}

	msg, dataID := a.newestInbound()
	if msg == nil {
		a.pollLog.Debugf("could not resolve newest inbound message, abandoning row")
		return false
	}

	key := stableKey(msg, dataID, hint)
	kind := a.classify(msg)
	text := a.messageText(msg)
	a.pollLog.Infof("inbound message key=%s sender=%q kind=%s", key, hint, kind)

	meta := map[string]string{
		"message_key": key,
		"sender":      hint,
		"text":        text,
	}

	if kind != AttachmentNone {
		path := a.retrieveAttachment(msg, dataID, kind, hint)
		if path != "" && a.sink != nil {
			if a.sink.EnqueueFile(path, "whatsapp", meta) {
				a.SendOnce(key+":queued", "📥 Your document was received and queued for processing.", meta)
			} else {
				a.SendOnce(key+":rejected", "⚠️ Your document could not be queued for processing.", meta)
			}
		}
	}

	if a.cfg.AutoReply {
		a.SendOnce(key, a.cfg.AutoReplyText, meta)
	}

	return true
}

// openRow tries the ordered click strategies for opening a conversation
// row: the badge itself, ancestor containers, and finally a script-level
// click on the nearest clickable ancestor.
func (a *Agent) openRow(badge driver.Locator) bool {
	chain := []strategy{
		{name: "row click", run: func() error {
			return badge.Click(driver.ClickOptions{Timeout: mediumTimeout})
		}},
	}

	for _, ancestor := range a.sel.RowAncestors {
		sel := ancestor
		chain = append(chain, strategy{
			name: "ancestor click " + sel,
			run: func() error {
				return badge.Locator(sel).Click(driver.ClickOptions{Timeout: mediumTimeout})
			},
		})
	}

	chain = append(chain, strategy{name: "script click", run: func() error {
		_, err := badge.Evaluate(`el => {
			const target = el.closest("[role='listitem'],[role='button'],[data-id]") || el;
			target.click();
		}`, nil)
		return err
	}})

	return runChain(a.pollLog, "open row", chain)
}

// senderHint extracts a human-readable sender identity from the open
// conversation via an ordered fallback chain, then appends the raw numeric
// identifier from the newest message when one is available to maximize
// downstream match odds.
func (a *Agent) senderHint() string {
	hint := ""

	if name := a.headerName(); name != "" {
		hint = name
	} else if labeled := a.headerLabel(); labeled != "" {
		hint = labeled
	} else if line := a.headerFirstLine(); line != "" {
		hint = line
	}

	if raw := a.rawSenderID(); raw != "" {
		if hint == "" {
			hint = raw
		} else if !strings.Contains(hint, raw) {
			hint = hint + " " + raw
		}
	}

	return strings.TrimSpace(hint)
}

func (a *Agent) headerName() string {
	name := a.page.Locator(a.sel.HeaderName).First()
	if count, err := name.Count(); err != nil || count == 0 {
		return ""
	}
	if title, err := name.GetAttribute("title"); err == nil && strings.TrimSpace(title) != "" {
		return strings.TrimSpace(title)
	}
	text, err := name.InnerText(shortTimeout)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

func (a *Agent) headerLabel() string {
	labeled, err := a.page.Locator(a.sel.HeaderLabeled).All()
	if err != nil {
		return ""
	}
	for _, el := range labeled {
		label, err := el.GetAttribute("aria-label")
		if err != nil {
			continue
		}
		label = strings.TrimSpace(label)
		if label == "" || a.isPlaceholder(label) {
			continue
		}
		return label
	}
	return ""
}

func (a *Agent) headerFirstLine() string {
	text, err := a.page.Locator(a.sel.Header).First().InnerText(shortTimeout)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !a.isPlaceholder(line) {
			return line
		}
	}
	return ""
}

func (a *Agent) isPlaceholder(value string) bool {
	for _, placeholder := range a.sel.NamePlaceholders {
		if strings.EqualFold(value, placeholder) {
			return true
		}
	}
	return false
}

// rawSenderID parses the numeric identifier out of the newest inbound
// message's data-id attribute.
func (a *Agent) rawSenderID() string {
	last := a.page.Locator(a.sel.InboundMessage).Last()
	if count, err := last.Count(); err != nil || count == 0 {
		return ""
	}
	dataID, err := last.GetAttribute("data-id")
	if err != nil || dataID == "" {
		return ""
	}
	match := rawIDPattern.FindStringSubmatch(dataID)
	if match == nil {
		return ""
	}
	return match[1]
}

// newestInbound resolves the newest inbound message element, re-resolving
// through increasingly generic selectors since a re-render can invalidate
// earlier references. Returns nil when resolution fails entirely.
func (a *Agent) newestInbound() (driver.Locator, string) {
	last := a.page.Locator(a.sel.InboundMessage).Last()
	count, err := last.Count()
	if err != nil || count == 0 {
		return a.resolveByFallbacks("")
	}

	dataID, err := last.GetAttribute("data-id")
	if err != nil {
		dataID = ""
	}

	if dataID != "" {
		// Prefer the exact handle; the fallbacks re-find it after mutation.
		exact := a.page.Locator(fmt.Sprintf("[data-id=%q]", dataID))
		if c, err := exact.Count(); err == nil && c > 0 {
			return exact.First(), dataID
		}
	}

	return last, dataID
}

// resolveByFallbacks walks the generic selector chain for the newest
// inbound message: exact match (when dataID is known), scoped last of
// type, unscoped last of type.
func (a *Agent) resolveByFallbacks(dataID string) (driver.Locator, string) {
	if dataID != "" {
		exact := a.page.Locator(fmt.Sprintf("[data-id=%q]", dataID))
		if c, err := exact.Count(); err == nil && c > 0 {
			return exact.First(), dataID
		}
	}

	for _, sel := range a.sel.InboundMessageFallbacks {
		last := a.page.Locator(sel).Last()
		if c, err := last.Count(); err == nil && c > 0 {
			id, _ := last.GetAttribute("data-id")
			return last, id
		}
	}

	return nil, ""
}

// classify inspects a message bubble for attachment markers.
func (a *Agent) classify(msg driver.Locator) AttachmentKind {
	if count, err := msg.Locator(a.sel.DocumentBubble).Count(); err == nil && count > 0 {
		return AttachmentDocument
	}
	if count, err := msg.Locator(a.sel.ImageBubble).Count(); err == nil && count > 0 {
		return AttachmentImage
	}
	return AttachmentNone
}

// messageText extracts the visible text of a message, empty when absent.
func (a *Agent) messageText(msg driver.Locator) string {
	span := msg.Locator(a.sel.MessageText).First()
	if count, err := span.Count(); err != nil || count == 0 {
		return ""
	}
	text, err := span.InnerText(shortTimeout)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// senderAllowed applies the allow-list filter: both sides are normalized
// (digits tail for phone-like values, alphanumeric stem otherwise) and one
// must contain the other. An empty filter allows everyone.
func senderAllowed(filter, hint string) bool {
	if strings.TrimSpace(filter) == "" {
		return true
	}

	nf := normalizeIdentity(filter)
	nh := normalizeIdentity(hint)
	if nf == "" || nh == "" {
		return false
	}
	return strings.Contains(nf, nh) || strings.Contains(nh, nf)
}

// normalizeIdentity reduces an identity to a comparable form: the trailing
// nine digits when the value looks like a phone number, else its lowercase
// alphanumeric characters.
func normalizeIdentity(value string) string {
	var digits strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}

	d := digits.String()
	if len(d) >= 7 {
		if len(d) > 9 {
			d = d[len(d)-9:]
		}
		return d
	}

	var alnum strings.Builder
	for _, r := range strings.ToLower(value) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			alnum.WriteRune(r)
		}
	}
	return alnum.String()
}
