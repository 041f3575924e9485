package agent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/docuflow/waagent/pkg/config"
)

func TestSenderAllowed(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		hint   string
		want   bool
	}{
		{
			name:   "empty filter allows everyone",
			filter: "",
			hint:   "Anyone",
			want:   true,
		},
		{
			name:   "phone filter matches formatted international number",
			filter: "50712345",
			hint:   "Acme Co +966 50 712 3456",
			want:   true,
		},
		{
			name:   "phone filter rejects different number",
			filter: "50712345",
			hint:   "Globex +966 55 999 8877",
			want:   false,
		},
		{
			name:   "name filter matches case-insensitively",
			filter: "Acme Co",
			hint:   "ACME CO.",
			want:   true,
		},
		{
			name:   "name filter rejects other names",
			filter: "Acme",
			hint:   "Globex Corp",
			want:   false,
		},
		{
			name:   "filter set but hint empty",
			filter: "Acme",
			hint:   "",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := senderAllowed(tt.filter, tt.hint); got != tt.want {
				t.Errorf("senderAllowed(%q, %q) = %v, want %v", tt.filter, tt.hint, got, tt.want)
			}
		})
	}
}

func TestNormalizeIdentity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"phone with country code keeps trailing nine digits", "+966 50 712 3456", "507123456"},
		{"short digit run is kept whole", "50712345", "50712345"},
		{"name reduces to alphanumeric stem", "Acme Co.", "acmeco"},
		{"mixed short value keeps letters", "Team 42", "team42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeIdentity(tt.in); got != tt.want {
				t.Errorf("normalizeIdentity(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOpenRowFallbackChain(t *testing.T) {
	page := newFakePage()
	a := newTestAgent(config.Default(), page, nil)

	// First two click strategies fail; the third (second ancestor) works.
	firstAncestor := el().withClickErrs(errors.New("element intercepts pointer events"))
	secondAncestor := el()
	badge := el().
		withClickErrs(errors.New("element detached")).
		withChild(a.sel.RowAncestors[0], firstAncestor).
		withChild(a.sel.RowAncestors[1], secondAncestor)
	page.add(a.sel.UnreadBadge, badge)

	badgeLoc := page.Locator(a.sel.UnreadBadge).First()
	if !a.openRow(badgeLoc) {
		t.Fatal("openRow should succeed via the third strategy")
	}
	if secondAncestor.clicks != 1 {
		t.Errorf("second ancestor clicks = %d, want 1", secondAncestor.clicks)
	}
}

func TestOpenRowAllStrategiesFail(t *testing.T) {
	page := newFakePage()
	a := newTestAgent(config.Default(), page, nil)

	badge := el().withClickErrs(errors.New("detached"))
	page.add(a.sel.UnreadBadge, badge)

	// No ancestors and no evaluate support: every strategy fails.
	if a.openRow(page.Locator(a.sel.UnreadBadge).First()) {
		t.Fatal("openRow should fail when every strategy fails")
	}
}

// wireConversation registers a full unread-conversation fixture: one badge,
// a titled header, and a newest inbound message with the given data-id.
func wireConversation(page *fakePage, sel Selectors, dataID, sender, text string) (badge, msg, composer *fakeElement) {
	msg = el().withAttr("data-id", dataID)
	msg.withChild(sel.MessageText, el().withText(text))

	badge = el()
	badge.evalFn = func(script string, arg any) (any, error) {
		return dataID, nil
	}

	composer = el()

	page.add(sel.UnreadBadge, badge)
	page.add(sel.HeaderName, el().withAttr("title", sender))
	page.add(sel.InboundMessage, msg)
	page.add(fmt.Sprintf("[data-id=%q]", dataID), msg)
	for _, fallback := range sel.InboundMessageFallbacks {
		page.add(fallback, msg)
	}
	page.add(sel.Composer[0], composer)
	return badge, msg, composer
}

func TestPollCycleAcknowledgesOnce(t *testing.T) {
	cfg := config.Default()
	cfg.AutoReply = true
	cfg.AutoReplyText = "got it"

	page := newFakePage()
	a := newTestAgent(cfg, page, nil)
	wireConversation(page, a.sel, "false_966501234567@c.us_A1", "Acme Co", "hello")

	if processed := a.pollCycle(); processed != 1 {
		t.Fatalf("first cycle processed = %d, want 1", processed)
	}
	if got := page.kb.count("press:Enter"); got != 1 {
		t.Fatalf("deliveries after first cycle = %d, want 1", got)
	}

	// The badge is still present next cycle; the dedup cache must prevent
	// a second acknowledgement for the same stable key.
	a.pollCycle()
	if got := page.kb.count("press:Enter"); got != 1 {
		t.Errorf("deliveries after second cycle = %d, want 1", got)
	}
}

func TestPollCycleDeduplicatesOverlappingBadges(t *testing.T) {
	cfg := config.Default()
	page := newFakePage()
	a := newTestAgent(cfg, page, nil)
	badge, _, _ := wireConversation(page, a.sel, "false_966501234567@c.us_B2", "Acme Co", "hi")

	// A second badge resolving to the same row identity, as overlapping
	// indicator selectors produce in practice.
	twin := el()
	twin.evalFn = badge.evalFn
	page.add(a.sel.UnreadBadge, twin)

	if processed := a.pollCycle(); processed != 1 {
		t.Errorf("processed = %d, want 1 despite duplicate badges", processed)
	}
	if badge.clicks+twin.clicks != 1 {
		t.Errorf("total row opens = %d, want 1", badge.clicks+twin.clicks)
	}
}

func TestPollCycleSenderFiltered(t *testing.T) {
	cfg := config.Default()
	cfg.AutoReply = true
	cfg.SenderFilter = "Globex"

	page := newFakePage()
	a := newTestAgent(cfg, page, nil)
	wireConversation(page, a.sel, "false_966501234567@c.us_C3", "Acme Co", "hello")

	if processed := a.pollCycle(); processed != 0 {
		t.Errorf("processed = %d, want 0 for filtered sender", processed)
	}
	if got := page.kb.count("press:Enter"); got != 0 {
		t.Errorf("deliveries = %d, want 0", got)
	}
}

func TestSenderHintAppendsRawID(t *testing.T) {
	page := newFakePage()
	a := newTestAgent(config.Default(), page, nil)
	wireConversation(page, a.sel, "false_966501234567@c.us_D4", "Acme Co", "hello")

	hint := a.senderHint()
	if hint != "Acme Co 966501234567" {
		t.Errorf("senderHint() = %q, want name plus raw identifier", hint)
	}
}

func TestClassify(t *testing.T) {
	page := newFakePage()
	a := newTestAgent(config.Default(), page, nil)

	doc := el().withChild(a.sel.DocumentBubble, el())
	img := el().withChild(a.sel.ImageBubble, el())
	plain := el()

	page.add("doc", doc)
	page.add("img", img)
	page.add("plain", plain)

	if got := a.classify(page.Locator("doc").First()); got != AttachmentDocument {
		t.Errorf("document classify = %v", got)
	}
	if got := a.classify(page.Locator("img").First()); got != AttachmentImage {
		t.Errorf("image classify = %v", got)
	}
	if got := a.classify(page.Locator("plain").First()); got != AttachmentNone {
		t.Errorf("plain classify = %v", got)
	}
}
