package agent

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/waagent/pkg/driver"
)

// downloadTimeout bounds each individual retrieval strategy.
const downloadTimeout = 10 * time.Second

// blobFetchScript reads the bytes behind a blob resource URL in the page
// context and returns them base64-encoded for local persistence.
const blobFetchScript = `async el => {
	const url = el.href || el.src;
	if (!url || !url.startsWith('blob:')) {
		return null;
	}
	const resp = await fetch(url);
	const buf = await resp.arrayBuffer();
	const bytes = new Uint8Array(buf);
	let binary = '';
	for (let i = 0; i < bytes.length; i++) {
		binary += String.fromCharCode(bytes[i]);
	}
	return btoa(binary);
}`

// retrieveAttachment runs the ordered strategy chain for a message
// classified as carrying a document or image. Each strategy has its own
// timeout and failure falls through to the next; the empty string means
// every strategy failed. The cycle continues either way.
func (a *Agent) retrieveAttachment(msg driver.Locator, dataID string, kind AttachmentKind, hint string) string {
	if kind == AttachmentImage {
		// Embedded previews download through the viewer, so open the
		// lightbox first and reuse the later strategies.
		if err := msg.Locator(a.sel.ImageThumb).First().Click(driver.ClickOptions{Timeout: mediumTimeout}); err != nil {
			a.attachLog.Debugf("image lightbox open failed: %v", err)
		}
		return runFileChain(a.attachLog, "retrieve image", a.viewerChain(msg, dataID, hint))
	}

	chain := []fileStrategy{
		{name: "direct download click", run: func() (string, error) {
			return a.directDownload(msg)
		}},
		{name: "context menu download", run: func() (string, error) {
			return a.contextMenuDownload(msg)
		}},
	}
	chain = append(chain, a.viewerChain(msg, dataID, hint)...)

	return runFileChain(a.attachLog, "retrieve document", chain)
}

// viewerChain is the shared tail of the pipeline: full-screen viewer,
// bubble click with re-resolution, page-level listener, blob fetch.
func (a *Agent) viewerChain(msg driver.Locator, dataID, hint string) []fileStrategy {
	return []fileStrategy{
		{name: "viewer download", run: func() (string, error) {
			return a.viewerDownload(msg)
		}},
		{name: "bubble click", run: func() (string, error) {
			return a.bubbleClickDownload(dataID, hint)
		}},
		{name: "page-level listener", run: func() (string, error) {
			return a.pageLevelDownload()
		}},
		{name: "blob fetch", run: func() (string, error) {
			return a.blobFetch(msg)
		}},
	}
}

// directDownload clicks the visible download affordance inside the
// message, retrying once with a forceful click when the first click is
// intercepted by an overlapping element.
func (a *Agent) directDownload(msg driver.Locator) (string, error) {
	affordance := msg.Locator(a.sel.DownloadAffordance).First()
	if count, err := affordance.Count(); err != nil || count == 0 {
		return "", fmt.Errorf("no download affordance in message")
	}

	dl, err := a.page.ExpectDownload(func() error {
		return affordance.Click(driver.ClickOptions{Timeout: mediumTimeout})
	}, downloadTimeout)
	if err != nil {
		dl, err = a.page.ExpectDownload(func() error {
			return affordance.Click(driver.ClickOptions{Force: true, Timeout: mediumTimeout})
		}, downloadTimeout)
		if err != nil {
			return "", err
		}
	}
	return a.saveDownload(dl)
}

// contextMenuDownload opens the in-message context menu and clicks its
// download entry.
func (a *Agent) contextMenuDownload(msg driver.Locator) (string, error) {
	if err := msg.Hover(shortTimeout); err != nil {
		return "", fmt.Errorf("hover failed: %w", err)
	}
	if err := msg.Locator(a.sel.ContextMenuTrigger).First().Click(driver.ClickOptions{Timeout: mediumTimeout}); err != nil {
		return "", fmt.Errorf("context menu open failed: %w", err)
	}

	dl, err := a.page.ExpectDownload(func() error {
		return a.page.Locator(a.sel.ContextMenuDownload).First().Click(driver.ClickOptions{Timeout: mediumTimeout})
	}, downloadTimeout)
	if err != nil {
		a.dismissOverlay()
		return "", err
	}
	return a.saveDownload(dl)
}

// viewerDownload opens the full-screen preview for the item and clicks
// the viewer's download affordance.
func (a *Agent) viewerDownload(msg driver.Locator) (string, error) {
	// The viewer may already be open from the image lightbox path.
	viewer := a.page.Locator(a.sel.ViewerDownload).First()
	if count, _ := viewer.Count(); count == 0 {
		if err := msg.Click(driver.ClickOptions{Timeout: mediumTimeout}); err != nil {
			return "", fmt.Errorf("preview open failed: %w", err)
		}
		if err := viewer.WaitFor(driver.WaitVisible, mediumTimeout); err != nil {
			a.dismissOverlay()
			return "", fmt.Errorf("viewer never appeared: %w", err)
		}
	}

	dl, err := a.page.ExpectDownload(func() error {
		return viewer.Click(driver.ClickOptions{Timeout: mediumTimeout})
	}, downloadTimeout)
	a.dismissOverlay()
	if err != nil {
		return "", err
	}
	return a.saveDownload(dl)
}

// bubbleClickDownload clicks the message bubble itself; some renderers
// trigger the download on primary click. The message is re-resolved first
// since earlier strategies may have caused a re-render, with one context
// restoration attempt when resolution fails.
func (a *Agent) bubbleClickDownload(dataID, hint string) (string, error) {
	msg, _ := a.resolveByFallbacks(dataID)
	if msg == nil {
		if !a.restoreContext(hint) {
			return "", fmt.Errorf("message lost and context restore failed")
		}
		msg, _ = a.resolveByFallbacks(dataID)
		if msg == nil {
			return "", fmt.Errorf("message unresolvable after context restore")
		}
	}

	dl, err := a.page.ExpectDownload(func() error {
		return msg.Click(driver.ClickOptions{Force: true, Timeout: mediumTimeout})
	}, downloadTimeout)
	if err != nil {
		return "", err
	}
	return a.saveDownload(dl)
}

// pageLevelDownload attaches a transient download listener at page scope
// and triggers the known affordance selectors in turn, capturing whichever
// download fires first.
func (a *Agent) pageLevelDownload() (string, error) {
	dl, err := a.page.ExpectDownload(func() error {
		for _, sel := range a.sel.PageDownloadAffordances {
			candidate := a.page.Locator(sel).First()
			visible, err := candidate.IsVisible()
			if err != nil || !visible {
				continue
			}
			// Ignore individual click errors; any of them may fire the event.
			_ = candidate.Click(driver.ClickOptions{Force: true, Timeout: shortTimeout})
		}
		return nil
	}, downloadTimeout)
	if err != nil {
		return "", err
	}
	return a.saveDownload(dl)
}

// blobFetch is the last resort: evaluate a script that fetches the bytes
// behind a blob URL found on an anchor or image associated with the
// message and persist them locally.
func (a *Agent) blobFetch(msg driver.Locator) (string, error) {
	anchor := msg.Locator(a.sel.BlobAnchor).First()
	if count, err := anchor.Count(); err != nil || count == 0 {
		// The viewer may hold the blob when the bubble does not.
		anchor = a.page.Locator(a.sel.BlobAnchor).Last()
		if count, err := anchor.Count(); err != nil || count == 0 {
			return "", fmt.Errorf("no blob resource found")
		}
	}

	result, err := anchor.Evaluate(blobFetchScript, nil)
	if err != nil {
		return "", fmt.Errorf("blob fetch script failed: %w", err)
	}
	encoded, ok := result.(string)
	if !ok || encoded == "" {
		return "", fmt.Errorf("blob fetch returned no data")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("blob decode failed: %w", err)
	}

	path := filepath.Join(a.cfg.DownloadsDir, defaultFilename(".bin"))
	if err := a.guard.ValidatePath(path); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("blob write failed: %w", err)
	}
	return path, nil
}

// saveDownload persists a captured download into the downloads directory
// under a sanitized filename.
func (a *Agent) saveDownload(dl driver.Download) (string, error) {
	name := sanitizeFilename(dl.SuggestedFilename())
	if name == "" {
		name = defaultFilename(".bin")
	}

	path := filepath.Join(a.cfg.DownloadsDir, name)
	if err := a.guard.ValidatePath(path); err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		// Avoid clobbering an earlier retrieval with the same name.
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		path = filepath.Join(a.cfg.DownloadsDir, fmt.Sprintf("%s-%s%s", base, shortID(), ext))
	}

	if err := dl.SaveAs(path); err != nil {
		return "", fmt.Errorf("save failed: %w", err)
	}
	return path, nil
}

// dismissOverlay closes whatever viewer or menu is covering the page.
func (a *Agent) dismissOverlay() {
	kb := a.page.Keyboard()
	_ = kb.Press("Escape")
}

// restoreContext attempts to get back to the conversation for the given
// sender hint after the page drifted: dismiss overlays, then re-open the
// matching chat row from the list.
func (a *Agent) restoreContext(hint string) bool {
	kb := a.page.Keyboard()
	_ = kb.Press("Escape")
	_ = kb.Press("Escape")

	if strings.TrimSpace(hint) == "" {
		return false
	}

	rows, err := a.page.Locator(a.sel.PaneRowTitle).All()
	if err != nil {
		return false
	}
	for _, row := range rows {
		title, err := row.GetAttribute("title")
		if err != nil || strings.TrimSpace(title) == "" {
			continue
		}
		if !strings.Contains(hint, title) && !strings.Contains(title, hint) {
			continue
		}
		if err := row.Click(driver.ClickOptions{Timeout: mediumTimeout}); err != nil {
			continue
		}
		// The delivery path reaches here with the composer lock held, so
		// this settle must not service queued tasks: a serviced task could
		// call back into delivery and deadlock on the lock.
		a.pause(renderSettleDelay)
		return true
	}
	return false
}

// sanitizeFilename strips path separators and control characters from a
// suggested filename and bounds its length.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			b.WriteRune('_')
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	clean := filepath.Base(b.String())
	if clean == "." || clean == ".." {
		return ""
	}
	if len(clean) > 128 {
		ext := filepath.Ext(clean)
		clean = clean[:128-len(ext)] + ext
	}
	return clean
}

// defaultFilename names a retrieved file when the provider offered no
// suggestion.
func defaultFilename(ext string) string {
	return fmt.Sprintf("wa-%s-%s%s", time.Now().Format("20060102-150405"), shortID(), ext)
}

func shortID() string {
	return uuid.New().String()[:8]
}
