package agent

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/docuflow/waagent/pkg/driver"
)

const (
	chatLoadTimeout   = 45 * time.Second
	previewTimeout    = 20 * time.Second
	attachMenuDelay   = 2 * time.Second
	connectSettle     = 2 * time.Second
	outboxSettleDelay = 4 * time.Second
)

// SendTo sends a message, optionally with a file, to an identifier-addressed
// conversation. It is safe to call from any goroutine: the work runs on the
// automation loop. Returns a success flag and a human-readable status; it
// never panics or propagates internal errors past this boundary.
func (a *Agent) SendTo(identifier, text, filePath string) (bool, string) {
	var ok bool
	status := "Agent loop is not running."

	err := a.RunOnLoop(func() {
		ok, status = a.sendToOnLoop(identifier, text, filePath)
	})
	if err != nil {
		return false, err.Error()
	}
	return ok, status
}

// sendToOnLoop performs the direct send on the automation loop.
func (a *Agent) sendToOnLoop(identifier, text, filePath string) (bool, string) {
	if a.State() != StateListening {
		return false, "Agent is not logged in."
	}

	a.log.Infof("direct send to %s, file=%q", identifier, filePath)

	deepLink := fmt.Sprintf(
		"https://web.whatsapp.com/send/?phone=%s&text=%s&type=phone_number&app_absent=0",
		url.QueryEscape(identifier), url.QueryEscape(text),
	)
	if err := a.page.Navigate(deepLink, navTimeout); err != nil {
		return false, "Failed to open the conversation. Check your connection."
	}

	// Either the conversation surface or an invalid-identifier dialog
	// appears first.
	ready := a.page.Locator(a.sel.ChatReady).First()
	if err := ready.WaitFor(driver.WaitVisible, chatLoadTimeout); err != nil {
		return false, "Timeout waiting for the conversation to load."
	}

	dialog := a.page.Locator(a.sel.DialogButton)
	if count, err := dialog.Count(); err == nil && count > 0 {
		a.log.Warnf("provider reported invalid identifier: %s", identifier)
		_ = dialog.First().Click(driver.ClickOptions{Timeout: mediumTimeout})
		return false, "Invalid phone number."
	}

	// Let the connecting overlay clear before the composer accepts input.
	if !a.sleepLoop(connectSettle) {
		return false, "Agent stopped."
	}

	if filePath != "" {
		if _, err := os.Stat(filePath); err != nil {
			return false, fmt.Sprintf("File not found: %s", filePath)
		}
		return a.sendWithFile(text, filePath)
	}

	// No file: submit the deep link's pre-filled text directly.
	send := a.page.Locator(a.sel.SendButton).First()
	if count, err := send.Count(); err == nil && count > 0 {
		if err := send.Click(driver.ClickOptions{Force: true, Timeout: mediumTimeout}); err != nil {
			_ = a.page.Keyboard().Press("Enter")
		}
	} else {
		_ = a.page.Keyboard().Press("Enter")
	}

	a.sleepLoop(outboxSettleDelay)
	return true, "Message sent successfully!"
}

// sendWithFile attaches a file through the attach menu, preferring the
// media path over the generic document path, and submits the preview.
func (a *Agent) sendWithFile(caption, filePath string) (bool, string) {
	attach := a.page.Locator(a.sel.AttachButton).First()
	if count, err := attach.Count(); err != nil || count == 0 {
		return false, "Could not find the attach button. The WhatsApp UI might have changed."
	}
	if err := attach.Click(driver.ClickOptions{Timeout: mediumTimeout}); err != nil {
		return false, "Could not open the attach menu."
	}
	if !a.sleepLoop(attachMenuDelay) {
		return false, "Agent stopped."
	}

	target := a.findAttachTarget()
	if target != nil {
		// Intercept the native chooser for maximum reliability.
		chooser, err := a.page.ExpectFileChooser(func() error {
			return target.Click(driver.ClickOptions{Force: true, Timeout: mediumTimeout})
		}, mediumTimeout)
		if err == nil {
			if err := chooser.SetFiles(filePath); err != nil {
				return false, fmt.Sprintf("File upload failed: %v", err)
			}
		} else if err := a.setFileInputDirect(filePath); err != nil {
			return false, fmt.Sprintf("File upload failed: %v", err)
		}
	} else if err := a.setFileInputDirect(filePath); err != nil {
		return false, fmt.Sprintf("File upload failed: %v", err)
	}

	// The preview modal signals readiness by showing the send affordance.
	send := a.page.Locator(a.sel.SendButton).Last()
	if err := send.WaitFor(driver.WaitVisible, previewTimeout); err != nil {
		return false, "Attachment preview never appeared."
	}

	if caption != "" {
		a.fillCaption(caption)
	}

	if !a.sleepLoop(renderSettleDelay) {
		return false, "Agent stopped."
	}

	// Overlapping icons intercept plain clicks on the send control.
	if err := send.Click(driver.ClickOptions{Force: true, Timeout: mediumTimeout}); err != nil {
		a.log.Warnf("preview send click failed, trying Enter: %v", err)
		_ = a.page.Keyboard().Press("Enter")
	}

	a.sleepLoop(outboxSettleDelay)
	return true, "Message sent successfully!"
}

// findAttachTarget walks the media menu labels first, then the document
// labels, returning the first visible entry.
func (a *Agent) findAttachTarget() driver.Locator {
	for _, group := range [][]string{a.sel.MediaMenuItems, a.sel.DocumentMenuItems} {
		for _, sel := range group {
			candidate := a.page.Locator(sel).First()
			count, err := candidate.Count()
			if err != nil || count == 0 {
				continue
			}
			visible, err := candidate.IsVisible()
			if err != nil || !visible {
				continue
			}
			a.log.Debugf("attach target via %s", sel)
			return candidate
		}
	}
	return nil
}

// setFileInputDirect bypasses the chooser by setting a file input's value,
// preferring the media-specific input.
func (a *Agent) setFileInputDirect(filePath string) error {
	input := a.page.Locator(a.sel.FileInputMedia).First()
	if count, err := input.Count(); err != nil || count == 0 {
		input = a.page.Locator(a.sel.FileInput).First()
	}
	return input.SetInputFiles(filePath)
}

// fillCaption writes the optional caption into the preview's caption box.
// Failure is tolerated; the attachment still goes out.
func (a *Agent) fillCaption(caption string) {
	for _, sel := range a.sel.CaptionBox {
		box := a.page.Locator(sel).Last()
		count, err := box.Count()
		if err != nil || count == 0 {
			continue
		}
		visible, err := box.IsVisible()
		if err != nil || !visible {
			continue
		}
		if err := box.Fill(caption, shortTimeout); err != nil {
			a.log.Warnf("caption fill failed (sending anyway): %v", err)
		}
		return
	}
}
