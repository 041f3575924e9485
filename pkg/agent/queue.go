package agent

import (
	"fmt"
	"strings"
	"sync"
)

// Command is an externally requested outbound notification.
type Command struct {
	Recipient string
	Message   string
}

// CommandQueue bridges external execution contexts to the automation
// loop. Any goroutine may append; only the loop drains. Each poll cycle
// observes the queue once and drains it fully.
type CommandQueue struct {
	mu    sync.Mutex
	items []Command
}

// NewCommandQueue creates an empty queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Enqueue appends a notification request. Safe from any goroutine.
func (q *CommandQueue) Enqueue(recipient, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Command{Recipient: recipient, Message: message})
}

// Len returns the number of pending commands.
func (q *CommandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain removes and returns all pending commands.
func (q *CommandQueue) drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// drainCommands delivers every queued command, pausing between items to
// avoid composer contention. Runs on the automation loop once per cycle.
func (a *Agent) drainCommands() {
	commands := a.queue.drain()
	for i, cmd := range commands {
		if !a.isRunning() {
			return
		}

		ok, status := a.sendToOnLoop(cmd.Recipient, cmd.Message, "")
		if !ok {
			a.replyLog.Warnf("queued notification to %s failed: %s", cmd.Recipient, status)
		}

		if i < len(commands)-1 {
			if !a.sleepLoop(queueDrainSpacing) {
				return
			}
		}
	}
}

// ProcessingStatus is the outcome reported by the file-processing pipeline.
type ProcessingStatus string

const (
	ProcessingCompleted ProcessingStatus = "completed"
	ProcessingFailed    ProcessingStatus = "failed"
	ProcessingDuplicate ProcessingStatus = "duplicate"
)

// OnProcessingEvent is the external entry point for processing outcomes.
// It may be called from any goroutine; the notification runs on the
// automation loop. Events for other sources are ignored. The message key
// travels in metadata under "message_key" — the same key the poller
// attached when it enqueued the file — so each notification kind goes out
// at most once per original inbound message.
func (a *Agent) OnProcessingEvent(source string, status ProcessingStatus, metadata map[string]string, payload map[string]string) {
	if !strings.EqualFold(source, "whatsapp") {
		return
	}
	if !a.isRunning() {
		return
	}

	key := metadata["message_key"]
	if key == "" {
		a.replyLog.Warnf("processing event without message key, dropping")
		return
	}

	a.submit(func() {
		switch status {
		case ProcessingDuplicate:
			a.notifyDuplicate(key, metadata)
		case ProcessingCompleted:
			a.notifyProcessed(key, payload, metadata)
		case ProcessingFailed:
			errText := payload["error"]
			if errText == "" {
				errText = "Unknown processing error"
			}
			a.notifyFailed(key, errText, metadata)
		default:
			a.replyLog.Warnf("unknown processing status %q", status)
		}
	})
}

// notifyDuplicate tells the sender their document was already processed.
func (a *Agent) notifyDuplicate(key string, metadata map[string]string) {
	a.SendOnce(key+":duplicate", "♻️ This document was already received and processed earlier.", metadata)
}

// notifyProcessed summarizes a successful extraction back to the sender.
func (a *Agent) notifyProcessed(key string, payload, metadata map[string]string) {
	var b strings.Builder
	b.WriteString("✅ Your document was processed successfully.")

	summaryFields := []struct{ field, label string }{
		{"invoice_number", "Invoice"},
		{"vendor_name", "Vendor"},
		{"date", "Date"},
		{"total", "Total"},
	}
	for _, f := range summaryFields {
		if v := strings.TrimSpace(payload[f.field]); v != "" {
			b.WriteString(fmt.Sprintf("\n%s: %s", f.label, v))
		}
	}

	a.SendOnce(key+":completed", b.String(), metadata)
}

// notifyFailed reports a processing failure back to the sender.
func (a *Agent) notifyFailed(key, errText string, metadata map[string]string) {
	a.SendOnce(key+":failed", "❌ Your document could not be processed: "+errText, metadata)
}
