package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/docuflow/waagent/pkg/driver"
)

// stableKey derives the deduplication identity for an inbound message.
// It is the join key between inbound detection, attachment retrieval, and
// reply deduplication, so every caller must derive it the same way for a
// given message. Priority order:
//
//  1. the message's native data-id attribute
//  2. a hash of the pre-rendered plain-text attribute plus the sender hint
//  3. a hash of the visible inner text plus the sender hint
//  4. sender hint plus current timestamp
//
// The last resort is not idempotent across retries of the same physical
// message; callers treat such keys as best-effort.
func stableKey(msg driver.Locator, dataID, senderHint string) string {
	if dataID != "" {
		return dataID
	}

	if pre, err := msg.GetAttribute("data-pre-plain-text"); err == nil && pre != "" {
		return "pre:" + contentHash(pre, senderHint)
	}

	if text, err := msg.InnerText(shortTimeout); err == nil && strings.TrimSpace(text) != "" {
		return "txt:" + contentHash(text, senderHint)
	}

	return fmt.Sprintf("ts:%s:%d", senderHint, time.Now().UnixNano())
}

// contentHash hashes message content together with the sender so identical
// text from different conversations yields distinct keys.
func contentHash(content, senderHint string) string {
	sum := sha256.Sum256([]byte(senderHint + "\x00" + content))
	return hex.EncodeToString(sum[:8])
}
