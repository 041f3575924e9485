// Package config holds the agent configuration loaded from a YAML file.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultTemplate is the outbound message template used when the host has
// not configured its own. Placeholders are substituted from document
// metadata at send time.
const DefaultTemplate = `📄 *Invoice #{invoice_number}*
📅 *Date:* {date}

👤 *From:* {vendor_name}
💳 *VAT ID:* {vat_id}

📋 *Items:*
{line_items}

💰 *Subtotal:* {currency} {subtotal}
📊 *VAT ({vat_rate}%):* {currency} {vat_total}
💵 *Total:* {currency} {total}

Thanks!`

// DefaultAutoReply acknowledges an inbound message while its attachment is
// being processed.
const DefaultAutoReply = "I received your message! Your document is queued for processing."

// Config is the root configuration for the agent.
type Config struct {
	// ProfileDir is the browser user-data directory. The login session
	// persists here, so only one agent may use it at a time.
	ProfileDir string `yaml:"profileDir" validate:"required"`

	// DownloadsDir receives retrieved attachments.
	DownloadsDir string `yaml:"downloadsDir" validate:"required"`

	// Headless controls browser visibility. Headless is the normal mode;
	// a visible window helps when debugging selector drift.
	Headless bool `yaml:"headless"`

	// UserAgent optionally overrides the browser user agent.
	UserAgent string `yaml:"userAgent"`

	// SenderFilter, when set, restricts processing to conversations whose
	// sender hint matches it (digits-tail comparison for phone numbers,
	// alphanumeric stem otherwise).
	SenderFilter string `yaml:"senderFilter"`

	// AutoReply enables the inbound acknowledgement reply.
	AutoReply bool `yaml:"autoReply"`

	// AutoReplyText is the acknowledgement text sent when AutoReply is on.
	AutoReplyText string `yaml:"autoReplyText"`

	// MessageTemplate formats direct-send messages from document metadata.
	MessageTemplate string `yaml:"messageTemplate"`
}

// Default returns a configuration with every field at its default value.
// The profile and downloads directories live under ~/.waagent.
func Default() Config {
	base := baseDir()
	return Config{
		ProfileDir:      filepath.Join(base, "profile"),
		DownloadsDir:    filepath.Join(base, "downloads"),
		Headless:        true,
		AutoReply:       false,
		AutoReplyText:   DefaultAutoReply,
		MessageTemplate: DefaultTemplate,
	}
}

// applyDefaults fills zero-valued fields after a partial YAML load.
func (c *Config) applyDefaults() {
	def := Default()
	if c.ProfileDir == "" {
		c.ProfileDir = def.ProfileDir
	}
	if c.DownloadsDir == "" {
		c.DownloadsDir = def.DownloadsDir
	}
	if c.AutoReplyText == "" {
		c.AutoReplyText = def.AutoReplyText
	}
	if c.MessageTemplate == "" {
		c.MessageTemplate = def.MessageTemplate
	}
	c.ProfileDir = expandHome(c.ProfileDir)
	c.DownloadsDir = expandHome(c.DownloadsDir)
}

func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".waagent"
	}
	return filepath.Join(home, ".waagent")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
