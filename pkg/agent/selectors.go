package agent

// Selectors holds every DOM locator the agent uses. The provider's markup
// drifts with releases and locale, so all strings live here and the host
// can override any of them. Comma-separated lists are engine-level
// alternatives resolved together; slice fields are ordered fallback chains
// tried one at a time.
type Selectors struct {
	// AuthenticatedMarker is present once the chat list has rendered.
	AuthenticatedMarker string

	// LoginChallenge renders the scannable login code before authentication.
	LoginChallenge string

	// UnreadBadge marks conversation rows with unseen messages.
	UnreadBadge string

	// RowAncestors are ancestor containers of an unread badge to click when
	// the badge itself rejects the click, tried in order.
	RowAncestors []string

	// InboundMessage matches received message bubbles.
	InboundMessage string

	// InboundMessageFallbacks re-resolve the newest inbound message when the
	// exact data-id lookup fails after a re-render, tried in order.
	InboundMessageFallbacks []string

	// MessageText matches the text span inside a message bubble.
	MessageText string

	// Header is the open conversation's header region.
	Header string

	// HeaderName is the dedicated contact-name element in the header.
	HeaderName string

	// HeaderLabeled matches header elements carrying a descriptive label.
	HeaderLabeled string

	// NamePlaceholders are label values that are not contact identities.
	NamePlaceholders []string

	// PaneRowTitle matches titled chat rows in the conversation list, used
	// to re-open a conversation during context restoration.
	PaneRowTitle string

	// Composer locates the message input, tried in order.
	Composer []string

	// DownloadAffordance matches the in-bubble download control.
	DownloadAffordance string

	// PageDownloadAffordances are download controls to try at page scope
	// when in-bubble strategies fail, in order.
	PageDownloadAffordances []string

	// ContextMenuTrigger opens a message's context menu.
	ContextMenuTrigger string

	// ContextMenuDownload is the menu's download entry.
	ContextMenuDownload string

	// ViewerDownload is the full-screen viewer's download control.
	ViewerDownload string

	// DocumentBubble identifies a message carrying a document attachment.
	DocumentBubble string

	// ImageBubble identifies a message rendering an image preview.
	ImageBubble string

	// ImageThumb is the clickable preview inside an image bubble.
	ImageThumb string

	// BlobAnchor matches anchor or image elements holding a blob resource URL.
	BlobAnchor string

	// AttachButton opens the attach menu in a conversation.
	AttachButton string

	// MediaMenuItems select the photos/videos attach path, tried in order.
	MediaMenuItems []string

	// DocumentMenuItems select the generic document attach path, in order.
	DocumentMenuItems []string

	// FileInputMedia is the media-specific raw file input; FileInput is the
	// generic one, used when no chooser appears.
	FileInputMedia string
	FileInput      string

	// SendButton submits a composed message or attachment preview.
	SendButton string

	// CaptionBox is the caption input in the attachment preview, in order.
	CaptionBox []string

	// DialogButton dismisses provider dialogs (for example invalid number).
	DialogButton string

	// ChatReady matches whatever appears first after a deep-link navigation:
	// the conversation surface or a dialog.
	ChatReady string
}

// DefaultSelectors returns the selector set for the current provider
// markup, with English and Arabic variants where labels are localized.
func DefaultSelectors() Selectors {
	return Selectors{
		AuthenticatedMarker: "div#pane-side",
		LoginChallenge:      "canvas",

		UnreadBadge: "div[aria-label*='unread message'], div[aria-label*='رسالة غير مقروءة']",
		RowAncestors: []string{
			"xpath=ancestor::div[@role='listitem'][1]",
			"xpath=ancestor::div[@role='button'][1]",
		},

		InboundMessage: "div.message-in",
		InboundMessageFallbacks: []string{
			"#main div.message-in",
			"div.message-in",
		},
		MessageText: "span.selectable-text",

		Header:        "#main header",
		HeaderName:    "#main header span[title]",
		HeaderLabeled: "#main header [aria-label]",
		NamePlaceholders: []string{
			"Profile details",
			"تفاصيل الملف الشخصي",
			"Details",
		},
		PaneRowTitle: "#pane-side span[title]",

		Composer: []string{
			"#main footer div[contenteditable='true'][data-tab]",
			"div[title='Type a message']",
			"div[title='اكتب رسالة']",
			"#main footer div[contenteditable='true']",
		},

		DownloadAffordance: "span[data-icon='audio-download'], span[data-icon='download'], [aria-label='Download'], [aria-label='تنزيل']",
		PageDownloadAffordances: []string{
			"span[data-icon='audio-download']",
			"span[data-icon='download']",
			"[aria-label='Download']",
			"[aria-label='تنزيل']",
			"[data-icon='wds-ic-download']",
		},
		ContextMenuTrigger:  "span[data-icon='down-context'], [aria-label='Context menu'], [aria-label='قائمة السياق']",
		ContextMenuDownload: "li:has-text('Download'), li:has-text('تنزيل'), [aria-label='Download']",
		ViewerDownload:      "div[role='dialog'] span[data-icon='download'], div[role='dialog'] [aria-label='Download'], div[role='dialog'] [aria-label='تنزيل']",

		DocumentBubble: "div[role='button'][title*='Download'], span[data-icon='audio-download'], div[data-testid='document-thumb'], span[data-icon='document-refreshed-thin']",
		ImageBubble:    "div[aria-label='Open picture'], img[src^='blob:'], div[data-testid='image-thumb']",
		ImageThumb:     "img",
		BlobAnchor:     "a[href^='blob:'], img[src^='blob:']",

		AttachButton: "span[data-icon='plus'], span[data-icon='attach-menu-plus'], span[data-icon='clip'], [aria-label='Attach'], [aria-label='إرفاق'], [title='Attach'], [title='إرفاق']",
		MediaMenuItems: []string{
			"span[data-icon='attach-menu-image']",
			"span[data-icon='attach-image']",
			"[aria-label*='Photos']",
			"[aria-label*='الصور']",
			"[aria-label*='الوسائط']",
			"li:has-text('Photos')",
			"li:has-text('الصور')",
			"button:has-text('Photos')",
			"button:has-text('الصور')",
		},
		DocumentMenuItems: []string{
			"span[data-icon='attach-menu-document']",
			"[aria-label*='Document']",
			"[aria-label*='مستند']",
			"li:has-text('Document')",
			"li:has-text('مستند')",
		},
		FileInputMedia: "input[type='file'][accept*='image/*']",
		FileInput:      "input[type='file']",

		SendButton: "span[data-icon='send'], [aria-label='Send'], [aria-label='إرسال'], [data-icon='wds-ic-send-filled']",
		CaptionBox: []string{
			"div[contenteditable='true'][aria-placeholder='Add a caption']",
			"div[contenteditable='true'][aria-placeholder='إضافة شرح']",
			"div[contenteditable='true'][title='Add a caption']",
			"div[contenteditable='true'][title='إضافة شرح']",
			"div[contenteditable='true']",
		},

		DialogButton: "div[role='button']:has-text('OK'), div[role='button']:has-text('Close'), div[role='button']:has-text('تم'), div[role='button']:has-text('موافق'), div[role='button']:has-text('إغلاق')",
		ChatReady:    "div[contenteditable='true'], div[role='dialog'], #main",
	}
}
