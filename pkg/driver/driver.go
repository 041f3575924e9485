// Package driver defines the minimal browser-automation contract the agent
// core needs from a page. The core never talks to a concrete engine; it
// only sees these interfaces, so any engine (or a test fake) can supply them.
package driver

import "time"

// Page is one open browser page. Exactly one goroutine, the automation
// loop, may call Page methods at a time.
type Page interface {
	// Navigate loads the given URL, waiting up to timeout for the load.
	Navigate(url string, timeout time.Duration) error

	// Locator returns a lazy handle for elements matching the selector.
	// Creating a locator never fails; resolution happens on use.
	Locator(selector string) Locator

	// Evaluate runs a script in the page context and returns its result.
	Evaluate(script string, args ...any) (any, error)

	// Keyboard returns the page-level keyboard.
	Keyboard() Keyboard

	// ExpectDownload runs trigger and waits up to timeout for a download
	// event started by it.
	ExpectDownload(trigger func() error, timeout time.Duration) (Download, error)

	// ExpectFileChooser runs trigger and waits up to timeout for a file
	// chooser opened by it.
	ExpectFileChooser(trigger func() error, timeout time.Duration) (FileChooser, error)

	// SetExtraHTTPHeaders applies headers to every subsequent request.
	SetExtraHTTPHeaders(headers map[string]string) error

	// Screenshot captures the full page to the given file path.
	Screenshot(path string) error

	// Close closes the page and releases its resources.
	Close() error
}

// WaitState is the element state WaitFor blocks on.
type WaitState string

const (
	WaitAttached WaitState = "attached"
	WaitDetached WaitState = "detached"
	WaitVisible  WaitState = "visible"
	WaitHidden   WaitState = "hidden"
)

// ClickOptions configures a locator click.
type ClickOptions struct {
	// Force skips actionability checks (visible, stable, receives events).
	Force bool

	// Timeout bounds the click attempt. Zero means the engine default.
	Timeout time.Duration
}

// Locator is a lazy handle to zero or more elements. Operations resolve
// the selector at call time, so a locator stays valid across re-renders.
type Locator interface {
	Count() (int, error)
	First() Locator
	Last() Locator
	Nth(index int) Locator
	All() ([]Locator, error)

	IsVisible() (bool, error)
	Click(opts ClickOptions) error
	Fill(text string, timeout time.Duration) error
	Focus(timeout time.Duration) error
	Hover(timeout time.Duration) error
	Press(key string, timeout time.Duration) error
	InnerText(timeout time.Duration) (string, error)
	GetAttribute(name string) (string, error)
	Screenshot(path string) error
	WaitFor(state WaitState, timeout time.Duration) error

	// Locator scopes a child selector under this locator.
	Locator(selector string) Locator

	// Evaluate runs a script with the resolved element as first argument.
	Evaluate(script string, arg any) (any, error)

	// SetInputFiles sets the file for an <input type=file> element.
	SetInputFiles(path string) error

	// BoundingBox returns the element's viewport box, or nil if detached.
	BoundingBox() (*Rect, error)
}

// Rect is an element bounding box in viewport coordinates.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Download is a captured file-download event.
type Download interface {
	SuggestedFilename() string
	SaveAs(path string) error
}

// FileChooser is a captured native file-selection dialog.
type FileChooser interface {
	SetFiles(path string) error
}

// Keyboard sends key events to the focused element.
type Keyboard interface {
	Press(key string) error
	InsertText(text string) error
}
