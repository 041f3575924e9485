// Package chromium adapts playwright-go to the driver contract, running a
// persistent Chromium profile so the chat provider's login survives restarts.
package chromium

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/docuflow/waagent/pkg/driver"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// LaunchOptions configures a persistent browser launch.
type LaunchOptions struct {
	// ProfileDir is the user-data directory holding the login session.
	ProfileDir string

	// Headless controls whether the browser runs without a visible window.
	Headless bool

	// UserAgent overrides the browser user agent. Empty uses a desktop
	// Chrome string so the provider does not serve the mobile page.
	UserAgent string
}

// Browser owns the playwright runtime, the persistent context, and the one
// page the agent drives. Close releases all three.
type Browser struct {
	pw      *playwright.Playwright
	context playwright.BrowserContext
	page    playwright.Page
}

// Launch starts playwright and opens a persistent Chromium context on the
// profile directory. A missing runtime or browser binary is remediated once
// with an install step; a second failure is returned to the caller.
func Launch(opts LaunchOptions) (*Browser, error) {
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		// The driver itself may not be installed yet. Install and retry once.
		if installErr := playwright.Install(runOpts); installErr != nil {
			return nil, fmt.Errorf("failed to install playwright driver: %w", installErr)
		}
		pw, err = playwright.Run(runOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to start playwright: %w", err)
		}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	ctxOpts := playwright.BrowserTypeLaunchPersistentContextOptions{
		Headless: playwright.Bool(opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 720,
		},
		UserAgent: playwright.String(ua),
	}

	context, err := pw.Chromium.LaunchPersistentContext(opts.ProfileDir, ctxOpts)
	if err != nil {
		if !missingBrowserError(err) {
			pw.Stop()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}

		// Browser binaries absent on first run. Install chromium and retry once.
		installOpts := &playwright.RunOptions{
			Verbose:  false,
			Stdout:   io.Discard,
			Stderr:   io.Discard,
			Browsers: []string{"chromium"},
		}
		if installErr := playwright.Install(installOpts); installErr != nil {
			pw.Stop()
			return nil, fmt.Errorf("failed to install chromium: %w", installErr)
		}
		context, err = pw.Chromium.LaunchPersistentContext(opts.ProfileDir, ctxOpts)
		if err != nil {
			pw.Stop()
			return nil, fmt.Errorf("failed to launch browser after install: %w", err)
		}
	}

	var page playwright.Page
	if pages := context.Pages(); len(pages) > 0 {
		page = pages[0]
	} else {
		page, err = context.NewPage()
		if err != nil {
			context.Close()
			pw.Stop()
			return nil, fmt.Errorf("failed to open page: %w", err)
		}
	}

	return &Browser{
		pw:      pw,
		context: context,
		page:    page,
	}, nil
}

// missingBrowserError reports whether a launch failure means the browser
// binaries are absent rather than some other launch problem.
func missingBrowserError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "executable doesn't exist") ||
		strings.Contains(msg, "playwright install")
}

// Page returns the driver-facing page handle.
func (b *Browser) Page() driver.Page {
	return &page{p: b.page}
}

// Close tears down the page, context, and playwright runtime. Errors from
// individual closes are collected so cleanup always runs to completion.
func (b *Browser) Close() error {
	var errs []error
	if b.page != nil {
		if err := b.page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing browser: %v", errs)
	}
	return nil
}

// ms converts a duration to the millisecond float playwright expects.
// Zero durations map to nil so the engine default applies.
func ms(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(float64(d.Milliseconds()))
}

type page struct {
	p playwright.Page
}

func (pg *page) Navigate(url string, timeout time.Duration) error {
	_, err := pg.p.Goto(url, playwright.PageGotoOptions{Timeout: ms(timeout)})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (pg *page) Locator(selector string) driver.Locator {
	return &locator{l: pg.p.Locator(selector)}
}

func (pg *page) Evaluate(script string, args ...any) (any, error) {
	return pg.p.Evaluate(script, args...)
}

func (pg *page) Keyboard() driver.Keyboard {
	return &keyboard{k: pg.p.Keyboard()}
}

func (pg *page) ExpectDownload(trigger func() error, timeout time.Duration) (driver.Download, error) {
	dl, err := pg.p.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{Timeout: ms(timeout)})
	if err != nil {
		return nil, fmt.Errorf("no download captured: %w", err)
	}
	return download{d: dl}, nil
}

func (pg *page) ExpectFileChooser(trigger func() error, timeout time.Duration) (driver.FileChooser, error) {
	fc, err := pg.p.ExpectFileChooser(trigger, playwright.PageExpectFileChooserOptions{Timeout: ms(timeout)})
	if err != nil {
		return nil, fmt.Errorf("no file chooser captured: %w", err)
	}
	return fileChooser{fc: fc}, nil
}

func (pg *page) SetExtraHTTPHeaders(headers map[string]string) error {
	return pg.p.SetExtraHTTPHeaders(headers)
}

func (pg *page) Screenshot(path string) error {
	_, err := pg.p.Screenshot(playwright.PageScreenshotOptions{Path: playwright.String(path)})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}

func (pg *page) Close() error {
	return pg.p.Close()
}

type locator struct {
	l playwright.Locator
}

func (lc *locator) Count() (int, error) {
	return lc.l.Count()
}

func (lc *locator) First() driver.Locator {
	return &locator{l: lc.l.First()}
}

func (lc *locator) Last() driver.Locator {
	return &locator{l: lc.l.Last()}
}

func (lc *locator) Nth(index int) driver.Locator {
	return &locator{l: lc.l.Nth(index)}
}

func (lc *locator) All() ([]driver.Locator, error) {
	all, err := lc.l.All()
	if err != nil {
		return nil, err
	}
	out := make([]driver.Locator, 0, len(all))
	for _, l := range all {
		out = append(out, &locator{l: l})
	}
	return out, nil
}

func (lc *locator) IsVisible() (bool, error) {
	return lc.l.IsVisible()
}

func (lc *locator) Click(opts driver.ClickOptions) error {
	pwOpts := playwright.LocatorClickOptions{Timeout: ms(opts.Timeout)}
	if opts.Force {
		pwOpts.Force = playwright.Bool(true)
	}
	return lc.l.Click(pwOpts)
}

func (lc *locator) Fill(text string, timeout time.Duration) error {
	return lc.l.Fill(text, playwright.LocatorFillOptions{Timeout: ms(timeout)})
}

func (lc *locator) Focus(timeout time.Duration) error {
	return lc.l.Focus(playwright.LocatorFocusOptions{Timeout: ms(timeout)})
}

func (lc *locator) Hover(timeout time.Duration) error {
	return lc.l.Hover(playwright.LocatorHoverOptions{Timeout: ms(timeout)})
}

func (lc *locator) Press(key string, timeout time.Duration) error {
	return lc.l.Press(key, playwright.LocatorPressOptions{Timeout: ms(timeout)})
}

func (lc *locator) InnerText(timeout time.Duration) (string, error) {
	return lc.l.InnerText(playwright.LocatorInnerTextOptions{Timeout: ms(timeout)})
}

func (lc *locator) GetAttribute(name string) (string, error) {
	return lc.l.GetAttribute(name)
}

func (lc *locator) Screenshot(path string) error {
	_, err := lc.l.Screenshot(playwright.LocatorScreenshotOptions{Path: playwright.String(path)})
	if err != nil {
		return fmt.Errorf("screenshot failed: %w", err)
	}
	return nil
}

func (lc *locator) WaitFor(state driver.WaitState, timeout time.Duration) error {
	pwState := playwright.WaitForSelectorState(string(state))
	return lc.l.WaitFor(playwright.LocatorWaitForOptions{
		State:   &pwState,
		Timeout: ms(timeout),
	})
}

func (lc *locator) Locator(selector string) driver.Locator {
	return &locator{l: lc.l.Locator(selector)}
}

func (lc *locator) Evaluate(script string, arg any) (any, error) {
	return lc.l.Evaluate(script, arg)
}

func (lc *locator) SetInputFiles(path string) error {
	return lc.l.SetInputFiles([]string{path})
}

func (lc *locator) BoundingBox() (*driver.Rect, error) {
	box, err := lc.l.BoundingBox()
	if err != nil {
		return nil, err
	}
	if box == nil {
		return nil, nil
	}
	return &driver.Rect{
		X:      box.X,
		Y:      box.Y,
		Width:  box.Width,
		Height: box.Height,
	}, nil
}

type download struct {
	d playwright.Download
}

func (dl download) SuggestedFilename() string {
	return dl.d.SuggestedFilename()
}

func (dl download) SaveAs(path string) error {
	return dl.d.SaveAs(path)
}

type fileChooser struct {
	fc playwright.FileChooser
}

func (f fileChooser) SetFiles(path string) error {
	return f.fc.SetFiles([]string{path})
}

type keyboard struct {
	k playwright.Keyboard
}

func (kb *keyboard) Press(key string) error {
	return kb.k.Press(key)
}

func (kb *keyboard) InsertText(text string) error {
	return kb.k.InsertText(text)
}
