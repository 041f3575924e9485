package agent

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/docuflow/waagent/pkg/config"
	"github.com/docuflow/waagent/pkg/driver"
)

// The fakes below implement the driver contract against an in-memory
// element registry so core behavior can be exercised without a browser.

var errNoElement = errors.New("no element matching selector")

type fakeElement struct {
	attrs    map[string]string
	text     string
	visible  bool
	box      *driver.Rect
	children map[string][]*fakeElement

	// clickErrs is a queue of results for successive clicks; nil entries
	// are successes. An exhausted queue means clicks succeed.
	clickErrs []error
	clicks    int

	// download fires on a successful click when armed by ExpectDownload.
	download *fakeDownload

	// chooser fires on a successful click when armed by ExpectFileChooser.
	chooser *fakeChooser

	evalFn func(script string, arg any) (any, error)

	filled     []string
	inputFiles []string
}

func el() *fakeElement {
	return &fakeElement{
		attrs:    make(map[string]string),
		visible:  true,
		children: make(map[string][]*fakeElement),
	}
}

func (e *fakeElement) withAttr(name, value string) *fakeElement {
	e.attrs[name] = value
	return e
}

func (e *fakeElement) withText(text string) *fakeElement {
	e.text = text
	return e
}

func (e *fakeElement) withChild(selector string, children ...*fakeElement) *fakeElement {
	e.children[selector] = append(e.children[selector], children...)
	return e
}

func (e *fakeElement) withClickErrs(errs ...error) *fakeElement {
	e.clickErrs = errs
	return e
}

type fakeDownload struct {
	name string
	data []byte
}

func (d *fakeDownload) SuggestedFilename() string { return d.name }

func (d *fakeDownload) SaveAs(path string) error {
	return os.WriteFile(path, d.data, 0600)
}

type fakeChooser struct {
	files []string
}

func (c *fakeChooser) SetFiles(path string) error {
	c.files = append(c.files, path)
	return nil
}

type fakeKeyboard struct {
	mu     sync.Mutex
	events []string
}

func (k *fakeKeyboard) Press(key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.events = append(k.events, "press:"+key)
	return nil
}

func (k *fakeKeyboard) InsertText(text string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.events = append(k.events, "insert:"+text)
	return nil
}

func (k *fakeKeyboard) count(event string) int {
	k.mu.Lock()
	defer k.mu.Unlock()
	n := 0
	for _, e := range k.events {
		if e == event {
			n++
		}
	}
	return n
}

type fakePage struct {
	elements  map[string][]*fakeElement
	kb        *fakeKeyboard
	navigated []string
	headers   map[string]string

	firedDownload *fakeDownload
	firedChooser  *fakeChooser
}

func newFakePage() *fakePage {
	return &fakePage{
		elements: make(map[string][]*fakeElement),
		kb:       &fakeKeyboard{},
		headers:  make(map[string]string),
	}
}

func (p *fakePage) add(selector string, els ...*fakeElement) {
	p.elements[selector] = append(p.elements[selector], els...)
}

func (p *fakePage) Navigate(url string, timeout time.Duration) error {
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) Locator(selector string) driver.Locator {
	return &fakeLocator{page: p, els: p.elements[selector]}
}

func (p *fakePage) Evaluate(script string, args ...any) (any, error) {
	return nil, errors.New("not supported")
}

func (p *fakePage) Keyboard() driver.Keyboard { return p.kb }

func (p *fakePage) ExpectDownload(trigger func() error, timeout time.Duration) (driver.Download, error) {
	p.firedDownload = nil
	_ = trigger()
	if p.firedDownload == nil {
		return nil, errors.New("no download captured")
	}
	return p.firedDownload, nil
}

func (p *fakePage) ExpectFileChooser(trigger func() error, timeout time.Duration) (driver.FileChooser, error) {
	p.firedChooser = nil
	if err := trigger(); err != nil {
		return nil, err
	}
	if p.firedChooser == nil {
		return nil, errors.New("no file chooser captured")
	}
	return p.firedChooser, nil
}

func (p *fakePage) SetExtraHTTPHeaders(headers map[string]string) error {
	for k, v := range headers {
		p.headers[k] = v
	}
	return nil
}

func (p *fakePage) Screenshot(path string) error {
	return os.WriteFile(path, []byte("png"), 0600)
}

func (p *fakePage) Close() error { return nil }

type fakeLocator struct {
	page *fakePage
	els  []*fakeElement
}

func (l *fakeLocator) Count() (int, error) { return len(l.els), nil }

func (l *fakeLocator) First() driver.Locator {
	if len(l.els) == 0 {
		return &fakeLocator{page: l.page}
	}
	return &fakeLocator{page: l.page, els: l.els[:1]}
}

func (l *fakeLocator) Last() driver.Locator {
	if len(l.els) == 0 {
		return &fakeLocator{page: l.page}
	}
	return &fakeLocator{page: l.page, els: l.els[len(l.els)-1:]}
}

func (l *fakeLocator) Nth(index int) driver.Locator {
	if index < 0 || index >= len(l.els) {
		return &fakeLocator{page: l.page}
	}
	return &fakeLocator{page: l.page, els: l.els[index : index+1]}
}

func (l *fakeLocator) All() ([]driver.Locator, error) {
	out := make([]driver.Locator, 0, len(l.els))
	for _, e := range l.els {
		out = append(out, &fakeLocator{page: l.page, els: []*fakeElement{e}})
	}
	return out, nil
}

func (l *fakeLocator) IsVisible() (bool, error) {
	if len(l.els) == 0 {
		return false, nil
	}
	return l.els[0].visible, nil
}

func (l *fakeLocator) Click(opts driver.ClickOptions) error {
	if len(l.els) == 0 {
		return errNoElement
	}
	e := l.els[0]
	e.clicks++

	if len(e.clickErrs) > 0 {
		err := e.clickErrs[0]
		e.clickErrs = e.clickErrs[1:]
		if err != nil {
			return err
		}
	}

	if e.download != nil {
		l.page.firedDownload = e.download
	}
	if e.chooser != nil {
		l.page.firedChooser = e.chooser
	}
	return nil
}

func (l *fakeLocator) Fill(text string, timeout time.Duration) error {
	if len(l.els) == 0 {
		return errNoElement
	}
	l.els[0].filled = append(l.els[0].filled, text)
	return nil
}

func (l *fakeLocator) Focus(timeout time.Duration) error {
	if len(l.els) == 0 {
		return errNoElement
	}
	return nil
}

func (l *fakeLocator) Hover(timeout time.Duration) error {
	if len(l.els) == 0 {
		return errNoElement
	}
	return nil
}

func (l *fakeLocator) Press(key string, timeout time.Duration) error {
	if len(l.els) == 0 {
		return errNoElement
	}
	return l.page.kb.Press(key)
}

func (l *fakeLocator) InnerText(timeout time.Duration) (string, error) {
	if len(l.els) == 0 {
		return "", errNoElement
	}
	return l.els[0].text, nil
}

func (l *fakeLocator) GetAttribute(name string) (string, error) {
	if len(l.els) == 0 {
		return "", errNoElement
	}
	return l.els[0].attrs[name], nil
}

func (l *fakeLocator) Screenshot(path string) error {
	if len(l.els) == 0 {
		return errNoElement
	}
	return os.WriteFile(path, []byte("png"), 0600)
}

func (l *fakeLocator) WaitFor(state driver.WaitState, timeout time.Duration) error {
	present := len(l.els) > 0
	visible := present && l.els[0].visible

	switch state {
	case driver.WaitAttached:
		if present {
			return nil
		}
	case driver.WaitDetached:
		if !present {
			return nil
		}
	case driver.WaitVisible:
		if visible {
			return nil
		}
	case driver.WaitHidden:
		if !visible {
			return nil
		}
	}
	return errors.New("wait condition not met")
}

func (l *fakeLocator) Locator(selector string) driver.Locator {
	if len(l.els) == 0 {
		return &fakeLocator{page: l.page}
	}
	return &fakeLocator{page: l.page, els: l.els[0].children[selector]}
}

func (l *fakeLocator) Evaluate(script string, arg any) (any, error) {
	if len(l.els) == 0 {
		return nil, errNoElement
	}
	if l.els[0].evalFn == nil {
		return nil, errors.New("evaluate not configured")
	}
	return l.els[0].evalFn(script, arg)
}

func (l *fakeLocator) SetInputFiles(path string) error {
	if len(l.els) == 0 {
		return errNoElement
	}
	l.els[0].inputFiles = append(l.els[0].inputFiles, path)
	return nil
}

func (l *fakeLocator) BoundingBox() (*driver.Rect, error) {
	if len(l.els) == 0 {
		return nil, errNoElement
	}
	return l.els[0].box, nil
}

// fakeSink records enqueued files and returns a configured verdict.
type fakeSink struct {
	mu     sync.Mutex
	files  []string
	accept bool
}

func (s *fakeSink) EnqueueFile(path, sourceTag string, metadata map[string]string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, path)
	return s.accept
}

// newTestAgent wires an agent around a fake page with the loop plumbing
// initialized so loop-side methods can be called directly from tests.
func newTestAgent(cfg config.Config, page *fakePage, sink FileSink) *Agent {
	a, err := New(Options{
		Config: cfg,
		Launch: func() (driver.Page, func() error, error) {
			return page, func() error { return nil }, nil
		},
		Sink: sink,
	})
	if err != nil {
		panic(err)
	}

	a.page = page
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	a.tasks = make(chan func(), 16)
	a.running.Store(true)
	a.state.Store(int32(StateListening))
	return a
}
