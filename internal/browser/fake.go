package browser

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeElement is a scriptable element served by Fake.
type FakeElement struct {
	TextContent string
	Attrs       map[string]string
	// OnClick runs when the element is clicked; it may mutate the Fake to
	// model popovers expanding, contact panels revealing, redirects, etc.
	OnClick func(f *Fake)
	// Value holds the last Fill value for input elements.
	Value string
}

// FakePage is one scripted page: its serialized markup plus the elements each
// selector resolves to.
type FakePage struct {
	Markup   string
	Elements map[string][]*FakeElement
}

// Fake is an in-memory Surface used by tests. Pages are keyed by URL;
// navigation switches the current page. FindCalls records how many times each
// selector was queried, which lets tests assert fallback ordering.
type Fake struct {
	mu        sync.Mutex
	url       string
	Pages     map[string]*FakePage
	FindCalls map[string]int
	NavErr    error
}

// NewFake creates an empty fake surface.
func NewFake() *Fake {
	return &Fake{
		Pages:     make(map[string]*FakePage),
		FindCalls: make(map[string]int),
	}
}

// AddPage registers a scripted page under url.
func (f *Fake) AddPage(url string, page *FakePage) {
	if page.Elements == nil {
		page.Elements = make(map[string][]*FakeElement)
	}
	f.Pages[url] = page
}

// SetURL moves the fake to url without a navigation, modeling a server-side
// redirect.
func (f *Fake) SetURL(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
}

// SetMarkup replaces the current page's markup, modeling an in-page render.
func (f *Fake) SetMarkup(markup string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.Pages[f.url]; ok {
		p.Markup = markup
	}
}

func (f *Fake) page() *FakePage {
	if p, ok := f.Pages[f.url]; ok {
		return p
	}
	return &FakePage{Elements: map[string][]*FakeElement{}}
}

func (f *Fake) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.NavErr != nil {
		return f.NavErr
	}
	f.url = url
	return nil
}

func (f *Fake) FindAll(_ context.Context, selector string) ([]ElementRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FindCalls[selector]++
	els := f.page().Elements[selector]
	refs := make([]ElementRef, 0, len(els))
	for _, el := range els {
		refs = append(refs, el)
	}
	return refs, nil
}

func (f *Fake) Text(_ context.Context, ref ElementRef) (string, error) {
	el, err := asFakeElement(ref)
	if err != nil {
		return "", err
	}
	return el.TextContent, nil
}

func (f *Fake) Attribute(_ context.Context, ref ElementRef, name string) (string, bool, error) {
	el, err := asFakeElement(ref)
	if err != nil {
		return "", false, err
	}
	v, ok := el.Attrs[name]
	return v, ok, nil
}

func (f *Fake) Click(_ context.Context, ref ElementRef) error {
	el, err := asFakeElement(ref)
	if err != nil {
		return err
	}
	if el.OnClick != nil {
		el.OnClick(f)
	}
	return nil
}

func (f *Fake) Fill(_ context.Context, ref ElementRef, value string) error {
	el, err := asFakeElement(ref)
	if err != nil {
		return err
	}
	el.Value = value
	return nil
}

// WaitUntil evaluates cond immediately and once more before giving up; the
// fake has no asynchronous rendering so there is nothing to poll for.
func (f *Fake) WaitUntil(ctx context.Context, cond Condition, _ time.Duration) (bool, error) {
	for i := 0; i < 2; i++ {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (f *Fake) CurrentURL(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, nil
}

func (f *Fake) PageMarkup(_ context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page().Markup, nil
}

func asFakeElement(ref ElementRef) (*FakeElement, error) {
	el, ok := ref.(*FakeElement)
	if !ok {
		return nil, fmt.Errorf("element ref %T does not belong to this surface", ref)
	}
	return el, nil
}
