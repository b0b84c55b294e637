// Package browser defines the automation surface the pipeline drives the
// source calendar through, plus a chromedp-backed implementation and an
// in-memory one for tests.
//
// The pipeline never touches chromedp types directly; everything goes through
// Surface so selector strategies and page interactions stay testable without
// a running browser.
package browser

import (
	"context"
	"time"
)

// ElementRef is an opaque handle to a rendered element. A ref is only valid
// with the Surface that produced it.
type ElementRef interface{}

// Condition is a predicate polled by WaitUntil.
type Condition func(ctx context.Context) (bool, error)

// Surface is the browser-driving capability the pipeline consumes: navigate,
// query, read, click and wait. Exactly one operation may be in flight at a
// time; a Surface is exclusively owned by a single pipeline run.
type Surface interface {
	// Navigate loads the given URL and blocks until the load settles.
	Navigate(ctx context.Context, url string) error

	// FindAll returns every element matching the CSS selector, in
	// document order. A miss is an empty slice, not an error.
	FindAll(ctx context.Context, selector string) ([]ElementRef, error)

	// Text returns the rendered text content of the element.
	Text(ctx context.Context, ref ElementRef) (string, error)

	// Attribute returns the value of the named attribute and whether it
	// is present.
	Attribute(ctx context.Context, ref ElementRef, name string) (string, bool, error)

	// Click dispatches a click on the element.
	Click(ctx context.Context, ref ElementRef) error

	// Fill sets the value of an input element.
	Fill(ctx context.Context, ref ElementRef, value string) error

	// WaitUntil polls cond until it returns true or timeout elapses.
	// Returns false (without error) on timeout.
	WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) (bool, error)

	// CurrentURL returns the URL of the page currently loaded.
	CurrentURL(ctx context.Context) (string, error)

	// PageMarkup returns the full serialized HTML of the current page.
	PageMarkup(ctx context.Context) (string, error)
}
