package models

import "time"

// Viewport describes the visible portion of the page.
type Viewport struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	ScrollX int `json:"scrollX"`
	ScrollY int `json:"scrollY"`
}

// BrowserState is an immutable snapshot of the browser reported by the
// client. Updates replace the whole record; the engine never mutates one
// in place.
type BrowserState struct {
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	DOM          string    `json:"dom,omitempty"`
	Screenshot   string    `json:"screenshot,omitempty"` // base64
	Viewport     Viewport  `json:"viewport"`
	CanGoBack    bool      `json:"canGoBack"`
	CanGoForward bool      `json:"canGoForward"`
	Timestamp    time.Time `json:"timestamp"`
}

// Result is the browser client's report for one executed action.
type Result struct {
	Success      bool          `json:"success"`
	Data         string        `json:"data,omitempty"`
	Error        string        `json:"error,omitempty"`
	Screenshot   string        `json:"screenshot,omitempty"` // base64
	BrowserState *BrowserState `json:"browserState,omitempty"`
	DurationMs   int64         `json:"durationMs"`
	Step         int           `json:"step"`
}
