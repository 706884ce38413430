// Package popout hosts a live output in a secondary window: it writes a
// self-contained shell into the window, mounts the output once the window
// is ready, bridges the opener's styles, and tracks the window until it
// closes.
package popout

import (
	"errors"
	"time"
)

// State is the lifecycle of a Host.
type State int

const (
	StateUnopened State = iota
	StateAwaitingHostReady
	StateMounted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "UNOPENED"
	case StateAwaitingHostReady:
		return "AWAITING_HOST_READY"
	case StateMounted:
		return "MOUNTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrWindowBlocked means the window could not be opened or was already
	// closed when handed over.
	ErrWindowBlocked = errors.New("popout window blocked")
	// ErrHostNotReady means the mount element never appeared within the
	// retry budget.
	ErrHostNotReady = errors.New("popout host not ready")
	// ErrAlreadyOpened is returned when Open or Attach is called twice.
	ErrAlreadyOpened = errors.New("popout already opened")
)

// Window is a handle to a secondary window.
type Window interface {
	Closed() bool
	// Document returns the window's document, or nil while it is not
	// reachable.
	Document() Document
	// OnLoad registers fn to run when the window finishes loading.
	OnLoad(fn func())
	Close()
}

// Document is the part of a window's document the host writes to.
type Document interface {
	// Write replaces the document with html.
	Write(html string) error
	// Element returns the element with the given id, or nil.
	Element(id string) Element
	AddStylesheetLink(href string) error
	AddStyle(css string) error
}

// Element is a mount target.
type Element interface {
	ID() string
}

// Opener opens windows. It returns nil when the window is blocked.
type Opener interface {
	Open(name, features string) Window
}

// StyleSheet is one stylesheet of the opener document. Href is set for
// <link rel=stylesheet>, Inline for <style>; Rules reads the sheet's CSS
// rules and fails for cross-origin sheets.
type StyleSheet struct {
	Href   string
	Inline string
	Rules  func() ([]string, error)
}

// StyleSource lists the opener document's stylesheets.
type StyleSource interface {
	StyleSheets() []StyleSheet
}

// Clock schedules repeated work. stop cancels future runs.
type Clock interface {
	Every(interval time.Duration, fn func()) (stop func())
}

// MountFunc renders the output into el. The returned unmount is called
// when the host tears down.
type MountFunc func(el Element) (unmount func(), err error)
