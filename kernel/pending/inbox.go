// Package pending correlates user input with the dialog that asked for it.
//
// Every dialog opens its own Entry under a unique id. Input is routed by
// that id, so concurrent negotiations never see each other's answers, and
// an Entry yields its values at most once.
package pending

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/reglet-dev/reglet-broker/domain/entities"
	"github.com/reglet-dev/reglet-broker/domain/ports"
)

var (
	// ErrUnknownDialog is returned for input addressed to no open dialog,
	// including input that arrives after the dialog was resolved.
	ErrUnknownDialog = errors.New("no open dialog with that id")

	// ErrAlreadyResolved is returned when an entry is resolved twice or
	// receives input after resolution.
	ErrAlreadyResolved = errors.New("dialog already resolved")

	// ErrDuplicateDialog is returned when an id is opened twice.
	ErrDuplicateDialog = errors.New("dialog id already open")
)

var _ ports.InputSink = (*Inbox)(nil)

// Inbox holds the open entries of one module.
type Inbox struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewInbox creates an empty Inbox.
func NewInbox() *Inbox {
	return &Inbox{entries: make(map[string]*Entry)}
}

// Open registers a new entry under id.
func (i *Inbox) Open(id string) (*Entry, error) {
	if id == "" {
		return nil, fmt.Errorf("dialog id cannot be empty")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.entries[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDialog, id)
	}
	e := &Entry{id: id, inbox: i, values: make(map[string]string)}
	i.entries[id] = e
	return e, nil
}

// Deliver implements ports.InputSink. Later values for the same field
// replace earlier ones until the entry is resolved.
func (i *Inbox) Deliver(ctx context.Context, event entities.UserInputEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	i.mu.Lock()
	e, ok := i.entries[event.DialogID]
	i.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDialog, event.DialogID)
	}
	return e.set(event.Name, event.Value)
}

// Discard closes the entry under id without resolving it.
func (i *Inbox) Discard(id string) {
	i.mu.Lock()
	e, ok := i.entries[id]
	delete(i.entries, id)
	i.mu.Unlock()
	if ok {
		e.close()
	}
}

// Pending returns the number of open entries.
func (i *Inbox) Pending() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

func (i *Inbox) remove(id string) {
	i.mu.Lock()
	delete(i.entries, id)
	i.mu.Unlock()
}

// Entry collects the input for one dialog.
type Entry struct {
	inbox    *Inbox
	values   map[string]string
	id       string
	mu       sync.Mutex
	resolved bool
}

// ID returns the dialog id the entry was opened under.
func (e *Entry) ID() string {
	return e.id
}

func (e *Entry) set(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resolved {
		return fmt.Errorf("%w: %s", ErrAlreadyResolved, e.id)
	}
	e.values[name] = value
	return nil
}

func (e *Entry) close() {
	e.mu.Lock()
	e.resolved = true
	e.mu.Unlock()
}

// Resolve returns the collected values and closes the entry.
// Only the first call succeeds.
func (e *Entry) Resolve() (map[string]string, error) {
	e.mu.Lock()
	if e.resolved {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyResolved, e.id)
	}
	e.resolved = true
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	e.mu.Unlock()

	e.inbox.remove(e.id)
	return out, nil
}
