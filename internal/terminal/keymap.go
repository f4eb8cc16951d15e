package terminal

import (
	"context"
	"sync"
)

type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyEnter
	KeyEscape
	// KeySave is the Ctrl shortcut: save and print the current bill.
	KeySave
)

type Handler func(ctx context.Context) error

// Keymap is the screen's shortcut table. Keys only fire while the table is
// attached, so a torn-down screen cannot act on a stray key.
type Keymap struct {
	mu       sync.Mutex
	bindings map[Key]Handler
	attached bool
}

func NewKeymap() *Keymap {
	return &Keymap{bindings: make(map[Key]Handler)}
}

func (k *Keymap) Bind(key Key, h Handler) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.bindings[key] = h
}

func (k *Keymap) Attach() {
	k.mu.Lock()
	k.attached = true
	k.mu.Unlock()
}

func (k *Keymap) Detach() {
	k.mu.Lock()
	k.attached = false
	k.mu.Unlock()
}

// Dispatch runs the handler bound to key. handled is false when the map is
// detached or nothing is bound.
func (k *Keymap) Dispatch(ctx context.Context, key Key) (handled bool, err error) {
	k.mu.Lock()
	h, ok := k.bindings[key]
	attached := k.attached
	k.mu.Unlock()

	if !attached || !ok {
		return false, nil
	}
	return true, h(ctx)
}
