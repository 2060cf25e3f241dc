// Package bus is the in-process event bus coordinating stores and UI
// surfaces. It carries two topics: contact-list updates and user-visible
// toasts. Subscribers receive on buffered channels; a slow subscriber
// drops events rather than blocking a publisher.
package bus

import "sync"

// ToastLevel classifies a toast message
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

// ContactsUpdated is published after any contact store mutation
type ContactsUpdated struct {
	UserID string
}

// Toast is a user-visible message published by any component
type Toast struct {
	Level   ToastLevel
	Message string
}

// Bus fans events out to subscribers per topic
type Bus struct {
	mu          sync.RWMutex
	nextID      int
	contactSubs map[int]chan ContactsUpdated
	toastSubs   map[int]chan Toast
}

// New creates an empty bus
func New() *Bus {
	return &Bus{
		contactSubs: make(map[int]chan ContactsUpdated),
		toastSubs:   make(map[int]chan Toast),
	}
}

// SubscribeContacts registers a contacts-updated subscriber and returns
// the receive channel plus an unsubscribe func. Unsubscribe closes the
// channel and is safe to call once.
func (b *Bus) SubscribeContacts() (<-chan ContactsUpdated, func()) {
	ch := make(chan ContactsUpdated, 8)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.contactSubs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if _, ok := b.contactSubs[id]; ok {
			delete(b.contactSubs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
}

// SubscribeToasts registers a toast subscriber
func (b *Bus) SubscribeToasts() (<-chan Toast, func()) {
	ch := make(chan Toast, 8)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.toastSubs[id] = ch
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		if _, ok := b.toastSubs[id]; ok {
			delete(b.toastSubs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
}

// PublishContactsUpdated notifies all contact subscribers
func (b *Bus) PublishContactsUpdated(ev ContactsUpdated) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.contactSubs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// PublishToast notifies all toast subscribers
func (b *Bus) PublishToast(level ToastLevel, message string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.toastSubs {
		select {
		case ch <- Toast{Level: level, Message: message}:
		default:
		}
	}
}
