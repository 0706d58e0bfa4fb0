package wallet

import (
	"context"
	"sync"

	"github.com/oceanledger/bluecarbon/internal/logging"
	supa "github.com/oceanledger/bluecarbon/supabase/client"
)

// SavedHandler receives the address of a newly registered wallet.
type SavedHandler func(address string)

// Watcher fans out "wallet saved" notifications to interested gates.
// Notifications arrive either locally (the portal's own registration
// endpoint) or through the Supabase realtime stream when the row was
// inserted by another client.
type Watcher struct {
	mu       sync.RWMutex
	handlers map[string]map[int]SavedHandler // userID -> subscription set
	nextID   int
	logger   *logging.Logger

	realtime *supa.RealtimeClient
	channel  *supa.Channel
}

// NewWatcher creates a wallet-saved watcher. realtime may be nil, in which
// case only local notifications are delivered.
func NewWatcher(realtime *supa.RealtimeClient, logger *logging.Logger) *Watcher {
	return &Watcher{
		handlers: make(map[string]map[int]SavedHandler),
		logger:   logger,
		realtime: realtime,
	}
}

// Start connects the realtime stream and subscribes to wallet inserts.
func (w *Watcher) Start(ctx context.Context) error {
	if w.realtime == nil {
		return nil
	}

	if err := w.realtime.Connect(ctx); err != nil {
		return err
	}

	ch, err := w.realtime.SubscribeToPostgresChanges(ctx, supa.PostgresChangesConfig{
		Event: "INSERT",
		Table: WalletsTable,
	}, w.onInsert)
	if err != nil {
		return err
	}
	w.channel = ch
	return nil
}

// Stop releases the realtime subscription.
func (w *Watcher) Stop(ctx context.Context) {
	if w.channel != nil {
		if err := w.channel.Unsubscribe(ctx); err != nil {
			w.logger.WithError(err).Warn("unsubscribe wallet channel failed")
		}
		w.channel = nil
	}
	if w.realtime != nil {
		if err := w.realtime.Disconnect(); err != nil {
			w.logger.WithError(err).Warn("disconnect realtime failed")
		}
	}
}

// Subscribe registers a handler for wallet saves of one user. The returned
// function releases the subscription and is safe to call more than once.
func (w *Watcher) Subscribe(userID string, handler SavedHandler) func() {
	w.mu.Lock()
	w.nextID++
	id := w.nextID
	if w.handlers[userID] == nil {
		w.handlers[userID] = make(map[int]SavedHandler)
	}
	w.handlers[userID][id] = handler
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		if subs, ok := w.handlers[userID]; ok {
			delete(subs, id)
			if len(subs) == 0 {
				delete(w.handlers, userID)
			}
		}
		w.mu.Unlock()
	}
}

// NotifySaved delivers a wallet-saved event to all handlers for a user.
// The registration endpoint calls this directly so gates update without a
// round trip through the realtime stream.
func (w *Watcher) NotifySaved(userID, address string) {
	w.mu.RLock()
	handlers := make([]SavedHandler, 0, len(w.handlers[userID]))
	for _, h := range w.handlers[userID] {
		handlers = append(handlers, h)
	}
	w.mu.RUnlock()

	for _, h := range handlers {
		h(address)
	}
}

func (w *Watcher) onInsert(event *supa.RealtimeEvent) {
	record := event.Record()
	if record == nil {
		return
	}

	userID, _ := record["user_id"].(string)
	address, _ := record["wallet_address"].(string)
	if userID == "" || address == "" {
		return
	}

	w.NotifySaved(userID, address)
}
