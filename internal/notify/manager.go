package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Filter decides whether a delivered event is relevant to the subscription.
type Filter func(Event) bool

// ScopeFilter keeps events that are unscoped or scoped to the given subject.
func ScopeFilter(subject string) Filter {
	return func(e Event) bool {
		return e.Scope == "" || e.Scope == subject
	}
}

// SubscriptionManager owns the change-feed subscription set for one signed-in
// user. Starting a session for a new identity tears down the previous set
// first, so subscriptions never leak across sessions or tenants.
type SubscriptionManager struct {
	broker Broker
	logger *zap.Logger

	mu     sync.Mutex
	userID string
	cancel func()
	done   chan struct{}
}

// NewSubscriptionManager constructs a manager over the given broker.
func NewSubscriptionManager(broker Broker, logger *zap.Logger) *SubscriptionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionManager{broker: broker, logger: logger}
}

// Start establishes the subscription set for userID. Any previous session's
// subscriptions are torn down before the new ones attach. Events passing the
// filter (nil means all) are delivered to handler on a dedicated goroutine.
func (m *SubscriptionManager) Start(ctx context.Context, userID string, tables []string, filter Filter, handler func(Event)) error {
	m.Stop()

	subCtx, cancelCtx := context.WithCancel(ctx)
	events, cancelSub, err := m.broker.Subscribe(subCtx, tables...)
	if err != nil {
		cancelCtx()
		return err
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.userID = userID
	m.cancel = func() {
		cancelSub()
		cancelCtx()
	}
	m.done = done
	m.mu.Unlock()

	m.logger.Info("change-feed session started", zap.String("user_id", userID), zap.Strings("tables", tables))

	go func() {
		defer close(done)
		for event := range events {
			if filter != nil && !filter(event) {
				continue
			}
			handler(event)
		}
	}()
	return nil
}

// Stop tears down the active subscription set, if any, and waits for the
// delivery goroutine to drain.
func (m *SubscriptionManager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	userID := m.userID
	m.cancel = nil
	m.done = nil
	m.userID = ""
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("change-feed session stopped", zap.String("user_id", userID))
}

// ActiveUser returns the identity the current subscription set belongs to.
func (m *SubscriptionManager) ActiveUser() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}
