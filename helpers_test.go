package storegate

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})

	return mr, rdb
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []sentCode
	failWith error
}

type sentCode struct {
	to   string
	code string
}

func (s *fakeSender) SendCode(_ context.Context, to, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentCode{to: to, code: code})
	return s.failWith
}

func (s *fakeSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeMutator struct {
	mu       sync.Mutex
	tagged   []string
	failWith error
}

func (m *fakeMutator) AddVerifiedTag(_ context.Context, customerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagged = append(m.tagged, customerID)
	return m.failWith
}

func (m *fakeMutator) taggedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tagged)
}

func newTestEngine(t *testing.T, rdb *redis.Client, cfg Config, sender *fakeSender, mutator *fakeMutator) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCodeSender(sender).
		WithTagMutator(mutator).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine
}
