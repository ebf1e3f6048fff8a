package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"reminder-bot/internal/model"
)

// RedeliverFunc re-evaluates a reminder after a repeat delay. It returns
// false once the chain should end.
type RedeliverFunc func(ctx context.Context) bool

type repeatChain struct {
	id     uint64
	cancel context.CancelFunc
}

// RepeatChains runs at most one re-delivery loop per instance token.
type RepeatChains struct {
	log *zap.Logger

	mu     sync.Mutex
	root   context.Context
	stop   context.CancelFunc
	chains map[model.Token]*repeatChain
	nextID uint64
	wg     sync.WaitGroup
}

func NewRepeatChains(log *zap.Logger) *RepeatChains {
	if log == nil {
		log = zap.NewNop()
	}
	root, stop := context.WithCancel(context.Background())
	return &RepeatChains{
		log:    log,
		root:   root,
		stop:   stop,
		chains: make(map[model.Token]*repeatChain),
	}
}

// Arm starts a chain that calls fn every interval until fn returns false or
// the chain is cancelled. It is a no-op returning false if a chain for token
// is already active.
func (m *RepeatChains) Arm(token model.Token, interval time.Duration, fn RedeliverFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root.Err() != nil {
		return false
	}
	if _, ok := m.chains[token]; ok {
		return false
	}

	m.nextID++
	ctx, cancel := context.WithCancel(m.root)
	chain := &repeatChain{id: m.nextID, cancel: cancel}
	m.chains[token] = chain

	m.wg.Add(1)
	go m.run(ctx, token, chain.id, interval, fn)
	m.log.Debug("repeat chain armed", zap.String("token", string(token)), zap.Duration("interval", interval))
	return true
}

func (m *RepeatChains) run(ctx context.Context, token model.Token, id uint64, interval time.Duration, fn RedeliverFunc) {
	defer m.wg.Done()
	defer m.release(token, id)

	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		// The delay may expire in the same instant the chain is cancelled.
		if ctx.Err() != nil {
			return
		}
		if !fn(ctx) {
			return
		}
		timer.Reset(interval)
	}
}

// release drops the registry entry if it still belongs to chain id.
func (m *RepeatChains) release(token model.Token, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if chain, ok := m.chains[token]; ok && chain.id == id {
		chain.cancel()
		delete(m.chains, token)
	}
}

// Cancel stops the chain for token. Cancelling an inactive token is a no-op.
func (m *RepeatChains) Cancel(token model.Token) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	chain, ok := m.chains[token]
	if !ok {
		return false
	}
	chain.cancel()
	delete(m.chains, token)
	return true
}

// CancelAllForTask stops every chain whose token belongs to taskID.
func (m *RepeatChains) CancelAllForTask(taskID uint) int {
	prefix := model.TaskPrefix(taskID)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for token, chain := range m.chains {
		if strings.HasPrefix(string(token), prefix) {
			chain.cancel()
			delete(m.chains, token)
			n++
		}
	}
	return n
}

// Active reports whether a chain for token is running.
func (m *RepeatChains) Active(token model.Token) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.chains[token]
	return ok
}

// Stop cancels every chain and waits for their goroutines to exit.
func (m *RepeatChains) Stop() {
	m.mu.Lock()
	m.stop()
	for token, chain := range m.chains {
		chain.cancel()
		delete(m.chains, token)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
