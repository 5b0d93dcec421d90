package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/core/ports"
)

const DefaultRevealDuration = 10 * time.Second

// AfterFunc schedules f after d and returns a function that stops it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

func timeAfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type revealTimer struct {
	generation uint64
	stop       func() bool
}

// RevealScheduler keeps at most one hide timer per key. A timer that fires
// after it was replaced or cancelled is ignored.
type RevealScheduler struct {
	delay time.Duration
	after AfterFunc

	mu         sync.Mutex
	timers     map[string]revealTimer
	generation uint64
	closed     bool
}

func NewRevealScheduler(delay time.Duration, after AfterFunc) *RevealScheduler {
	if delay <= 0 {
		delay = DefaultRevealDuration
	}
	if after == nil {
		after = timeAfterFunc
	}
	return &RevealScheduler{
		delay:  delay,
		after:  after,
		timers: make(map[string]revealTimer),
	}
}

// Arm replaces the key's timer with a fresh one that calls onExpire.
func (s *RevealScheduler) Arm(id string, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if current, ok := s.timers[id]; ok {
		current.stop()
	}
	s.generation++
	gen := s.generation
	stop := s.after(s.delay, func() {
		s.mu.Lock()
		current, ok := s.timers[id]
		if !ok || current.generation != gen {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.mu.Unlock()
		onExpire()
	})
	s.timers[id] = revealTimer{generation: gen, stop: stop}
}

func (s *RevealScheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.timers[id]; ok {
		current.stop()
		delete(s.timers, id)
	}
}

func (s *RevealScheduler) Active(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

// Close stops every timer; later Arm calls are ignored.
func (s *RevealScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, current := range s.timers {
		current.stop()
		delete(s.timers, id)
	}
	s.closed = true
}

// KeyManager is the API-key list with client-side reveal state.
type KeyManager struct {
	service   ports.APIKeyService
	scheduler *RevealScheduler

	mu   sync.Mutex
	keys []domain.APIKey
}

func NewKeyManager(service ports.APIKeyService, scheduler *RevealScheduler) *KeyManager {
	if scheduler == nil {
		scheduler = NewRevealScheduler(DefaultRevealDuration, nil)
	}
	return &KeyManager{service: service, scheduler: scheduler}
}

// Load replaces the list with the backend's and hides every key.
func (m *KeyManager) Load(ctx context.Context) ([]domain.APIKey, error) {
	keys, err := m.service.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}

	m.mu.Lock()
	previous := m.keys
	m.keys = make([]domain.APIKey, 0, len(keys))
	for _, k := range keys {
		k.Visible = false
		k.Copied = false
		m.keys = append(m.keys, k)
	}
	m.mu.Unlock()

	for _, k := range previous {
		m.scheduler.Cancel(k.ID)
	}
	return m.Keys(), nil
}

// Keys returns the list with hidden values replaced by the mask.
func (m *KeyManager) Keys() []domain.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.APIKey, 0, len(m.keys))
	for _, k := range m.keys {
		k.Value = k.Display()
		out = append(out, k)
	}
	return out
}

// Display returns the key's plaintext while revealed and the mask otherwise.
func (m *KeyManager) Display(id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return "", keyNotFound("display key", id)
	}
	return m.keys[idx].Display(), nil
}

// Create adds a new key. The returned key carries the plaintext value.
func (m *KeyManager) Create(ctx context.Context, name string) (*domain.APIKey, error) {
	created, err := m.service.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.keys = append(m.keys, *created)
	m.mu.Unlock()
	return created, nil
}

func (m *KeyManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	exists := m.indexLocked(id) >= 0
	m.mu.Unlock()
	if !exists {
		return keyNotFound("delete key", id)
	}

	if err := m.service.Delete(ctx, id); err != nil {
		return err
	}
	m.scheduler.Cancel(id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if idx := m.indexLocked(id); idx >= 0 {
		m.keys = append(m.keys[:idx], m.keys[idx+1:]...)
	}
	return nil
}

// Reveal shows the key and restarts its hide timer.
func (m *KeyManager) Reveal(id string) error {
	if err := m.update(id, "reveal key", func(k *domain.APIKey) { k.Visible = true }); err != nil {
		return err
	}
	m.arm(id)
	return nil
}

// Copy reveals the key, marks it copied, and returns the plaintext.
func (m *KeyManager) Copy(id string) (string, error) {
	var value string
	if err := m.update(id, "copy key", func(k *domain.APIKey) {
		k.Visible = true
		k.Copied = true
		value = k.Value
	}); err != nil {
		return "", err
	}
	m.arm(id)
	return value, nil
}

func (m *KeyManager) Hide(id string) error {
	m.scheduler.Cancel(id)
	return m.update(id, "hide key", hideKey)
}

func (m *KeyManager) Toggle(id string) error {
	m.mu.Lock()
	idx := m.indexLocked(id)
	visible := idx >= 0 && m.keys[idx].Visible
	m.mu.Unlock()
	if idx < 0 {
		return keyNotFound("toggle key", id)
	}
	if visible {
		return m.Hide(id)
	}
	return m.Reveal(id)
}

// Close cancels every pending hide timer.
func (m *KeyManager) Close() {
	m.scheduler.Close()
}

func (m *KeyManager) arm(id string) {
	m.scheduler.Arm(id, func() {
		_ = m.update(id, "auto hide key", hideKey)
	})
}

func (m *KeyManager) update(id, operation string, fn func(*domain.APIKey)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexLocked(id)
	if idx < 0 {
		return keyNotFound(operation, id)
	}
	fn(&m.keys[idx])
	return nil
}

func (m *KeyManager) indexLocked(id string) int {
	for i := range m.keys {
		if m.keys[i].ID == id {
			return i
		}
	}
	return -1
}

func hideKey(k *domain.APIKey) {
	k.Visible = false
	k.Copied = false
}

func keyNotFound(operation, id string) error {
	return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("api key %q", id))
}

// Reset forgets every key and stops its timer, as on sign-out.
func (m *KeyManager) Reset() {
	m.mu.Lock()
	previous := m.keys
	m.keys = nil
	m.mu.Unlock()

	for _, k := range previous {
		m.scheduler.Cancel(k.ID)
	}
}
