package console

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_admin/edo"
)

// ControllerFactory builds the controller for a new console session.
type ControllerFactory func(ctx context.Context, sessionId string) *edo.Controller

type sessionEntry struct {
	controller *edo.Controller
	owner      string
	lastSeen   time.Time
}

// Registry holds the open console sessions. Each controller serializes its own dispatches.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	factory  ControllerFactory
	now      func() time.Time
}

func NewRegistry(factory ControllerFactory) *Registry {
	return &Registry{
		sessions: make(map[string]*sessionEntry),
		factory:  factory,
		now:      time.Now,
	}
}

// Create opens a session owned by owner and runs its first load.
func (r *Registry) Create(ctx context.Context, owner string) (string, edo.Result) {
	id := uuid.NewString()
	controller := r.factory(ctx, id)

	r.mu.Lock()
	r.sessions[id] = &sessionEntry{controller: controller, owner: owner, lastSeen: r.now()}
	r.mu.Unlock()

	return id, controller.Init(ctx)
}

// Get returns the session's controller and marks it as used. Sessions of other owners are
// reported as missing.
func (r *Registry) Get(id, owner string) (*edo.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok || entry.owner != owner {
		return nil, false
	}
	entry.lastSeen = r.now()
	return entry.controller, true
}

func (r *Registry) Delete(id, owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[id]
	if !ok || entry.owner != owner {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Expire drops sessions idle for longer than idle and returns how many were dropped.
func (r *Registry) Expire(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idle)
	dropped := 0
	for id, entry := range r.sessions {
		if entry.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

// RunJanitor expires idle sessions every interval until ctx is done.
func (r *Registry) RunJanitor(ctx context.Context, idle, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Expire(idle)
		}
	}
}
