package opposed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/louisbranch/dicecore/internal/core/check"
	"github.com/louisbranch/dicecore/internal/platform/id"
)

var (
	// ErrSessionNotFound indicates an unknown request id.
	ErrSessionNotFound = errors.New("opposed session not found")
	// ErrInvalidState indicates an operation the session state does not allow.
	ErrInvalidState = errors.New("opposed session is not in the required state")
	// ErrMissingCounterpart indicates the attacker or defender record could not
	// be resolved at finalize time.
	ErrMissingCounterpart = errors.New("opposed counterpart is missing")
)

// State is the handshake stage of an opposed test.
type State int

const (
	// StateWaiting holds the attacker's outcome until the defender responds.
	StateWaiting State = iota
	// StateReady has both outcomes and can be resolved.
	StateReady
	// StateResolved has applied its verdict; further resolves are no-ops.
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateReady:
		return "ready"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Session is a snapshot of one handshake.
type Session struct {
	ID         string
	AttackerID string
	DefenderID string
	// Details carries caller data needed at finalize time, such as the weapon
	// and hit location of the attack.
	Details map[string]string
	Attack  check.Outcome
	Defense check.Outcome
	State   State
	Result  Outcome
}

// FinalizeFunc applies a verdict, for example by writing wounds. Returning an
// error leaves the session Ready.
type FinalizeFunc func(ctx context.Context, session Session, outcome Outcome) error

type entry struct {
	session   Session
	resolving bool
}

// Registry tracks handshakes by request id. Each session has a single writer:
// a second resolve while one is running, or after it finished, is a silent
// no-op. Waiting sessions never expire; callers Clear them.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	newID    func() (string, error)
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIDGenerator overrides request id generation.
func WithIDGenerator(gen func() (string, error)) RegistryOption {
	return func(r *Registry) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions: map[string]*entry{},
		newID:    id.NewID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open starts a handshake with the attacker's outcome and returns its id.
func (r *Registry) Open(attackerID, defenderID string, attack check.Outcome, details map[string]string) (string, error) {
	if attackerID == "" || defenderID == "" {
		return "", fmt.Errorf("%w: attacker and defender ids are required", ErrMissingCounterpart)
	}
	if err := validate(attack); err != nil {
		return "", fmt.Errorf("attacker: %w", err)
	}
	requestID, err := r.newID()
	if err != nil {
		return "", err
	}

	cloned := make(map[string]string, len(details))
	for k, v := range details {
		cloned[k] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[requestID] = &entry{session: Session{
		ID:         requestID,
		AttackerID: attackerID,
		DefenderID: defenderID,
		Details:    cloned,
		Attack:     attack,
		State:      StateWaiting,
	}}
	return requestID, nil
}

// Submit records the defender's outcome and moves the session to Ready.
func (r *Registry) Submit(requestID string, defense check.Outcome) error {
	if err := validate(defense); err != nil {
		return fmt.Errorf("defender: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[requestID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, requestID)
	}
	if e.session.State != StateWaiting {
		return fmt.Errorf("%w: session %s is %s", ErrInvalidState, requestID, e.session.State)
	}
	e.session.Defense = defense
	e.session.State = StateReady
	return nil
}

// Get returns a snapshot of the session.
func (r *Registry) Get(requestID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[requestID]
	if !ok {
		return Session{}, false
	}
	return e.session, true
}

// Resolve scores a Ready session and hands the verdict to finalize.
//
// The boolean result reports whether this call performed the resolution.
// Resolving a session that is already Resolved or currently being resolved
// returns (Outcome{}, false, nil). When finalize fails the session stays
// Ready and the error is returned.
func (r *Registry) Resolve(ctx context.Context, requestID string, mode Mode, finalize FinalizeFunc) (Outcome, bool, error) {
	r.mu.Lock()
	e, ok := r.sessions[requestID]
	if !ok {
		r.mu.Unlock()
		return Outcome{}, false, fmt.Errorf("%w: %s", ErrSessionNotFound, requestID)
	}
	if e.resolving || e.session.State == StateResolved {
		r.mu.Unlock()
		return Outcome{}, false, nil
	}
	if e.session.State != StateReady {
		state := e.session.State
		r.mu.Unlock()
		return Outcome{}, false, fmt.Errorf("%w: session %s is %s", ErrInvalidState, requestID, state)
	}
	e.resolving = true
	snapshot := e.session
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		e.resolving = false
		r.mu.Unlock()
	}

	if err := ctx.Err(); err != nil {
		release()
		return Outcome{}, false, err
	}

	outcome, err := Resolve(mode, snapshot.Attack, snapshot.Defense)
	if err != nil {
		release()
		return Outcome{}, false, err
	}
	if finalize != nil {
		if err := finalize(ctx, snapshot, outcome); err != nil {
			release()
			return Outcome{}, false, err
		}
	}

	r.mu.Lock()
	e.resolving = false
	e.session.State = StateResolved
	e.session.Result = outcome
	r.mu.Unlock()
	return outcome, true, nil
}

// Clear drops a session in any state. It reports whether one existed.
func (r *Registry) Clear(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[requestID]; !ok {
		return false
	}
	delete(r.sessions, requestID)
	return true
}

// Len returns the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
