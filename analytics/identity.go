package analytics

import (
	"sync"

	"github.com/google/uuid"

	pkgerrors "github.com/SpeechifyInc/analytics-go/pkg/errors"
	"github.com/SpeechifyInc/analytics-go/pkg/value"
)

// IdentitySnapshot is the authoritative identity state at a point in time.
type IdentitySnapshot struct {
	AnonymousID string
	UserID      string
	Traits      value.Value
}

// IdentityStorage persists the identity snapshot across restarts so the
// anonymous id is generated once per install. Implementations may also
// implement io.Closer; the client closes them on shutdown.
type IdentityStorage interface {
	Load() (IdentitySnapshot, bool, error)
	Save(IdentitySnapshot) error
}

type actionKind int

const (
	actionSetUserID actionKind = iota
	actionSetTraits
	actionSetUserIDAndTraits
	actionReset
)

// identityAction is one discrete, atomic state mutation.
type identityAction struct {
	kind      actionKind
	userID    string
	traits    value.Value
	hasTraits bool
}

// identityStore guards the single shared identity snapshot. Readers see a
// fully-pre- or fully-post-action state, never an intermediate one. The lock
// is never held across serialization, enrichment, or pipeline hand-off.
type identityStore struct {
	mu             sync.RWMutex
	snap           IdentitySnapshot
	storage        IdentityStorage
	newAnonymousID func() string
	onStorageError func(error)
}

func newIdentityStore(storage IdentityStorage, newAnonymousID func() string, onStorageError func(error)) (*identityStore, error) {
	if newAnonymousID == nil {
		newAnonymousID = uuid.NewString
	}

	store := &identityStore{
		storage:        storage,
		newAnonymousID: newAnonymousID,
		onStorageError: onStorageError,
	}

	if storage == nil {
		store.snap = IdentitySnapshot{AnonymousID: newAnonymousID()}
		return store, nil
	}

	snap, found, err := storage.Load()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "loading identity snapshot")
	}
	if !found || snap.AnonymousID == "" {
		snap = IdentitySnapshot{AnonymousID: newAnonymousID()}
		if err := storage.Save(snap); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persisting generated anonymous id")
		}
	}
	store.snap = snap
	return store, nil
}

// snapshot returns a consistent copy of the current state.
func (s *identityStore) snapshot() IdentitySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// apply performs one action atomically and returns the states immediately
// before and after it. Actions never fail: storage write failures are
// surfaced through the error callback, not to the caller.
func (s *identityStore) apply(action identityAction) (before, after IdentitySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before = s.snap
	switch action.kind {
	case actionSetUserID:
		s.snap.UserID = action.userID
	case actionSetTraits:
		s.snap.Traits = action.traits
	case actionSetUserIDAndTraits:
		s.snap.UserID = action.userID
		if action.hasTraits {
			s.snap.Traits = action.traits
		}
	case actionReset:
		s.snap = IdentitySnapshot{AnonymousID: s.newAnonymousID()}
	}
	after = s.snap

	if s.storage != nil {
		if err := s.storage.Save(after); err != nil && s.onStorageError != nil {
			s.onStorageError(pkgerrors.Wrap(pkgerrors.CodeStorage, err, "persisting identity snapshot"))
		}
	}
	return before, after
}
