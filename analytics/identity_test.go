package analytics

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	pkgerrors "github.com/SpeechifyInc/analytics-go/pkg/errors"
	"github.com/SpeechifyInc/analytics-go/pkg/logger"
	"github.com/SpeechifyInc/analytics-go/pkg/value"
)

type fakeStorage struct {
	mu     sync.Mutex
	snap   IdentitySnapshot
	found  bool
	loadFn func() (IdentitySnapshot, bool, error)
	saveFn func(IdentitySnapshot) error
	saves  int
	closed bool
}

func (f *fakeStorage) Load() (IdentitySnapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadFn != nil {
		return f.loadFn()
	}
	return f.snap, f.found, nil
}

func (f *fakeStorage) Save(snap IdentitySnapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveFn != nil {
		return f.saveFn(snap)
	}
	f.snap = snap
	f.found = true
	f.saves++
	return nil
}

func (f *fakeStorage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestIdentityStoreGeneratesAnonymousIDOnce(t *testing.T) {
	storage := &fakeStorage{}
	store, err := newIdentityStore(storage, nil, nil)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	generated := store.snapshot().AnonymousID
	if generated == "" {
		t.Fatal("expected a generated anonymous id")
	}
	if storage.saves != 1 {
		t.Fatalf("expected the generated id to be persisted once, got %d saves", storage.saves)
	}

	reloaded, err := newIdentityStore(storage, nil, nil)
	if err != nil {
		t.Fatalf("rebuilding store: %v", err)
	}
	if got := reloaded.snapshot().AnonymousID; got != generated {
		t.Fatalf("expected persisted anonymous id %q, got %q", generated, got)
	}
}

func TestIdentityStoreLoadFailureSurfacesAtConstruction(t *testing.T) {
	storage := &fakeStorage{loadFn: func() (IdentitySnapshot, bool, error) {
		return IdentitySnapshot{}, false, fmt.Errorf("disk gone")
	}}

	_, err := newIdentityStore(storage, nil, nil)
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeStorage {
		t.Fatalf("expected storage error, got %v", err)
	}
}

func TestIdentityStoreSaveFailureReportedNotFatal(t *testing.T) {
	failing := false
	storage := &fakeStorage{}
	storage.saveFn = func(snap IdentitySnapshot) error {
		if failing {
			return fmt.Errorf("disk full")
		}
		storage.snap = snap
		storage.found = true
		return nil
	}

	var surfaced []error
	store, err := newIdentityStore(storage, nil, func(err error) {
		surfaced = append(surfaced, err)
	})
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	failing = true
	_, after := store.apply(identityAction{kind: actionSetUserID, userID: "u1"})
	if after.UserID != "u1" {
		t.Fatal("expected action to succeed despite storage failure")
	}
	if len(surfaced) != 1 {
		t.Fatalf("expected one surfaced storage error, got %d", len(surfaced))
	}
	if pkgerrors.As(surfaced[0]).Code() != pkgerrors.CodeStorage {
		t.Fatalf("expected storage code, got %v", surfaced[0])
	}
}

func TestIdentityStoreApplyReturnsBeforeAndAfter(t *testing.T) {
	store, err := newIdentityStore(nil, nil, nil)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	store.apply(identityAction{kind: actionSetUserID, userID: "old"})
	before, after := store.apply(identityAction{kind: actionSetUserID, userID: "new"})

	if before.UserID != "old" {
		t.Fatalf("expected before userId old, got %q", before.UserID)
	}
	if after.UserID != "new" {
		t.Fatalf("expected after userId new, got %q", after.UserID)
	}
}

func TestIdentityStoreSetTraitsReplacesWholesale(t *testing.T) {
	store, err := newIdentityStore(nil, nil, nil)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	store.apply(identityAction{
		kind:   actionSetTraits,
		traits: value.Object(value.Field{Key: "a", Value: value.Number(1)}),
	})
	_, after := store.apply(identityAction{
		kind:   actionSetTraits,
		traits: value.Object(value.Field{Key: "b", Value: value.Number(2)}),
	})

	if _, ok := after.Traits.Get("a"); ok {
		t.Fatal("expected old traits to be replaced wholesale")
	}
	if _, ok := after.Traits.Get("b"); !ok {
		t.Fatal("expected new traits to be present")
	}
}

func TestIdentityStoreEmptyUserIDAccepted(t *testing.T) {
	store, err := newIdentityStore(nil, nil, nil)
	if err != nil {
		t.Fatalf("building store: %v", err)
	}

	store.apply(identityAction{kind: actionSetUserID, userID: "u1"})
	_, after := store.apply(identityAction{kind: actionSetUserID, userID: ""})
	if after.UserID != "" {
		t.Fatalf("expected empty user id to be accepted as-is, got %q", after.UserID)
	}
}

func TestClientCloseClosesStorage(t *testing.T) {
	storage := &fakeStorage{}
	pipeline := &fakePipeline{}
	client, err := New(Params{
		Pipeline: pipeline,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Reporter: &fakeReporter{},
		Storage:  storage,
	})
	if err != nil {
		t.Fatalf("building client: %v", err)
	}

	client.IdentifyUser(context.Background(), "u1")
	if err := client.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if !storage.closed {
		t.Fatal("expected storage to be closed")
	}
	if !pipeline.closed {
		t.Fatal("expected pipeline to be closed")
	}
}
