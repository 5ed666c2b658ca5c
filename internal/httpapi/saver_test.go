package httpapi

import (
	"context"
	"testing"
	"time"

	"github.com/devworth/devworth/internal/store"
	"go.uber.org/zap"
)

type blockingStore struct {
	stubStore
	release chan struct{}
}

func (b *blockingStore) Save(_ context.Context, record *store.Record) store.SaveResult {
	<-b.release
	b.saved <- record
	return store.SaveResult{Saved: true}
}

func TestSaverSubmitNeverBlocks(t *testing.T) {
	st := &blockingStore{
		stubStore: *newStubStore(),
		release:   make(chan struct{}),
	}

	s := newSaver(st, zap.NewNop(), 2)

	// The worker is stuck on the first record; two more fill the queue and
	// any further submissions must be dropped without blocking.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			s.submit(&store.Record{GithubUsername: "octocat"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("submit blocked on a full queue")
	}

	close(st.release)
	s.close()
}

func TestSaverDrainsOnClose(t *testing.T) {
	st := newStubStore()
	s := newSaver(st, zap.NewNop(), 4)

	for i := 0; i < 3; i++ {
		s.submit(&store.Record{GithubUsername: "octocat"})
	}
	s.close()

	if got := len(st.saved); got != 3 {
		t.Fatalf("expected 3 saves after close, got %d", got)
	}
}
