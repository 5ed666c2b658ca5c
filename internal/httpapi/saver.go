package httpapi

import (
	"context"
	"sync"

	"github.com/devworth/devworth/internal/store"
	"go.uber.org/zap"
)

const defaultQueueSize = 64

// saver is the fire-and-forget persistence queue. Submissions never block
// the response path and outcomes are only ever logged: a failed or dropped
// write is invisible to the requester by contract.
type saver struct {
	store  AnalysisStore
	logger *zap.Logger
	queue  chan *store.Record
	wg     sync.WaitGroup
}

func newSaver(st AnalysisStore, logger *zap.Logger, size int) *saver {
	if size <= 0 {
		size = defaultQueueSize
	}

	s := &saver{
		store:  st,
		logger: logger,
		queue:  make(chan *store.Record, size),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *saver) run() {
	defer s.wg.Done()

	for record := range s.queue {
		result := s.store.Save(context.Background(), record)

		switch {
		case result.Err != nil:
			s.logger.Warn("background save failed",
				zap.String("username", record.GithubUsername),
				zap.Error(result.Err),
			)
		case result.Skipped:
			s.logger.Debug("background save skipped, store not configured",
				zap.String("username", record.GithubUsername),
			)
		default:
			s.logger.Debug("analysis saved",
				zap.String("username", record.GithubUsername),
				zap.String("id", result.ID),
			)
		}
	}
}

// submit enqueues a record without blocking. A full queue drops the record.
func (s *saver) submit(record *store.Record) {
	select {
	case s.queue <- record:
	default:
		s.logger.Warn("save queue full, dropping analysis",
			zap.String("username", record.GithubUsername),
		)
	}
}

// close drains pending submissions and stops the worker.
func (s *saver) close() {
	close(s.queue)
	s.wg.Wait()
}
