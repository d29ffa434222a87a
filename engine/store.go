package engine

import (
	"sync"

	"github.com/masumi-network/masumi-gateway/types"
)

// resultKey is the composite identity of a job. jobId alone is not globally
// unique, so the agent's base URL is part of the key.
type resultKey struct {
	apiBaseURL string
	jobID      string
}

// ResultStore caches the last fetched full result per job so a truncated
// preview can be re-expanded without re-calling the agent. It lives for the
// gateway process only; on restart the remote job remains queryable and the
// cache refills on the next terminal poll.
//
// The engine is the single writer. Reads may run concurrently; overlapping
// writes for the same handle are last-write-wins, which is safe because all
// writers observed the same remote source of truth.
type ResultStore struct {
	mu      sync.RWMutex
	entries map[resultKey]types.JobResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{entries: make(map[resultKey]types.JobResult)}
}

func (s *ResultStore) Get(h types.JobHandle) (types.JobResult, bool) {
	if s == nil {
		return types.JobResult{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.entries[keyFor(h)]
	return result, ok
}

func (s *ResultStore) Put(h types.JobHandle, result types.JobResult) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[keyFor(h)] = result
}

func (s *ResultStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func keyFor(h types.JobHandle) resultKey {
	return resultKey{apiBaseURL: h.APIBaseURL, jobID: h.JobID}
}
