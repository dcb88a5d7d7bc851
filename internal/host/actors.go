package host

import (
	"sync"

	"github.com/aixgo-dev/axon/agent"
)

// actorRecord is one live actor instance. The backlog is its mailbox:
// queued units of work in arrival order, drained by one pool worker at a
// time so at most one call ever executes against the instance.
type actorRecord struct {
	id    string
	class string
	impl  agent.Actor

	mu        sync.Mutex
	backlog   []*task
	running   bool
	destroyed bool
}

// actorTable maps actor ids to records. Entry state is guarded by each
// record's own lock so one actor's contention never blocks another's.
type actorTable struct {
	mu      sync.RWMutex
	records map[string]*actorRecord
}

func newActorTable() *actorTable {
	return &actorTable{records: make(map[string]*actorRecord)}
}

func (t *actorTable) add(rec *actorRecord) {
	t.mu.Lock()
	t.records[rec.id] = rec
	t.mu.Unlock()
}

func (t *actorTable) get(id string) (*actorRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return rec, ok
}

// remove marks the record destroyed and drops it from the table. Returns
// false if the id was unknown. Queued backlog entries fail when a worker
// reaches them; the currently executing call, if any, runs to completion.
func (t *actorTable) remove(id string) bool {
	t.mu.Lock()
	rec, ok := t.records[id]
	if ok {
		delete(t.records, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}

	rec.mu.Lock()
	rec.destroyed = true
	rec.mu.Unlock()
	return true
}

func (t *actorTable) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
