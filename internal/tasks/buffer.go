package tasks

type writeOutcome int

const (
	writeQueued writeOutcome = iota + 1
	writeDone
	writeFailed
)

// pendingWrite ties one Added entry to the destination item it waits on.
type pendingWrite struct {
	id  string
	pos int // index into SyncState.Added
}

// writeBuffer collects the items queued for the next write to one playlist or to the liked list.
//
// ids holds each item once; entries holds every track occurrence waiting on those ids, so repeated
// source tracks share a single write. Outcomes outlive reset for the whole container.
type writeBuffer struct {
	ids      []string
	entries  []pendingWrite
	outcomes map[string]writeOutcome
}

func newWriteBuffer() *writeBuffer {
	return &writeBuffer{outcomes: make(map[string]writeOutcome)}
}

// Len is the number of distinct items awaiting a write.
func (b *writeBuffer) Len() int {
	return len(b.ids)
}

func (b *writeBuffer) outcome(id string) writeOutcome {
	return b.outcomes[id]
}

// queue registers the Added entry at pos for id. Items already written need no new entry.
func (b *writeBuffer) queue(id string, pos int) {
	switch b.outcomes[id] {
	case writeDone:
		return
	case writeQueued:
	default:
		b.outcomes[id] = writeQueued
		b.ids = append(b.ids, id)
	}
	b.entries = append(b.entries, pendingWrite{id: id, pos: pos})
}

func (b *writeBuffer) commit(ids ...string) {
	for _, id := range ids {
		b.outcomes[id] = writeDone
	}
}

func (b *writeBuffer) fail(id string) {
	b.outcomes[id] = writeFailed
}

func (b *writeBuffer) reset() {
	b.ids = nil
	b.entries = nil
}
