package collector

// FrontierEntry is a player waiting to have their match history expanded.
type FrontierEntry struct {
	PUUID string
	Depth int
}

// compactAt is the number of consumed slots after which the backing slice is
// shifted down.
const compactAt = 1024

// Frontier is a FIFO queue of players, giving breadth-first traversal.
// It is not safe for concurrent use; the spider owns it.
type Frontier struct {
	entries []FrontierEntry
	head    int
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{entries: make([]FrontierEntry, 0, 1000)}
}

// Push appends e to the back of the queue.
func (f *Frontier) Push(e FrontierEntry) {
	f.entries = append(f.entries, e)
}

// Pop removes and returns the oldest entry. ok is false when the queue is empty.
func (f *Frontier) Pop() (FrontierEntry, bool) {
	if f.head >= len(f.entries) {
		return FrontierEntry{}, false
	}
	e := f.entries[f.head]
	f.entries[f.head] = FrontierEntry{}
	f.head++

	if f.head == len(f.entries) {
		f.entries = f.entries[:0]
		f.head = 0
	} else if f.head >= compactAt && f.head*2 >= len(f.entries) {
		n := copy(f.entries, f.entries[f.head:])
		f.entries = f.entries[:n]
		f.head = 0
	}
	return e, true
}

func (f *Frontier) IsEmpty() bool {
	return f.head >= len(f.entries)
}

func (f *Frontier) Len() int {
	return len(f.entries) - f.head
}
