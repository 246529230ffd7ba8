package surface

import "sync"

// History is an in-memory stand-in for a browser history: a list of query strings
// and a cursor.
type History struct {
	mu      sync.Mutex
	entries []string
	cursor  int
}

// NewHistory starts a history at initial.
func NewHistory(initial string) *History {
	return &History{entries: []string{initial}}
}

// Replace overwrites the current entry.
func (h *History) Replace(query string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.cursor] = query
}

// Push adds an entry after the cursor and drops the forward entries.
func (h *History) Push(query string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.cursor+1], query)
	h.cursor++
}

// Back moves the cursor one entry back.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Forward moves the cursor one entry forward.
func (h *History) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == len(h.entries)-1 {
		return "", false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

// Current returns the entry under the cursor.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.cursor]
}

// Position returns the cursor and the number of entries.
func (h *History) Position() (cursor, length int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cursor, len(h.entries)
}
