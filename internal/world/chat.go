package world

import "unicode/utf8"

// SystemSender and SystemColor identify chat entries synthesized by the server.
const (
	SystemSender = "System"
	SystemColor  = "#ffd700"
)

// ChatEntry is a single chat line.
type ChatEntry struct {
	Name      string `json:"name"`
	Color     string `json:"color"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// ChatLog is a bounded, arrival-ordered chat history.
//
// Invariant: Len() <= capacity; once full, each Append evicts the oldest entry.
type ChatLog struct {
	buf   []ChatEntry
	start int
	size  int
}

// NewChatLog creates an empty log holding at most capacity entries.
//
// Precondition: capacity >= 1.
func NewChatLog(capacity int) *ChatLog {
	if capacity < 1 {
		capacity = 1
	}
	return &ChatLog{buf: make([]ChatEntry, capacity)}
}

// Append adds e as the newest entry, dropping the oldest when full.
func (l *ChatLog) Append(e ChatEntry) {
	capacity := len(l.buf)
	if l.size < capacity {
		l.buf[(l.start+l.size)%capacity] = e
		l.size++
		return
	}
	l.buf[l.start] = e
	l.start = (l.start + 1) % capacity
}

// Len returns the number of stored entries.
func (l *ChatLog) Len() int {
	return l.size
}

// Tail returns a copy of the newest n entries, oldest first.
// n <= 0 yields an empty slice; n larger than Len yields everything.
func (l *ChatLog) Tail(n int) []ChatEntry {
	if n > l.size {
		n = l.size
	}
	if n < 0 {
		n = 0
	}
	out := make([]ChatEntry, n)
	capacity := len(l.buf)
	first := l.start + l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.buf[(first+i)%capacity]
	}
	return out
}

// Truncate caps s at max runes without splitting a multi-byte character.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
