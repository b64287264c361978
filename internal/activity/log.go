// Package activity keeps a bounded, timestamped log of crawl events.
package activity

import (
	"fmt"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

// Entry is one log line.
type Entry struct {
	Time    time.Time
	Message string
}

func (e Entry) String() string {
	return fmt.Sprintf("%s %s", e.Time.Format(timeLayout), e.Message)
}

// Log is a ring buffer of entries: once full, each append evicts the oldest
// entry. Log is not safe for concurrent use.
type Log struct {
	buf   []Entry
	start int
	n     int
}

// New returns an empty log holding at most capacity entries. A capacity
// below one is raised to one.
func New(capacity int) *Log {
	if capacity < 1 {
		capacity = 1
	}
	return &Log{buf: make([]Entry, capacity)}
}

func (l *Log) Append(t time.Time, msg string) {
	if l.n < len(l.buf) {
		l.buf[(l.start+l.n)%len(l.buf)] = Entry{Time: t, Message: msg}
		l.n++
		return
	}
	l.buf[l.start] = Entry{Time: t, Message: msg}
	l.start = (l.start + 1) % len(l.buf)
}

// Lines returns the retained entries formatted as text, oldest first.
func (l *Log) Lines() []string {
	out := make([]string, l.n)
	for i := 0; i < l.n; i++ {
		out[i] = l.buf[(l.start+i)%len(l.buf)].String()
	}
	return out
}

// Reset drops every entry.
func (l *Log) Reset() {
	clear(l.buf)
	l.start, l.n = 0, 0
}
