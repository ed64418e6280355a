package shm

import (
	"io"
	"sync"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/valyala/bytebufferpool"
)

// Sink receives diagnostic messages written through Region.Log.
// source is the region name the message is associated with.
type Sink interface {
	Write(source, message string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(source, message string) error

func (f SinkFunc) Write(source, message string) error { return f(source, message) }

// Discard drops every message.
var Discard Sink = SinkFunc(func(string, string) error { return nil })

type writerSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriterSink returns a Sink writing one timestamped line per message to out.
func NewWriterSink(out io.Writer) Sink {
	return &writerSink{out: out}
}

func (s *writerSink) Write(source, message string) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	buf.B = time.Now().AppendFormat(buf.B, "2006-01-02 15:04:05.000000")
	_ = buf.WriteByte(' ')
	_, _ = buf.WriteString(source)
	_, _ = buf.WriteString(": ")
	_, _ = buf.WriteString(message)
	if n := len(message); n == 0 || message[n-1] != '\n' {
		_ = buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.out.Write(buf.B)
	return err
}

// Message is an entry kept by a MemorySink.
type Message struct {
	Source string
	Text   string
	Time   time.Time
}

// MemorySink keeps the most recent messages in memory.
type MemorySink struct {
	mu       sync.Mutex
	q        *queue.Queue
	capacity int64
}

// NewMemorySink returns a sink holding at most capacity messages; older ones are dropped first.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = 1
	}
	return &MemorySink{q: queue.New(int64(capacity)), capacity: int64(capacity)}
}

func (s *MemorySink) Write(source, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.q.Put(Message{Source: source, Text: message, Time: time.Now()}); err != nil {
		return err
	}
	if over := s.q.Len() - s.capacity; over > 0 {
		_, _ = s.q.Get(over)
	}
	return nil
}

// Len returns the number of buffered messages.
func (s *MemorySink) Len() int {
	return int(s.q.Len())
}

// Drain removes and returns all buffered messages, oldest first.
func (s *MemorySink) Drain() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.q.Len()
	if n == 0 {
		return nil
	}
	items, err := s.q.Get(n)
	if err != nil {
		return nil
	}
	out := make([]Message, 0, len(items))
	for _, it := range items {
		if m, ok := it.(Message); ok {
			out = append(out, m)
		}
	}
	return out
}

// Close disposes the queue; later writes fail.
func (s *MemorySink) Close() {
	s.q.Dispose()
}
