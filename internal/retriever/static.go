package retriever

import (
	"context"
	"sync"
)

// StaticRetriever serves fixed candidates per topic. Topics without an entry
// return nothing. It records the topics it was asked for.
type StaticRetriever struct {
	mu      sync.Mutex
	byTopic map[string][]string
	err     error
	failing map[string]error
	calls   []string
}

// NewStaticRetriever returns a retriever over the given topic → candidates map.
func NewStaticRetriever(byTopic map[string][]string) *StaticRetriever {
	return &StaticRetriever{byTopic: byTopic}
}

// FailWith makes every later Retrieve return err.
func (s *StaticRetriever) FailWith(err error) *StaticRetriever {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return s
}

// FailTopic makes later Retrieve calls for topic return err.
func (s *StaticRetriever) FailTopic(topic string, err error) *StaticRetriever {
	s.mu.Lock()
	if s.failing == nil {
		s.failing = make(map[string]error)
	}
	s.failing[topic] = err
	s.mu.Unlock()
	return s
}

// Retrieve returns up to limit stored candidates for topic.
func (s *StaticRetriever) Retrieve(ctx context.Context, topic, _ string, limit int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, topic)
	if s.err != nil {
		return nil, s.err
	}
	if err, ok := s.failing[topic]; ok {
		return nil, err
	}
	items := s.byTopic[topic]
	if limit >= 0 && len(items) > limit {
		items = items[:limit]
	}
	return append([]string(nil), items...), nil
}

// Calls returns the topics requested so far, in order.
func (s *StaticRetriever) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}
