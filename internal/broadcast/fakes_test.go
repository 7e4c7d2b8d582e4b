package broadcast

import (
	"context"
	"errors"
	"sync"

	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
)

type fakeSub struct {
	mu       sync.Mutex
	frames   [][]byte
	sendErr  error
	closed   bool
	received chan []byte
}

func newFakeSub() *fakeSub {
	return &fakeSub{received: make(chan []byte, 64)}
}

func (f *fakeSub) Send(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.closed {
		return errors.New("closed")
	}
	f.frames = append(f.frames, payload)
	select {
	case f.received <- payload:
	default:
	}
	return nil
}

func (f *fakeSub) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSub) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSub) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

type fakeStore struct {
	mu       sync.Mutex
	mailings []model.Mailing
	listErr  error
	getErr   error
	failN    int // ListMailingIDs fails this many times before succeeding
	lists    int
}

func (s *fakeStore) AddMailing(_ context.Context, id, recipients, text string) (model.Mailing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := model.Mailing{ID: id, Recipients: recipients, Text: text}
	s.mailings = append(s.mailings, m)
	return m, nil
}

func (s *fakeStore) ListMailingIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.failN > 0 {
		s.failN--
		return nil, errors.New("store down")
	}
	if s.listErr != nil {
		return nil, s.listErr
	}
	ids := make([]string, len(s.mailings))
	for i, m := range s.mailings {
		ids[i] = m.ID
	}
	return ids, nil
}

func (s *fakeStore) GetMailings(_ context.Context, ids ...string) ([]model.Mailing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	out := make([]model.Mailing, 0, len(ids))
	for _, id := range ids {
		for _, m := range s.mailings {
			if m.ID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) listCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}
