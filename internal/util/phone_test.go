package util

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"+7 (912) 345-67-89", "+79123456789"},
		{"89123456789", "+79123456789"},
		{"9123456789", "+79123456789"},
		{"79123456789", "+79123456789"},
		{"0079123456789", "+79123456789"},
		{" +44 20 7946 0958 ", "+442079460958"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), "input %q", tt.in)
	}
}

func TestSplitAndCountPhones(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"+79123456789", "+79990000000", "+70000000000"},
		SplitPhones("+79123456789, +79990000000;+70000000000"))
	assert.Equal(t, 1, CountPhones("+79123456789"))
	assert.Equal(t, 2, CountPhones("+79123456789;;, +79990000000,"))
	assert.Equal(t, 0, CountPhones("  "))
}

func TestJoinPhones(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "+79123456789,+79990000000", JoinPhones("8 912 345 67 89; 9990000000"))
}

func TestNewID_UniqueUnderConcurrency(t *testing.T) {
	t.Parallel()

	const n = 200
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := NewID()
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
}
