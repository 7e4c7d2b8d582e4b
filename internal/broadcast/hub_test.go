package broadcast

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestHub_AddRemoveLen(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	a, b := newFakeSub(), newFakeSub()

	idA := h.Add(a)
	idB := h.Add(b)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, 2, h.Len())

	assert.True(t, h.Remove(idA))
	assert.False(t, h.Remove(idA))
	assert.True(t, a.isClosed())
	assert.False(t, b.isClosed())
	assert.Equal(t, 1, h.Len())
}

func TestHub_FailingSubscriberDoesNotAffectOthers(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	good1, bad, good2 := newFakeSub(), newFakeSub(), newFakeSub()
	bad.sendErr = errors.New("connection reset")

	h.Add(good1)
	h.Add(bad)
	h.Add(good2)

	n := h.Publish(context.Background(), []byte(`{"x":1}`))
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, good1.count())
	assert.Equal(t, 1, good2.count())
	assert.True(t, bad.isClosed())
	assert.Equal(t, 2, h.Len())

	n = h.Publish(context.Background(), []byte(`{"x":2}`))
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, good1.count())
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	h := NewHub(nil)
	assert.Zero(t, h.Publish(context.Background(), []byte("{}")))
}

func TestHub_CloseAll(t *testing.T) {
	h := NewHub(zaptest.NewLogger(t))
	subs := []*fakeSub{newFakeSub(), newFakeSub(), newFakeSub()}
	for _, s := range subs {
		h.Add(s)
	}

	h.CloseAll()
	assert.Zero(t, h.Len())
	for _, s := range subs {
		assert.True(t, s.isClosed())
	}
}
