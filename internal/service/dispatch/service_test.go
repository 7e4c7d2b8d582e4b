package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Maxim80/devman-async-sms-mailings/internal/config"
	"github.com/Maxim80/devman-async-sms-mailings/internal/errs"
	"github.com/Maxim80/devman-async-sms-mailings/internal/gateway"
	"github.com/Maxim80/devman-async-sms-mailings/internal/model"
	"github.com/Maxim80/devman-async-sms-mailings/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSender struct {
	calls []gateway.SendRequest
	res   gateway.SendResult
	err   error
}

func (f *fakeSender) Send(_ context.Context, r gateway.SendRequest) (gateway.SendResult, error) {
	f.calls = append(f.calls, r)
	return f.res, f.err
}

type storedMailing struct{ id, recipients, text string }

type fakeStore struct {
	mu      sync.Mutex
	added   []storedMailing
	err     error
	created time.Time
}

func (f *fakeStore) AddMailing(ctx context.Context, id, recipients, text string) (model.Mailing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ctx.Err() != nil {
		return model.Mailing{}, ctx.Err()
	}
	if f.err != nil {
		return model.Mailing{}, f.err
	}
	f.added = append(f.added, storedMailing{id, recipients, text})
	return model.Mailing{
		ID:          id,
		Text:        text,
		Recipients:  recipients,
		PhonesCount: util.CountPhones(recipients),
		CreatedAt:   f.created,
	}, nil
}

func (f *fakeStore) ListMailingIDs(context.Context) ([]string, error) { return nil, nil }

func (f *fakeStore) GetMailings(context.Context, ...string) ([]model.Mailing, error) {
	return nil, nil
}

type fakePublisher struct {
	events []model.MailingCreated
	err    error
}

func (f *fakePublisher) PublishMailingCreated(_ context.Context, ev model.MailingCreated) error {
	f.events = append(f.events, ev)
	return f.err
}

func defaultCfg() config.DispatchConfig {
	return config.DispatchConfig{Recipients: "+79123456789", ValidHours: 1}
}

func TestDispatch_Success(t *testing.T) {
	gw := &fakeSender{res: gateway.SendResult{ID: "24", Count: 1}}
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := New(gw, store, defaultCfg(), zaptest.NewLogger(t)).WithEvents(pub)

	res, err := svc.Dispatch(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, Result{ID: "24", Count: 1}, res)

	require.Len(t, gw.calls, 1)
	assert.Equal(t, gateway.SendRequest{Phones: "+79123456789", Message: "hello", ValidHours: 1}, gw.calls[0])

	require.Len(t, store.added, 1)
	assert.Equal(t, storedMailing{"24", "+79123456789", "hello"}, store.added[0])

	require.Len(t, pub.events, 1)
	assert.Equal(t, "24", pub.events[0].ID)
	assert.Equal(t, 1, pub.events[0].PhonesCount)
}

func TestDispatch_EventCarriesStoredRecord(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 123000, time.UTC)
	gw := &fakeSender{res: gateway.SendResult{ID: "31", Count: 2}}
	store := &fakeStore{created: created}
	pub := &fakePublisher{}
	svc := New(gw, store, defaultCfg(), zaptest.NewLogger(t)).WithEvents(pub)

	_, err := svc.Dispatch(context.Background(), "hi", "1;2")
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, model.MailingCreated{
		ID:          "31",
		Text:        "hi",
		Recipients:  "1;2",
		PhonesCount: 2,
		CreatedAt:   created,
	}, pub.events[0])
}

func TestDispatch_EmptyTextRejectedBeforeNetwork(t *testing.T) {
	gw := &fakeSender{}
	store := &fakeStore{}
	svc := New(gw, store, defaultCfg(), zaptest.NewLogger(t))

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := svc.Dispatch(context.Background(), text, "")
		require.Error(t, err)
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.Equal(t, "Text field cannot be empty", err.Error())
	}
	assert.Empty(t, gw.calls)
	assert.Empty(t, store.added)
}

func TestDispatch_NoRecipients(t *testing.T) {
	gw := &fakeSender{}
	svc := New(gw, &fakeStore{}, config.DispatchConfig{}, nil)

	_, err := svc.Dispatch(context.Background(), "hi", " ; ,")
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.Empty(t, gw.calls)
}

func TestDispatch_ExplicitRecipientsAndDefaultValidity(t *testing.T) {
	gw := &fakeSender{res: gateway.SendResult{ID: "9"}}
	store := &fakeStore{}
	svc := New(gw, store, config.DispatchConfig{Recipients: "+70000000000"}, nil)

	res, err := svc.Dispatch(context.Background(), "hi", "1,2;3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count, "falls back to the parsed recipient count")

	require.Len(t, gw.calls, 1)
	assert.Equal(t, "1,2;3", gw.calls[0].Phones)
	assert.Equal(t, DefaultValidHours, gw.calls[0].ValidHours)
}

func TestDispatch_GatewayErrorReturnedStoreUnchanged(t *testing.T) {
	gerr := &gateway.Error{Kind: gateway.KindAPI, Method: gateway.MethodSend, Code: 7, Message: "invalid phone"}
	gw := &fakeSender{err: gerr}
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := New(gw, store, defaultCfg(), zaptest.NewLogger(t)).WithEvents(pub)

	_, err := svc.Dispatch(context.Background(), "hello", "")
	require.Error(t, err)
	assert.Equal(t, "invalid phone", err.Error())
	assert.Same(t, gerr, err)
	assert.Empty(t, store.added)
	assert.Empty(t, pub.events)
}

func TestDispatch_StoreFailureStillSucceeds(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	gw := &fakeSender{res: gateway.SendResult{ID: "24", Count: 1}}
	store := &fakeStore{err: errs.ErrStore}
	pub := &fakePublisher{}
	svc := New(gw, store, defaultCfg(), zap.New(core)).WithEvents(pub)

	res, err := svc.Dispatch(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "24", res.ID)

	entries := logs.FilterMessage("mailing sent but not stored").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "24", entries[0].ContextMap()["mailing_id"])
	assert.Empty(t, pub.events)
}

func TestDispatch_PublishFailureIgnored(t *testing.T) {
	gw := &fakeSender{res: gateway.SendResult{ID: "5", Count: 1}}
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := New(gw, store, defaultCfg(), zaptest.NewLogger(t)).WithEvents(pub)

	res, err := svc.Dispatch(context.Background(), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "5", res.ID)
	assert.Len(t, store.added, 1)
}

func TestDispatch_StoresEvenIfCallerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gw := &cancellingSender{cancel: cancel, res: gateway.SendResult{ID: "77", Count: 1}}
	store := &fakeStore{}
	svc := New(gw, store, defaultCfg(), zaptest.NewLogger(t))

	_, err := svc.Dispatch(ctx, "hello", "")
	require.NoError(t, err)
	require.Len(t, store.added, 1)
	assert.Equal(t, "77", store.added[0].id)
}

// cancellingSender cancels the caller context once the gateway accepted the mailing.
type cancellingSender struct {
	cancel context.CancelFunc
	res    gateway.SendResult
}

func (c *cancellingSender) Send(context.Context, gateway.SendRequest) (gateway.SendResult, error) {
	c.cancel()
	return c.res, nil
}
