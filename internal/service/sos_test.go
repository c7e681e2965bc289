package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"SafeArrival/internal/model"
	"SafeArrival/pkg/clock"
	pkgerrors "SafeArrival/pkg/errors"
	"SafeArrival/pkg/location"
	"SafeArrival/pkg/sms"
)

type memoryAttempts struct {
	attempts []*model.SOSAttempt
}

func (m *memoryAttempts) RecordSOSAttempt(_ context.Context, a *model.SOSAttempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}

type stubGuard struct {
	held map[string]bool
	err  error
}

func (g *stubGuard) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	if g.held[key] {
		return false, nil
	}
	g.held[key] = true
	return true, nil
}

type failingLocator struct{ err error }

func (l failingLocator) CurrentPosition(context.Context) (location.Fix, error) {
	return location.Fix{}, l.err
}

func newDispatcher(locator location.Provider, client *sms.MockClient, attempts *memoryAttempts, guard DispatchGuard) *SOSDispatcher {
	opts := SOSOptions{
		Locator:         locator,
		Gateway:         sms.NewAlertGateway(client, "mock", "SafeArrival", "SMS_0001"),
		ContactPhone:    "+447700900123",
		LocationTimeout: time.Second,
		SendTimeout:     time.Second,
		Clock:           clock.NewFake(time.UnixMilli(0)),
		Attempts:        attempts,
		HashPhone:       func(p string) string { return "hash:" + p },
	}
	if guard != nil {
		opts.Guard = guard
	}
	return NewSOSDispatcher(opts)
}

func templateParam(t *testing.T, call sms.MockCall) map[string]string {
	var param map[string]string
	require.NoError(t, json.Unmarshal([]byte(call.TemplateParam), &param))
	return param
}

func sosJourney(t *testing.T) *model.Journey {
	j := journeyAt(t, 0, 60_000)
	return j.WithStatus(model.JourneyStatusSOSTriggered)
}

func TestSOSDispatcher_PrimarySuccess(t *testing.T) {
	client := sms.NewMockClient()
	attempts := &memoryAttempts{}
	d := newDispatcher(location.NewStaticProvider(51.5072, -0.1276, true), client, attempts, nil)

	res, err := d.Dispatch(context.Background(), sosJourney(t))
	require.NoError(t, err)
	require.True(t, res.Sent)
	require.False(t, res.UsedFallback)
	require.NotEmpty(t, res.RequestID)

	calls := client.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, "+447700900123", calls[0].Phone)
	param := templateParam(t, calls[0])
	require.Equal(t, "https://www.google.com/maps?q=51.507200,-0.127600", param["link"])
	require.Equal(t, "51.507200", param["latitude"])

	require.Len(t, attempts.attempts, 1)
	require.Equal(t, "j_1", attempts.attempts[0].JourneyID)
	require.Equal(t, "hash:+447700900123", attempts.attempts[0].ContactPhoneHash)
	require.Equal(t, model.SOSAttemptStatusSuccess, attempts.attempts[0].Status)
	require.False(t, attempts.attempts[0].Placeholder)
}

func TestSOSDispatcher_LocationFailureUsesPlaceholder(t *testing.T) {
	client := sms.NewMockClient()
	attempts := &memoryAttempts{}
	d := newDispatcher(failingLocator{err: location.ErrPermissionDenied}, client, attempts, nil)

	res, err := d.Dispatch(context.Background(), sosJourney(t))
	require.NoError(t, err)
	require.True(t, res.Sent)
	require.True(t, res.UsedFallback)

	calls := client.Calls()
	require.Len(t, calls, 1)
	param := templateParam(t, calls[0])
	require.Equal(t, "Location unavailable", param["link"])
	require.Equal(t, "0.000000", param["latitude"])
	require.True(t, attempts.attempts[0].Placeholder)
}

func TestSOSDispatcher_GatewayFailureRetriesOnce(t *testing.T) {
	client := sms.NewMockClient()
	client.FailNext(1)
	attempts := &memoryAttempts{}
	d := newDispatcher(location.NewStaticProvider(1, 2, true), client, attempts, nil)

	res, err := d.Dispatch(context.Background(), sosJourney(t))
	require.NoError(t, err)
	require.True(t, res.UsedFallback)
	require.Len(t, client.Calls(), 2)

	require.Len(t, attempts.attempts, 2)
	require.Equal(t, model.SOSAttemptStatusFailed, attempts.attempts[0].Status)
	require.NotNil(t, attempts.attempts[0].ResponseMessage)
	require.Equal(t, model.SOSAttemptStatusSuccess, attempts.attempts[1].Status)
	require.Equal(t, attempts.attempts[0].RequestID, attempts.attempts[1].RequestID)
}

func TestSOSDispatcher_FallbackFailure(t *testing.T) {
	client := sms.NewMockClient()
	client.FailNext(2)
	d := newDispatcher(location.NewStaticProvider(1, 2, true), client, &memoryAttempts{}, nil)

	res, err := d.Dispatch(context.Background(), sosJourney(t))
	require.ErrorIs(t, err, pkgerrors.SOSDispatchFailed)
	require.False(t, res.Sent)
	require.Len(t, client.Calls(), 2)
}

func TestSOSDispatcher_GuardPreventsSecondDispatch(t *testing.T) {
	client := sms.NewMockClient()
	guard := &stubGuard{held: map[string]bool{}}
	d := newDispatcher(location.NewStaticProvider(1, 2, true), client, &memoryAttempts{}, guard)
	j := sosJourney(t)

	_, err := d.Dispatch(context.Background(), j)
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), j)
	require.ErrorIs(t, err, ErrAlreadyDispatched)
	require.Len(t, client.Calls(), 1)

	// Redis 不可用时仍然发送
	guard.err = errors.New("redis down")
	_, err = d.Dispatch(context.Background(), j)
	require.NoError(t, err)
	require.Len(t, client.Calls(), 2)
}

func TestSOSDispatcher_Manual(t *testing.T) {
	client := sms.NewMockClient()
	attempts := &memoryAttempts{}
	d := newDispatcher(location.NewStaticProvider(1, 2, true), client, attempts, nil)

	res, err := d.SendManual(context.Background(), "")
	require.NoError(t, err)
	require.True(t, res.Sent)
	require.Equal(t, defaultSOSMessage, templateParam(t, client.Calls()[0])["message"])
	require.True(t, attempts.attempts[0].Manual)
	require.Empty(t, attempts.attempts[0].JourneyID)
}

func TestSOSDispatcher_ContactMissing(t *testing.T) {
	d := NewSOSDispatcher(SOSOptions{Gateway: sms.NewAlertGateway(sms.NewMockClient(), "mock", "", "")})
	_, err := d.SendManual(context.Background(), "help")
	require.ErrorIs(t, err, pkgerrors.SOSContactMissing)
}

func TestSOSDispatcher_ContactMissingKeepsGuard(t *testing.T) {
	guard := &stubGuard{held: map[string]bool{}}
	client := sms.NewMockClient()
	d := NewSOSDispatcher(SOSOptions{
		Gateway: sms.NewAlertGateway(client, "mock", "", ""),
		Guard:   guard,
	})
	j := sosJourney(t)

	_, err := d.Dispatch(context.Background(), j)
	require.ErrorIs(t, err, pkgerrors.SOSContactMissing)
	require.Empty(t, guard.held)
	require.Empty(t, client.Calls())

	d.opts.ContactPhone = "+447700900123"
	d.opts.Locator = location.NewStaticProvider(1, 2, true)
	d.opts.LocationTimeout = time.Second
	d.opts.SendTimeout = time.Second
	res, err := d.Dispatch(context.Background(), j)
	require.NoError(t, err)
	require.True(t, res.Sent)
	require.True(t, guard.held["sos:"+j.JourneyID])
}
