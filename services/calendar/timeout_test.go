package calendar

import (
	"context"
	"testing"
	"time"

	"clinicvoice/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalledAPI blocks every call until the context is done, like a backend that
// accepts the connection and never answers.
type stalledAPI struct{}

func (stalledAPI) FreeBusy(ctx context.Context, calendarRef string, from, to time.Time) ([]models.BusyInterval, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledAPI) CreateProvisionalEvent(ctx context.Context, calendarRef string, slot models.Slot, summary, description string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (stalledAPI) ConfirmEvent(ctx context.Context, calendarRef, eventID string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledAPI) DeleteEvent(ctx context.Context, calendarRef, eventID string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledAPI) ListEvents(ctx context.Context, calendarRef string, from, to time.Time) ([]Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stalledAPI) ListCalendars(ctx context.Context) ([]Info, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestWithTimeoutFailsStalledCalls(t *testing.T) {
	api := WithTimeout(stalledAPI{}, 20*time.Millisecond)
	start := time.Now()

	_, err := api.FreeBusy(context.Background(), "cal", time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = api.ConfirmEvent(context.Background(), "cal", "evt-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = api.ListCalendars(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Less(t, time.Since(start), 2*time.Second, "stalled calls must fail fast")
}

// deadlineAPI records whether the context it received carried a deadline.
type deadlineAPI struct {
	stalledAPI
	sawDeadline bool
}

func (d *deadlineAPI) ListCalendars(ctx context.Context) ([]Info, error) {
	_, d.sawDeadline = ctx.Deadline()
	return nil, nil
}

func TestWithTimeoutAddsDeadline(t *testing.T) {
	inner := &deadlineAPI{}
	api := WithTimeout(inner, time.Second)

	_, err := api.ListCalendars(context.Background())
	require.NoError(t, err)
	assert.True(t, inner.sawDeadline)
}

func TestWithTimeoutZeroIsPassthrough(t *testing.T) {
	inner := &deadlineAPI{}
	assert.Same(t, inner, WithTimeout(inner, 0))
}
