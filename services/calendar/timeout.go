package calendar

import (
	"context"
	"time"

	"clinicvoice/models"
)

// timeoutAPI bounds every call to the backend with a deadline so a hung
// backend surfaces as a failed call instead of a stalled conversation turn.
type timeoutAPI struct {
	api     API
	timeout time.Duration
}

// WithTimeout wraps api so every call carries a bounded deadline.
func WithTimeout(api API, timeout time.Duration) API {
	if timeout <= 0 {
		return api
	}
	return &timeoutAPI{api: api, timeout: timeout}
}

func (t *timeoutAPI) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.timeout)
}

func (t *timeoutAPI) FreeBusy(ctx context.Context, calendarRef string, from, to time.Time) ([]models.BusyInterval, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.api.FreeBusy(ctx, calendarRef, from, to)
}

func (t *timeoutAPI) CreateProvisionalEvent(ctx context.Context, calendarRef string, slot models.Slot, summary, description string) (string, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.api.CreateProvisionalEvent(ctx, calendarRef, slot, summary, description)
}

func (t *timeoutAPI) ConfirmEvent(ctx context.Context, calendarRef, eventID string) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.api.ConfirmEvent(ctx, calendarRef, eventID)
}

func (t *timeoutAPI) DeleteEvent(ctx context.Context, calendarRef, eventID string) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.api.DeleteEvent(ctx, calendarRef, eventID)
}

func (t *timeoutAPI) ListEvents(ctx context.Context, calendarRef string, from, to time.Time) ([]Event, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.api.ListEvents(ctx, calendarRef, from, to)
}

func (t *timeoutAPI) ListCalendars(ctx context.Context) ([]Info, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.api.ListCalendars(ctx)
}
