package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"clinicvoice/models"
	"clinicvoice/utils"

	"go.uber.org/zap"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const provisionalKey = "clinicvoiceProvisional"

// GoogleCalendar implements API on the Google Calendar v3 API.
type GoogleCalendar struct {
	svc *gcal.Service
}

// NewGoogleCalendar builds a calendar client from a service account file.
func NewGoogleCalendar(ctx context.Context, credentialsFile string) (*GoogleCalendar, error) {
	svc, err := gcal.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &GoogleCalendar{svc: svc}, nil
}

// FreeBusy returns the busy intervals on the calendar within the window.
func (g *GoogleCalendar) FreeBusy(ctx context.Context, calendarRef string, from, to time.Time) ([]models.BusyInterval, error) {
	req := &gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calendarRef}},
	}
	resp, err := g.svc.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("freebusy query failed for %s: %w", calendarRef, err)
	}

	cal, ok := resp.Calendars[calendarRef]
	if !ok {
		return nil, fmt.Errorf("freebusy response missing calendar %s: %w", calendarRef, ErrNotFound)
	}

	busy := make([]models.BusyInterval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		start, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			return nil, fmt.Errorf("failed to parse busy start %q: %w", p.Start, err)
		}
		end, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			return nil, fmt.Errorf("failed to parse busy end %q: %w", p.End, err)
		}
		busy = append(busy, models.BusyInterval{Start: start, End: end})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	return busy, nil
}

// CreateProvisionalEvent claims a slot. Overlap is checked before inserting
// and re-verified after: if another event occupies the window once ours is
// visible, the earliest-created event wins and we back out with ErrConflict.
func (g *GoogleCalendar) CreateProvisionalEvent(ctx context.Context, calendarRef string, slot models.Slot, summary, description string) (string, error) {
	overlapping, err := g.ListEvents(ctx, calendarRef, slot.Start, slot.End)
	if err != nil {
		return "", err
	}
	if len(overlapping) > 0 {
		return "", ErrConflict
	}

	event := &gcal.Event{
		Summary:     summary,
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: slot.Start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: slot.End.Format(time.RFC3339)},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{provisionalKey: "true"},
		},
	}
	created, err := g.svc.Events.Insert(calendarRef, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert provisional event: %w", err)
	}

	// Post-insert verification: a concurrent writer may have inserted between
	// the overlap check and our insert. The earliest created event keeps the
	// window; everyone else deletes their own and reports conflict.
	verify, err := g.ListEvents(ctx, calendarRef, slot.Start, slot.End)
	if err != nil {
		g.deleteQuietly(ctx, calendarRef, created.Id)
		return "", err
	}
	for _, ev := range verify {
		if ev.ID == created.Id {
			continue
		}
		if ev.Created.Before(eventCreated(created)) || (ev.Created.Equal(eventCreated(created)) && ev.ID < created.Id) {
			g.deleteQuietly(ctx, calendarRef, created.Id)
			return "", ErrConflict
		}
	}
	return created.Id, nil
}

// ConfirmEvent marks a provisional event as a durable booking.
func (g *GoogleCalendar) ConfirmEvent(ctx context.Context, calendarRef, eventID string) error {
	patch := &gcal.Event{
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{provisionalKey: "false"},
		},
	}
	_, err := g.svc.Events.Patch(calendarRef, eventID, patch).Context(ctx).Do()
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to confirm event %s: %w", eventID, err)
	}
	return nil
}

// DeleteEvent removes an event from the calendar.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, calendarRef, eventID string) error {
	err := g.svc.Events.Delete(calendarRef, eventID).Context(ctx).Do()
	if isNotFound(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventID, err)
	}
	return nil
}

// ListEvents returns all events on the calendar overlapping the window.
func (g *GoogleCalendar) ListEvents(ctx context.Context, calendarRef string, from, to time.Time) ([]Event, error) {
	resp, err := g.svc.Events.List(calendarRef).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if isNotFound(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list events for %s: %w", calendarRef, err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Start == nil || item.Start.DateTime == "" {
			// All-day events do not block slots.
			continue
		}
		start, err := time.Parse(time.RFC3339, item.Start.DateTime)
		if err != nil {
			continue
		}
		end, err := time.Parse(time.RFC3339, item.End.DateTime)
		if err != nil {
			continue
		}
		ev := Event{
			ID:          item.Id,
			Summary:     item.Summary,
			Description: item.Description,
			Start:       start,
			End:         end,
		}
		if created, err := time.Parse(time.RFC3339, item.Created); err == nil {
			ev.Created = created
		}
		if item.ExtendedProperties != nil && item.ExtendedProperties.Private[provisionalKey] == "true" {
			ev.Provisional = true
		}
		events = append(events, ev)
	}
	return events, nil
}

// ListCalendars enumerates the calendars visible to the service account.
func (g *GoogleCalendar) ListCalendars(ctx context.Context) ([]Info, error) {
	resp, err := g.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	infos := make([]Info, 0, len(resp.Items))
	for _, item := range resp.Items {
		infos = append(infos, Info{
			Ref:      item.Id,
			Summary:  item.Summary,
			Primary:  item.Primary,
			TimeZone: item.TimeZone,
		})
	}
	return infos, nil
}

func (g *GoogleCalendar) deleteQuietly(ctx context.Context, calendarRef, eventID string) {
	if err := g.svc.Events.Delete(calendarRef, eventID).Context(ctx).Do(); err != nil && !isNotFound(err) {
		utils.GetLogger().Warn("failed to back out provisional event",
			zap.String("calendarRef", calendarRef), zap.String("eventID", eventID), zap.Error(err))
	}
}

func eventCreated(ev *gcal.Event) time.Time {
	t, err := time.Parse(time.RFC3339, ev.Created)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == 404 || gerr.Code == 410
	}
	return false
}
