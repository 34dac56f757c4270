package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrEventNotFound signals that a calendar event no longer exists, which the
// notification handler treats as a deletion.
var ErrEventNotFound = errors.New("calendar event not found")

type CalendarService interface {
	CreateEvent(ctx context.Context, scheduledTime, caption, folderID, postType, timezone string) (string, error)
	GetEvent(ctx context.Context, eventID string) (*calendar.Event, error)
	Watch(ctx context.Context, webhookURL string) (string, error)
}

type calendarService struct {
	svc *calendar.Service
}

func NewCalendarService(ctx context.Context, client *http.Client) (CalendarService, error) {
	svc, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar client: %w", err)
	}
	return &calendarService{svc: svc}, nil
}

// defaultLocation is the fixed offset used when a request names no timezone
// or an unknown one.
func defaultLocation() (*time.Location, string) {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc, "Asia/Kolkata"
	}
	return time.FixedZone("IST", 5*3600+30*60), "Asia/Kolkata"
}

// ParseScheduledTime parses an ISO-8601 timestamp, with or without an
// offset. Naive timestamps are interpreted in the named timezone, falling
// back to UTC+5:30.
func ParseScheduledTime(value, timezone string) (time.Time, string, error) {
	loc, tzName := defaultLocation()
	if timezone != "" {
		if parsed, err := time.LoadLocation(timezone); err == nil {
			loc, tzName = parsed, timezone
		}
	}

	value = strings.TrimSpace(value)
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
	}
	for _, layout := range layouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, value); err == nil {
				return t.In(loc), tzName, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, tzName, nil
		}
	}
	return time.Time{}, tzName, fmt.Errorf("invalid scheduled time format: %s", value)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (c *calendarService) CreateEvent(ctx context.Context, scheduledTime, caption, folderID, postType, timezone string) (string, error) {
	start, tzName, err := ParseScheduledTime(scheduledTime, timezone)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	end := start.Add(30 * time.Minute)

	event := &calendar.Event{
		Summary:     fmt.Sprintf("Scheduled Post: %s", titleCase(postType)),
		Description: fmt.Sprintf("**Caption:**\n%s\n\n**Assets Link:**\n%s", caption, FolderLink(folderID)),
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: tzName,
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
			TimeZone: tzName,
		},
	}

	created, err := c.svc.Events.Insert("primary", event).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	slog.Info("calendar event created", "link", created.HtmlLink)
	return created.Id, nil
}

func (c *calendarService) GetEvent(ctx context.Context, eventID string) (*calendar.Event, error) {
	event, err := c.svc.Events.Get("primary", eventID).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, ErrEventNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return event, nil
}

// Watch registers a push-notification channel so event deletions reach the
// calendar webhook endpoint.
func (c *calendarService) Watch(ctx context.Context, webhookURL string) (string, error) {
	channelID, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	channel := &calendar.Channel{
		Id:      channelID,
		Type:    "web_hook",
		Address: webhookURL,
		Params:  map[string]string{"ttl": "86400"},
	}

	resp, err := c.svc.Events.Watch("primary", channel).Context(ctx).Do()
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	slog.Info("calendar watch channel created", "channel", resp.Id, "resource", resp.ResourceId)
	return resp.Id, nil
}
