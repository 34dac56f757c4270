package transfer

import "github.com/postpipe/postpipe/internal/models"

type ScheduleRequest struct {
	SelectedMedia   []string `json:"selected_media"`
	SelectedCaption string   `json:"selected_caption"`
	ScheduledTime   string   `json:"scheduled_time"`
	PostType        string   `json:"post_type"`
	Timezone        string   `json:"timezone,omitempty"`
}

type ScheduleResponse struct {
	Message       string `json:"message"`
	FolderID      string `json:"folder_id"`
	EventID       string `json:"event_id"`
	WebhookSent   bool   `json:"webhook_sent"`
	WebhookStatus string `json:"webhook_status,omitempty"`
}

// WebhookRequest is the payload accepted from external automation. Media
// entries may already carry R2 URLs or Drive file ids.
type WebhookRequest struct {
	Media           []models.MediaEntry `json:"media"`
	SelectedCaption string              `json:"selected_caption"`
	ScheduledTime   string              `json:"scheduled_time"`
	PostType        string              `json:"post_type"`
	Timezone        string              `json:"timezone,omitempty"`
}

type GenerateRequest struct {
	Prompt   string `json:"prompt"`
	PostType string `json:"post_type"`
	NumMedia int    `json:"num_media"`
}

type GenerateResponse struct {
	Media    []string `json:"media"`
	Captions []string `json:"captions"`
}

// CalendarNotification carries the fields Google Calendar push notifications
// deliver in headers, plus any JSON body verbatim.
type CalendarNotification struct {
	ResourceID    string         `json:"resourceId"`
	ResourceURI   string         `json:"resourceUri"`
	ResourceState string         `json:"resourceState"`
	ChannelID     string         `json:"channelId"`
	MessageNumber string         `json:"messageNumber"`
	Body          map[string]any `json:"body,omitempty"`
}
