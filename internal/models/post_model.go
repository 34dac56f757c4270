package models

import "time"

// MediaEntry tracks every known location of one media asset through its
// lifecycle. Resolution prefers R2URL, then DriveFileID, then RequestedPath
// (as URL, then as local file).
type MediaEntry struct {
	RequestedPath string `json:"requested_path,omitempty"`
	R2URL         string `json:"r2_url,omitempty"`
	DriveFileID   string `json:"uploaded_file_id,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	MimeType      string `json:"mime_type,omitempty"`
}

type ScheduledPost struct {
	ID              int64        `db:"id" json:"id"`
	PostType        string       `db:"post_type" json:"post_type"`
	Caption         string       `db:"caption" json:"caption"`
	ScheduledTime   time.Time    `db:"scheduled_time" json:"scheduled_time"`
	DriveFolderID   string       `db:"drive_folder_id" json:"drive_folder_id"`
	CalendarEventID string       `db:"calendar_event_id" json:"calendar_event_id"`
	Status          string       `db:"status" json:"status"`
	MediaEntries    []MediaEntry `db:"media_entries" json:"media_entries"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}

const (
	PostStatusScheduled = "scheduled"
	PostStatusTriggered = "triggered"
	PostStatusCancelled = "cancelled"
	PostStatusDeleted   = "deleted"
)

// ValidTransition reports whether a status change is allowed. Only
// "scheduled" has outgoing edges; the other states are terminal.
func ValidTransition(from, to string) bool {
	if from != PostStatusScheduled {
		return false
	}
	switch to {
	case PostStatusTriggered, PostStatusCancelled, PostStatusDeleted:
		return true
	}
	return false
}
