package transfer

type InstagramWebhookValue struct {
	ID        string         `json:"id,omitempty"`
	MediaID   string         `json:"media_id,omitempty"`
	Permalink string         `json:"permalink,omitempty"`
	MediaURL  string         `json:"media_url,omitempty"`
	Caption   string         `json:"caption,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	CommentID string         `json:"comment_id,omitempty"`
	Text      string         `json:"text,omitempty"`
	From      map[string]any `json:"from,omitempty"`
}

type InstagramWebhookChange struct {
	Field string                `json:"field"`
	Value InstagramWebhookValue `json:"value"`
}

type InstagramWebhookEntry struct {
	ID      string                   `json:"id"`
	Time    int64                    `json:"time"`
	Changes []InstagramWebhookChange `json:"changes"`
}

type InstagramWebhookRequest struct {
	Object string                  `json:"object"`
	Entry  []InstagramWebhookEntry `json:"entry"`
}

type InstagramErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
		IsTransient  bool   `json:"is_transient"`
		FbtraceID    string `json:"fbtrace_id"`
	} `json:"error"`
}
