package apimodel

type Track struct {
	Title       string `json:"title"`
	Url         string `json:"url,omitempty"`
	Duration    int64  `json:"duration_seconds"`
	RequestedBy string `json:"requested_by,omitempty"`
	Source      string `json:"source,omitempty"`
	PreviewOnly bool   `json:"preview_only,omitempty"`
}

type SessionStatus struct {
	GuildId   string  `json:"guild_id"`
	Channel   string  `json:"channel,omitempty"`
	Connected bool    `json:"connected"`
	Current   *Track  `json:"current,omitempty"`
	Paused    bool    `json:"paused"`
	Upcoming  []Track `json:"upcoming"`
	QueueSize int     `json:"queue_size"`
	LoopMode  string  `json:"loop_mode"`
	Volume    int64   `json:"volume"`
	Message   string  `json:"message"`
}

type SessionList struct {
	GuildIds []string `json:"guild_ids"`
}

type Queue struct {
	Tracks []Track `json:"tracks"`
}

type JoinRequest struct {
	ChannelId string `json:"channel_id"`
}

type EnqueueRequest struct {
	Query       string `json:"query"`
	RequestedBy string `json:"requested_by"`
	ChannelId   string `json:"channel_id,omitempty"`
}

type EnqueueResponse struct {
	Position int    `json:"position"`
	Track    Track  `json:"track"`
	Message  string `json:"message"`
}

// Result carries the user facing text of a successful operation.
type Result struct {
	Message string `json:"message"`
}
