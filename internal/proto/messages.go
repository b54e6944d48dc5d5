package proto

import "time"

// QueueDepth is one side's unread kernel queue. Available is false when the
// platform or connection cannot report it.
type QueueDepth struct {
	Bytes     int  `json:"bytes"`
	Available bool `json:"available"`
}

// Snapshot is the diagnostic record emitted once per window tick.
type Snapshot struct {
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	// Server is the queue on the upstream handle (server -> client data not yet read).
	Server QueueDepth `json:"server"`
	// Client is the queue on the inbound handle (client -> server data not yet read).
	Client QueueDepth `json:"client"`

	DownloadWindowBytes int64 `json:"download_window_bytes"`
	UploadWindowBytes   int64 `json:"upload_window_bytes"`
	DownloadTotalBytes  int64 `json:"download_total_bytes"`
	UploadTotalBytes    int64 `json:"upload_total_bytes"`
}
