package models

// Notification is a fan-out record addressed to one subscriber, consumed by
// an external delivery component. Keys are (recipient_email, timestamp_ms,
// id): the zero-padded timestamp keeps per-recipient rows in ascending time
// order and the unique id keeps two notifications generated in the same
// millisecond from overwriting one another.
type Notification struct {
	RecipientEmail string `json:"recipient_email"`
	TimestampMS    int64  `json:"timestamp_ms"`
	ID             string `json:"id"`
	Message        string `json:"message"`
	IsSent         bool   `json:"is_sent"`
}
