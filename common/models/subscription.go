package models

// Subscription registers a user's interest in one species tag. Rows are
// keyed (tag, user_email), ordered primarily by tag, and written by an
// external subscription-management flow; this service only reads them.
type Subscription struct {
	Tag       string `json:"tag"`
	UserEmail string `json:"user_email"`
}
