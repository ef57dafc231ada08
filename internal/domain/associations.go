package domain

import "time"

// Comment is an append-only message on a ticket thread.
type Comment struct {
	ID        string
	TicketID  string
	AuthorID  string
	Content   string
	CreatedAt time.Time
}

// Rating is created at most once per ticket, by the ticket creator,
// after the ticket reaches RESOLVED or CLOSED. Immutable thereafter.
type Rating struct {
	ID        string
	TicketID  string
	RaterID   string
	Stars     int
	Feedback  string
	CreatedAt time.Time
}

// Attachment stores file metadata for a ticket. Bytes live in the blob
// store under StorageKey.
type Attachment struct {
	ID         string
	TicketID   string
	UploaderID string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	UploadedAt time.Time
}
