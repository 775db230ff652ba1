package domain

import "time"

// Post is a post page decoded from the posts database.
type Post struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	FirstCheck           bool       `json:"firstCheck"`
	SecondCheck          bool       `json:"secondCheck"`
	CanvaURL             *string    `json:"canvaUrl"`
	Categories           []string   `json:"categories"`
	SecondCheckAssignees []string   `json:"secondCheckAssignees"`
	Authors              []string   `json:"authors"`
	FileURLs             []string   `json:"fileUrls"`
	Status               *string    `json:"status"`
	CreatedTime          *time.Time `json:"createdTime" format:"date-time"`
	LastEditedTime       *time.Time `json:"lastEditedTime" format:"date-time"`
	ImagePath            *string    `json:"imagePath"`
}

// Optional marks whether a caller supplied a field. Set with a zero Value
// means the caller supplied an explicit null or empty value.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a supplied Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// UpsertInput is the author-supplied view of a post used for create and update.
type UpsertInput struct {
	ID          string
	Title       string
	FirstCheck  bool
	SecondCheck bool
	CanvaURL    Optional[string]
	Categories  Optional[[]string]
	Status      Optional[string]
	ImagePath   Optional[string]
}

// IdentityLink maps a local user to a Notion user.
type IdentityLink struct {
	LocalUserID  string    `json:"local_user_id"`
	RemoteUserID string    `json:"remote_user_id"`
	LastSyncedAt time.Time `json:"last_synced_at" format:"date-time"`
}

// Caller is the authenticated identity attached to every operation.
type Caller struct {
	UserID string
	Email  string
}

func (c Caller) Authenticated() bool {
	return c.UserID != ""
}
