package notion

import (
	"encoding/json"
	"strings"
	"time"
)

// Page is a Notion page object. Properties is nil when the object carried no
// property bag (for example a database object returned by a query).
type Page struct {
	Object         string                   `json:"object"`
	ID             string                   `json:"id"`
	CreatedTime    string                   `json:"created_time,omitempty"`
	LastEditedTime string                   `json:"last_edited_time,omitempty"`
	Archived       bool                     `json:"archived,omitempty"`
	InTrash        bool                     `json:"in_trash,omitempty"`
	URL            string                   `json:"url,omitempty"`
	Parent         Parent                   `json:"parent"`
	Properties     map[string]PropertyValue `json:"properties,omitempty"`
}

// HasProperties reports whether the object is a page with a property bag.
func (p Page) HasProperties() bool {
	return p.Properties != nil
}

// Created parses CreatedTime. ok is false when the timestamp is missing or malformed.
func (p Page) Created() (time.Time, bool) {
	return parseTimestamp(p.CreatedTime)
}

// LastEdited parses LastEditedTime.
func (p Page) LastEdited() (time.Time, bool) {
	return parseTimestamp(p.LastEditedTime)
}

func parseTimestamp(raw string) (time.Time, bool) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

type Parent struct {
	Type       string `json:"type,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
	PageID     string `json:"page_id,omitempty"`
}

// Properties is a property patch keyed by property name.
type Properties map[string]PropertyValue

// RichText is one fragment of a title or rich_text value.
type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
	Href      *string      `json:"href,omitempty"`
}

type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

type Link struct {
	URL string `json:"url"`
}

// maxTextContent is Notion's per-fragment content limit.
const maxTextContent = 2000

// Text builds rich text fragments for content, split at the per-fragment limit.
func Text(content string) []RichText {
	if content == "" {
		return []RichText{}
	}
	runes := []rune(content)
	fragments := make([]RichText, 0, len(runes)/maxTextContent+1)
	for len(runes) > 0 {
		n := min(len(runes), maxTextContent)
		chunk := string(runes[:n])
		fragments = append(fragments, RichText{Type: "text", Text: &TextContent{Content: chunk}})
		runes = runes[n:]
	}
	return fragments
}

// Plain returns the visible text of a fragment, falling back to the written
// content for fragments that have not round-tripped through Notion yet.
func (r RichText) Plain() string {
	if r.PlainText != "" {
		return r.PlainText
	}
	if r.Text != nil {
		return r.Text.Content
	}
	return ""
}

// JoinPlain concatenates the visible text of fragments.
func JoinPlain(fragments []RichText) string {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f.Plain())
	}
	return b.String()
}

// SelectOption is the payload of select, multi_select and status values.
type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// User is a Notion user (person or bot).
type User struct {
	Object    string  `json:"object,omitempty"`
	ID        string  `json:"id"`
	Type      string  `json:"type,omitempty"`
	Name      string  `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Person    *Person `json:"person,omitempty"`
}

type Person struct {
	Email string `json:"email,omitempty"`
}

// Email returns the person email, or "" for bots and people without one.
func (u User) Email() string {
	if u.Person == nil {
		return ""
	}
	return u.Person.Email
}

// File is an entry of a files property. Type is "file" for Notion-hosted
// files and "external" for linked ones.
type File struct {
	Name     string        `json:"name,omitempty"`
	Type     string        `json:"type,omitempty"`
	File     *HostedFile   `json:"file,omitempty"`
	External *ExternalFile `json:"external,omitempty"`
}

type HostedFile struct {
	URL        string `json:"url"`
	ExpiryTime string `json:"expiry_time,omitempty"`
}

type ExternalFile struct {
	URL string `json:"url"`
}

// Location returns the URL of the entry's matching sub-field, "" when absent.
func (f File) Location() string {
	switch f.Type {
	case "file":
		if f.File != nil {
			return f.File.URL
		}
	case "external":
		if f.External != nil {
			return f.External.URL
		}
	default:
		// Entries written without a discriminator.
		if f.File != nil {
			return f.File.URL
		}
		if f.External != nil {
			return f.External.URL
		}
	}
	return ""
}

// Reference is a relation entry.
type Reference struct {
	ID string `json:"id"`
}

// listResponse is the envelope of paginated list endpoints.
type listResponse struct {
	Object     string            `json:"object"`
	Results    []json.RawMessage `json:"results"`
	NextCursor *string           `json:"next_cursor"`
	HasMore    bool              `json:"has_more"`
}
