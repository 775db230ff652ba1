package server

import (
	"encoding/json"

	"postline/internal/domain"
	"postline/internal/engine"
)

// Request payloads

// UpsertPostRequest creates a post when id is empty and updates it
// otherwise. Optional fields left out of the body keep their stored value;
// null or empty clears them.
type UpsertPostRequest struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title"`
	FirstCheck  bool     `json:"firstCheck,omitempty"`
	SecondCheck bool     `json:"secondCheck,omitempty"`
	CanvaURL    *string  `json:"canvaUrl,omitempty" nullable:"true"`
	Categories  []string `json:"categories,omitempty" nullable:"true" doc:"Only the first category is stored"`
	Status      *string  `json:"status,omitempty" nullable:"true"`
	ImagePath   *string  `json:"imagePath,omitempty" nullable:"true"`
}

type IdentityCreatedRequest struct {
	LocalUserID string `json:"localUserId"`
	Email       string `json:"email,omitempty"`
}

type DevLoginRequest struct {
	UserID     string `json:"userId"`
	Email      string `json:"email,omitempty"`
	TTLSeconds int    `json:"ttlSeconds,omitempty" minimum:"0"`
}

// Responses

type PostListResponse struct {
	Success bool          `json:"success"`
	Posts   []domain.Post `json:"posts"`
	Reason  string        `json:"reason,omitempty"`
}

type PostResponse struct {
	Success bool        `json:"success"`
	Post    domain.Post `json:"post"`
}

type UpsertPostResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	PageID  string `json:"pageId"`
	Created bool   `json:"created"`
}

type MediaResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type SyncUserResponse struct {
	Success      bool    `json:"success"`
	NotionUserID *string `json:"notionUserId"`
}

type AcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

type WhoAmIResponse struct {
	UserID       string `json:"userId"`
	Email        string `json:"email,omitempty"`
	Source       string `json:"source"`
	NotionUserID string `json:"notionUserId,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func postListResponse(list engine.PostList) PostListResponse {
	return PostListResponse{
		Success: true,
		Posts:   nonNilSlice(list.Posts),
		Reason:  list.Reason,
	}
}

func syncUserResponse(res engine.SyncResult) SyncUserResponse {
	out := SyncUserResponse{Success: res.Success}
	if res.NotionUserID != "" {
		id := res.NotionUserID
		out.NotionUserID = &id
	}
	return out
}

// upsertInput converts the request, using the raw body to tell omitted
// fields from explicit nulls.
func upsertInput(req UpsertPostRequest, raw map[string]json.RawMessage) domain.UpsertInput {
	in := domain.UpsertInput{
		ID:          req.ID,
		Title:       req.Title,
		FirstCheck:  req.FirstCheck,
		SecondCheck: req.SecondCheck,
	}
	if _, ok := raw["canvaUrl"]; ok {
		in.CanvaURL = domain.Some(derefString(req.CanvaURL))
	}
	if v, ok := raw["categories"]; ok {
		if isNullRaw(v) {
			in.Categories = domain.Some([]string{})
		} else {
			in.Categories = domain.Some(nonNilSlice(req.Categories))
		}
	}
	if _, ok := raw["status"]; ok {
		in.Status = domain.Some(derefString(req.Status))
	}
	if _, ok := raw["imagePath"]; ok {
		in.ImagePath = domain.Some(derefString(req.ImagePath))
	}
	return in
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
