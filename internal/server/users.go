package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"postline/internal/engine"
	"postline/internal/repo"
)

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "sync-user",
		Method:      http.MethodPost,
		Path:        "/users/sync",
		Summary:     "Link the caller to the Notion user with the same email",
		Tags:        []string{"users"},
		Errors:      []int{http.StatusUnauthorized, http.StatusPreconditionFailed, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SyncUserResponse `json:"body"`
	}, error) {
		res, err := e.SyncUser(ctx, callerFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SyncUserResponse `json:"body"`
		}{Body: syncUserResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-user-posts",
		Method:      http.MethodGet,
		Path:        "/users/{local_user_id}/posts",
		Summary:     "List completed posts of a linked local user",
		Tags:        []string{"users", "posts"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusPreconditionFailed, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		LocalUserID string `path:"local_user_id"`
	}) (*struct {
		Body PostListResponse `json:"body"`
	}, error) {
		list, err := e.ListPostsByLocalUser(ctx, callerFromContext(ctx), input.LocalUserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PostListResponse `json:"body"`
		}{Body: postListResponse(list)}, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		resp := WhoAmIResponse{
			UserID: principal.UserID,
			Email:  principal.Email,
			Source: principal.Source,
		}
		if e.Identity != nil {
			link, err := e.Identity.Link(ctx, principal.UserID)
			switch {
			case err == nil:
				resp.NotionUserID = link.RemoteUserID
			case !errors.Is(err, repo.ErrNotFound):
				return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
			}
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: resp}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		userID := strings.TrimSpace(input.Body.UserID)
		if userID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "userId is required", nil)
		}
		ttl := time.Duration(input.Body.TTLSeconds) * time.Second
		if ttl == 0 {
			ttl = time.Hour
		}
		token, err := SignToken(authCfg.JWTSecret, userID, strings.TrimSpace(input.Body.Email), ttl)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
