package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"postline/internal/engine"
)

func registerPosts(api huma.API, e engine.Engine) {
	type postPath struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-posts",
		Method:      http.MethodGet,
		Path:        "/posts",
		Summary:     "List posts, newest first",
		Tags:        []string{"posts"},
		Errors:      []int{http.StatusUnauthorized, http.StatusPreconditionFailed, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PostListResponse `json:"body"`
	}, error) {
		list, err := e.ListPosts(ctx, callerFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PostListResponse `json:"body"`
		}{Body: postListResponse(list)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-post",
		Method:      http.MethodGet,
		Path:        "/posts/{id}",
		Summary:     "Get a post",
		Tags:        []string{"posts"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusPreconditionFailed, http.StatusInternalServerError},
	}, func(ctx context.Context, input *postPath) (*struct {
		Body PostResponse `json:"body"`
	}, error) {
		post, err := e.GetPost(ctx, callerFromContext(ctx), input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PostResponse `json:"body"`
		}{Body: PostResponse{Success: true, Post: post}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upsert-post",
		Method:      http.MethodPost,
		Path:        "/posts",
		Summary:     "Create or update a post",
		Tags:        []string{"posts"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusPreconditionFailed, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body UpsertPostRequest `json:"body"`
	}) (*struct {
		Body UpsertPostResponse `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		res, err := e.UpsertPost(ctx, callerFromContext(ctx), upsertInput(input.Body, rawBodyMap(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body UpsertPostResponse `json:"body"`
		}{Body: UpsertPostResponse{
			Success: true,
			Message: res.Message,
			PageID:  res.ID,
			Created: res.Created,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-post-media",
		Method:      http.MethodGet,
		Path:        "/posts/{id}/media",
		Summary:     "First media URL attached to a post",
		Tags:        []string{"posts"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusPreconditionFailed, http.StatusInternalServerError},
	}, func(ctx context.Context, input *postPath) (*struct {
		Body MediaResponse `json:"body"`
	}, error) {
		u, err := e.GetMediaURL(ctx, callerFromContext(ctx), input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body MediaResponse `json:"body"`
		}{Body: MediaResponse{Success: true, URL: u}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-posts",
		Method:      http.MethodGet,
		Path:        "/me/posts",
		Summary:     "List the caller's completed posts",
		Tags:        []string{"posts"},
		Errors:      []int{http.StatusUnauthorized, http.StatusPreconditionFailed, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body PostListResponse `json:"body"`
	}, error) {
		list, err := e.ListMyPosts(ctx, callerFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PostListResponse `json:"body"`
		}{Body: postListResponse(list)}, nil
	})
}
