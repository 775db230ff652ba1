package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"postline/internal/engine"
)

const hookSecretHeader = "X-Postline-Hook-Secret"

// registerHooks exposes triggers called by the identity provider. They
// answer 202 immediately and finish the work in the background.
func registerHooks(api huma.API, e engine.Engine, authCfg AuthConfig, background func(func())) {
	huma.Register(api, huma.Operation{
		OperationID:   "identity-created",
		Method:        http.MethodPost,
		Path:          "/hooks/identity-created",
		Summary:       "Sync a newly created identity with Notion",
		Tags:          []string{"hooks"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusPreconditionFailed},
	}, func(ctx context.Context, input *struct {
		Secret string                 `header:"X-Postline-Hook-Secret"`
		Body   IdentityCreatedRequest `json:"body"`
	}) (*struct {
		Body AcceptedResponse `json:"body"`
	}, error) {
		if authCfg.HookSecret == "" {
			return nil, newAPIError(http.StatusPreconditionFailed, "failed_precondition", "hook secret is not configured", nil)
		}
		if subtle.ConstantTimeCompare([]byte(input.Secret), []byte(authCfg.HookSecret)) != 1 {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid hook secret", nil)
		}
		localUserID := strings.TrimSpace(input.Body.LocalUserID)
		if localUserID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "localUserId is required", nil)
		}
		email := strings.TrimSpace(input.Body.Email)
		detached := context.WithoutCancel(ctx)
		background(func() {
			e.OnIdentityCreated(detached, localUserID, email)
		})
		return &struct {
			Body AcceptedResponse `json:"body"`
		}{Body: AcceptedResponse{Accepted: true}}, nil
	})
}
