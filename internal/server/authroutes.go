package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"caseflow/internal/domain"
)

// registerAuth wires the provider's authorization-code flow. The backend is
// stateless: the access token obtained at /auth/redirect is embedded in the
// session JWT and carried back by the client on every request.
func registerAuth(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-login",
		Method:      http.MethodGet,
		Path:        "/auth/login",
		Summary:     "Provider sign-in URL",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body struct {
			URL   string `json:"url"`
			State string `json:"state"`
		} `json:"body"`
	}, error) {
		if cfg.Auth == nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "auth not configured")
		}
		state := randomState()
		out := &struct {
			Body struct {
				URL   string `json:"url"`
				State string `json:"state"`
			} `json:"body"`
		}{}
		out.Body.URL = cfg.Auth.AuthCodeURL(state)
		out.Body.State = state
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-redirect",
		Method:      http.MethodGet,
		Path:        "/auth/redirect",
		Summary:     "Exchange authorization code for a session token",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Code  string `query:"code"`
		State string `query:"state"`
	}) (*struct {
		Body struct {
			Token string      `json:"token"`
			User  domain.User `json:"user"`
		} `json:"body"`
	}, error) {
		if cfg.Auth == nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", "auth not configured")
		}
		if input.Code == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "code is required")
		}
		tok, err := cfg.Auth.ExchangeCode(ctx, input.Code)
		if err != nil {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "code exchange failed")
		}
		profile, err := cfg.Engine.Graph.Profile(ctx, tok.AccessToken)
		if err != nil {
			return nil, handleError(err)
		}
		u, err := cfg.Engine.EnsureUser(ctx, profile)
		if err != nil {
			return nil, handleError(err)
		}
		session, err := issueJWT(cfg.AuthCfg, u, tok.AccessToken, cfg.Engine.Now())
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Token string      `json:"token"`
				User  domain.User `json:"user"`
			} `json:"body"`
		}{}
		out.Body.Token = session
		out.Body.User = u
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-logout",
		Method:      http.MethodPost,
		Path:        "/auth/logout",
		Summary:     "End the session",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body messageBody `json:"body"`
	}, error) {
		// Sessions are stateless JWTs; the client drops the token.
		return &struct {
			Body messageBody `json:"body"`
		}{Body: messageBody{Message: "logged out"}}, nil
	})
}

func randomState() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "state"
	}
	return hex.EncodeToString(b)
}
