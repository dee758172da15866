package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"caseflow/internal/config"
)

// Authenticator drives the provider's OAuth authorization-code flow. The
// backend never stores provider tokens; the access token obtained here is
// embedded in the session token and threaded back on each request.
type Authenticator struct {
	AuthURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	HTTPClient   *http.Client
}

func NewAuthenticator(cfg config.Provider) *Authenticator {
	return &Authenticator{
		AuthURL:      cfg.AuthURL,
		TokenURL:     cfg.TokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURI:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
	}
}

// AuthCodeURL returns the provider authorize URL the browser is sent to.
func (a *Authenticator) AuthCodeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", a.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", a.RedirectURI)
	q.Set("response_mode", "query")
	q.Set("scope", strings.Join(a.Scopes, " "))
	q.Set("state", state)
	return a.AuthURL + "?" + q.Encode()
}

// Token is the provider token endpoint response.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode trades an authorization code for an access token.
func (a *Authenticator) ExchangeCode(ctx context.Context, code string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", a.ClientID)
	form.Set("client_secret", a.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.RedirectURI)
	form.Set("scope", strings.Join(a.Scopes, " "))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := a.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Token{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Token{}, &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return Token{}, err
	}
	if tok.AccessToken == "" {
		return Token{}, fmt.Errorf("token response missing access_token")
	}
	return tok, nil
}
