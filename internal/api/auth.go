package api

import (
	"context"
	"fmt"
	"net/http"

	"arbdash/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// authResponse is the data payload of login and register.
type authResponse struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         domain.User `json:"user"`
}

// Login authenticates with email and password and stores the issued
// credential in the session store.
func (c *Client) Login(ctx context.Context, email, password string) (domain.User, error) {
	var data authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", loginRequest{Email: email, Password: password}, &data)
	if err != nil {
		return domain.User{}, fmt.Errorf("api: login: %w", err)
	}

	cred := domain.Credential{AccessToken: data.AccessToken, RefreshToken: data.RefreshToken}
	if err := c.store.Set(cred); err != nil {
		return domain.User{}, fmt.Errorf("api: login: %w", err)
	}

	return data.User, nil
}

// Register creates an account and stores the issued credential.
func (c *Client) Register(ctx context.Context, email, username, password string) (domain.User, error) {
	var data authResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register", registerRequest{
		Email:    email,
		Username: username,
		Password: password,
	}, &data)
	if err != nil {
		return domain.User{}, fmt.Errorf("api: register: %w", err)
	}

	cred := domain.Credential{AccessToken: data.AccessToken, RefreshToken: data.RefreshToken}
	if err := c.store.Set(cred); err != nil {
		return domain.User{}, fmt.Errorf("api: register: %w", err)
	}

	return data.User, nil
}

// Logout tells the backend to revoke the session and clears the local
// credential. The local clear happens even when the backend call fails.
func (c *Client) Logout(ctx context.Context) error {
	reqErr := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("api: logout: %w", err)
	}
	if reqErr != nil {
		return fmt.Errorf("api: logout: %w", reqErr)
	}
	return nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &user); err != nil {
		return domain.User{}, fmt.Errorf("api: me: %w", err)
	}
	return user, nil
}
