package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/phyoewaiaung/devnexus-go/internal/config"
	"github.com/phyoewaiaung/devnexus-go/internal/storage"
)

// tokenRefreshWindow is how soon before expiry the token is refreshed.
const tokenRefreshWindow = 10 * time.Minute

// jwtExpiresAt extracts the expiry claim without verifying the signature.
// The server verifies; the client only needs the timestamp to schedule a
// refresh.
func jwtExpiresAt(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenUserID extracts the subject claim, the user id the token was minted
// for.
func TokenUserID(token string) (string, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", false
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	return sub, true
}

func isTokenExpiringSoon(token string, window time.Duration) bool {
	exp, ok := jwtExpiresAt(token)
	if !ok {
		// Without an exp claim there is nothing to refresh against.
		return false
	}
	return time.Until(exp) <= window
}

// EnsureAccessToken loads the current access token and refreshes it when it
// is expired or near expiry. A refresh failure with a still-valid token is
// tolerated; the stale path tells the user to re-link.
func EnsureAccessToken(cfg *config.Config) (string, error) {
	token, err := storage.LoadToken(cfg.AccessKey)
	if err != nil {
		return "", fmt.Errorf("missing %s; run `devnexus auth` first", cfg.AccessKey)
	}

	if !isTokenExpiringSoon(token, tokenRefreshWindow) {
		return token, nil
	}

	newToken, err := refreshAccessToken(cfg, token)
	if err != nil {
		if exp, ok := jwtExpiresAt(token); ok && time.Now().Before(exp) {
			return token, nil
		}
		return "", fmt.Errorf("token expired and refresh failed: %w; run `devnexus auth` to re-link", err)
	}

	if err := storage.SaveToken(cfg.AccessKey, newToken); err != nil {
		return "", err
	}
	return newToken, nil
}

// refreshAccessToken exchanges a near-expiry token for a fresh one.
func refreshAccessToken(cfg *config.Config, token string) (string, error) {
	refreshURL := fmt.Sprintf("%s/v1/auth/refresh", cfg.ServerURL)
	req, err := http.NewRequest(http.MethodPost, refreshURL, bytes.NewReader(nil))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refresh failed: %s - %s", resp.Status, string(body))
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse refresh response: %w", err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("refresh returned empty token")
	}
	return result.Token, nil
}
