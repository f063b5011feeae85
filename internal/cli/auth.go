package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/phyoewaiaung/devnexus-go/internal/config"
	"github.com/phyoewaiaung/devnexus-go/internal/storage"
	"github.com/phyoewaiaung/devnexus-go/pkg/logger"
)

// AuthCommand runs the device-link flow: create a link code, show it as a
// QR code, and poll until it is approved in the DevNexus app.
func AuthCommand(cfg *config.Config) error {
	logger.Infof("Starting device link...")

	hostname, _ := os.Hostname()
	reqBody := map[string]any{
		"deviceName": hostname,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	linkURL := fmt.Sprintf("%s/v1/auth/device", cfg.ServerURL)
	req, err := http.NewRequest(http.MethodPost, linkURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("device link request failed: %s - %s", resp.Status, string(respBody))
	}

	var created struct {
		Code            string `json:"code"`
		VerificationURL string `json:"verificationUrl"`
	}
	if err := json.Unmarshal(respBody, &created); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if created.Code == "" {
		return fmt.Errorf("device link response missing code")
	}

	verifyURL := created.VerificationURL
	if verifyURL == "" {
		verifyURL = fmt.Sprintf("%s/link?code=%s", cfg.ServerURL, url.QueryEscape(created.Code))
	}

	logger.Infof("\nScan this QR code with the DevNexus app to link this device:")
	printQRCode(verifyURL)
	logger.Infof("\nOr open this URL and enter code %s:\n%s", created.Code, verifyURL)
	logger.Infof("\nWaiting for approval...")

	token, userID, err := pollDeviceLink(cfg, created.Code)
	if err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := storage.SaveToken(cfg.AccessKey, token); err != nil {
		return err
	}
	if userID == "" {
		userID, _ = TokenUserID(token)
	}
	if userID != "" {
		creds := storage.Credentials{
			UserID:     userID,
			LinkedAtMs: time.Now().UnixMilli(),
		}
		if err := storage.SaveCredentials(cfg.Home, creds); err != nil {
			return err
		}
	}

	logger.Infof("Device linked. Credentials saved to: %s", cfg.Home)
	return nil
}

// printQRCode renders the link URL as terminal ASCII art.
func printQRCode(data string) {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		logger.Warnf("Failed to generate QR code: %v", err)
		logger.Infof("Link URL: %s", data)
		return
	}
	fmt.Println(qr.ToSmallString(false))
}

// pollDeviceLink polls the link status until approved, rejected, or timed
// out.
func pollDeviceLink(cfg *config.Config, code string) (token, userID string, err error) {
	statusURL := fmt.Sprintf("%s/v1/auth/device/%s", cfg.ServerURL, url.PathEscape(code))
	client := &http.Client{Timeout: 5 * time.Second}

	timeout := time.After(5 * time.Minute)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			return "", "", fmt.Errorf("device link timeout (5 minutes)")

		case <-ticker.C:
			resp, err := client.Get(statusURL)
			if err != nil {
				logger.Debugf("device link poll: %v", err)
				continue
			}
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				logger.Debugf("device link poll read: %v", readErr)
				continue
			}
			if resp.StatusCode != http.StatusOK {
				logger.Debugf("device link poll: %s", resp.Status)
				continue
			}

			var status struct {
				Status string `json:"status"`
				Token  string `json:"token"`
				UserID string `json:"userId"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				logger.Debugf("device link poll parse: %v", err)
				continue
			}

			switch status.Status {
			case "approved":
				if status.Token == "" {
					return "", "", fmt.Errorf("approved without token")
				}
				return status.Token, status.UserID, nil
			case "rejected":
				return "", "", fmt.Errorf("link request rejected")
			case "expired":
				return "", "", fmt.Errorf("link code expired")
			default:
				// Still pending.
			}
		}
	}
}
