package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	relay_errors "chatrelay/pkg/errors"
	"chatrelay/pkg/logger"
)

const avatarRequestTimeout = 30 * time.Second

var avatarStyles = map[string]struct{}{
	"cartoon":    {},
	"realistic":  {},
	"anime":      {},
	"minimalist": {},
}

// AvatarService proxies avatar generation to an external image API. When no
// API endpoint is configured every call fails with a service-unavailable
// error instead of a broken request.
type AvatarService struct {
	apiURL string
	apiKey string
	client *http.Client
	log    *logger.Logger
}

func NewAvatarService(apiURL, apiKey string, log *logger.Logger) *AvatarService {
	return &AvatarService{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: avatarRequestTimeout},
		log:    log,
	}
}

type avatarRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
}

type avatarResponse struct {
	ImageURL string `json:"imageUrl"`
	Error    string `json:"error"`
}

// Generate asks the image API for an avatar and returns the hosted image
// URL.
func (s *AvatarService) Generate(ctx context.Context, prompt, style string) (string, error) {
	if s.apiURL == "" {
		return "", relay_errors.WithMessage(relay_errors.ErrServiceUnavailable, "Avatar generation is not configured")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Prompt is required")
	}
	if style == "" {
		style = "cartoon"
	}
	if _, ok := avatarStyles[style]; !ok {
		return "", relay_errors.WithMessage(relay_errors.ErrInvalidInput, "Unknown avatar style")
	}

	body, err := json.Marshal(avatarRequest{Prompt: prompt, Style: style})
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, avatarRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warnf("avatar: request failed: %v", err)
		return "", relay_errors.WithMessage(relay_errors.ErrServiceUnavailable, "Avatar service unreachable")
	}
	defer resp.Body.Close()

	var parsed avatarResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", relay_errors.WithMessage(relay_errors.ErrServiceUnavailable, "Avatar service returned an invalid response")
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error
		if msg == "" {
			msg = fmt.Sprintf("Avatar service returned status %d", resp.StatusCode)
		}
		return "", relay_errors.WithMessage(relay_errors.ErrServiceUnavailable, msg)
	}
	if parsed.ImageURL == "" {
		return "", relay_errors.WithMessage(relay_errors.ErrServiceUnavailable, "Avatar service returned no image")
	}
	return parsed.ImageURL, nil
}
