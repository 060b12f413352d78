// services/identity_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"trivia-quiz-system/models"
	"trivia-quiz-system/utils"
)

// IdentityClient exchanges a bearer token for the subject's verified email
// at the identity provider's userinfo endpoint. The player id is a hash of
// that email, so the same person maps to the same partition on every login.
type IdentityClient struct {
	BaseURL string
	Client  *http.Client
}

func NewIdentityClient(baseURL string) *IdentityClient {
	return &IdentityClient{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type userInfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// ResolvePlayer calls /userinfo with the player's token and derives the
// stable player id.
func (c *IdentityClient) ResolvePlayer(ctx context.Context, accessToken string) (models.Player, error) {
	url := fmt.Sprintf("%s/userinfo", c.BaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return models.Player{}, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.Client.Do(req)
	if err != nil {
		return models.Player{}, fmt.Errorf("failed to call identity provider: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode != http.StatusOK {
		log.Printf("identity provider /userinfo returned %d: %s", resp.StatusCode, string(body))
		return models.Player{}, fmt.Errorf("identity exchange failed: %d", resp.StatusCode)
	}

	var info userInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return models.Player{}, fmt.Errorf("failed to decode userinfo response: %w", err)
	}

	// Only a verified email is a stable subject; an unverified one could be
	// claimed by someone else later, so fall back to the opaque sub claim.
	subject := ""
	if info.EmailVerified {
		subject = info.Email
	}
	if subject == "" {
		subject = info.Sub
	}
	if subject == "" {
		return models.Player{}, fmt.Errorf("userinfo response carries no subject")
	}

	return models.Player{ID: utils.MD5Hex(subject)}, nil
}
