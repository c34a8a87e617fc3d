package certificate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Config holds the settings for the external certificate issuer.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// IssueRequest describes one certificate to mint.
type IssueRequest struct {
	CourseID    string    `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	LearnerID   string    `json:"learner_id"`
	Score       float64   `json:"score"`
	EffortHours int       `json:"effort_hours"`
	CompletedAt time.Time `json:"completed_at"`
}

// Award is the issuer's acknowledgement.
type Award struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	IssuedAt time.Time `json:"issued_at"`
}

// Client talks to the certificate issuer. Issuance is asynchronous on the
// issuer side; the returned award may still be pending.
type Client interface {
	Issue(ctx context.Context, request IssueRequest) (Award, error)
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewClient validates the configuration and builds an HTTP-backed client.
func NewClient(cfg Config) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("certificate base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &httpClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (c *httpClient) Issue(ctx context.Context, request IssueRequest) (Award, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return Award{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/certificates", bytes.NewReader(payload))
	if err != nil {
		return Award{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Award{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return Award{}, fmt.Errorf("certificate issuer returned status %d", resp.StatusCode)
	}

	var award Award
	if err := json.NewDecoder(resp.Body).Decode(&award); err != nil {
		return Award{}, err
	}
	return award, nil
}
