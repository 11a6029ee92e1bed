package items

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const requestTimeout = 10 * time.Second

// Service marks lost-and-found items as resolved in the item catalog
// service on behalf of an authenticated user.
type Service interface {
	ResolveItem(ctx context.Context, itemId, token string) error
}

// StatusError is a non-2xx answer from the item catalog. The upstream
// status and message are preserved so callers can pass the catalog's
// verdict through to their own clients.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("item service returned %d: %s", e.StatusCode, e.Message)
}

type statusUpdate struct {
	Status string `json:"status"`
}

// HTTPItemService talks to the item catalog over its REST API, forwarding
// the caller's token so the catalog applies its own ownership checks.
type HTTPItemService struct {
	baseURL string
	client  *http.Client
	log     *log.Logger
}

func NewHTTPItemService(baseURL string, logger *log.Logger) *HTTPItemService {
	return &HTTPItemService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: requestTimeout},
		log:     logger,
	}
}

func (s *HTTPItemService) ResolveItem(ctx context.Context, itemId, token string) error {
	body, err := json.Marshal(statusUpdate{Status: "resolved"})
	if err != nil {
		return fmt.Errorf("encoding status update: %w", err)
	}

	url := fmt.Sprintf("%s/api/items/%s/status", s.baseURL, itemId)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("item service request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			s.log.Println("reading item service error body:", err)
		}
		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
		}
	}

	return nil
}
