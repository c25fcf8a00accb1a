package kit

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

const defaultBaseURL = "https://api.kit.com/v4"

// Subscriber is a subscriber record as returned by the Kit v4 API.
type Subscriber struct {
	ID           int64  `json:"id"`
	EmailAddress string `json:"email_address"`
	FirstName    string `json:"first_name"`
	State        string `json:"state"`
}

// Tag is a Kit tag.
type Tag struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// Client talks to the Kit v4 REST API on behalf of one account. Sync-path
// methods (AddSubscriber, AddTag, RemoveTag) swallow transport and HTTP
// failures into a nil/false result plus a logged error; configuration-path
// methods (ListTags, CreateTag) return the error so it can surface to the
// user validating their API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(apiKey string) *Client {
	return NewClientWithBaseURL(apiKey, defaultBaseURL)
}

func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// AddSubscriber creates or reactivates a subscriber by email. The Kit API
// upserts on email address, so repeated calls do not create duplicates.
// Returns nil on any failure.
func (c *Client) AddSubscriber(ctx context.Context, email, name, source string) *Subscriber {
	firstName := ""
	lastName := ""
	if name != "" {
		parts := strings.Fields(name)
		firstName = parts[0]
		lastName = parts[len(parts)-1]
	}

	body := map[string]interface{}{
		"email_address": email,
		"first_name":    firstName,
		"state":         "active",
		"fields": map[string]string{
			"last_name": lastName,
			"full_name": name,
			"source":    source,
		},
	}

	var result struct {
		Subscriber Subscriber `json:"subscriber"`
	}
	if err := c.do(ctx, http.MethodPost, "/subscribers", body, &result); err != nil {
		log.Printf("[Kit] Error adding subscriber %s: %v", email, err)
		return nil
	}

	log.Printf("[Kit] Subscriber added: %s (id: %d)", email, result.Subscriber.ID)
	return &result.Subscriber
}

// AddTag attaches a tag to a subscriber by email. Returns false on failure.
func (c *Client) AddTag(ctx context.Context, email, tagID string) bool {
	body := map[string]string{"email_address": email}

	if err := c.do(ctx, http.MethodPost, "/tags/"+tagID+"/subscribers", body, nil); err != nil {
		log.Printf("[Kit] Error adding tag %s to %s: %v", tagID, email, err)
		return false
	}

	log.Printf("[Kit] Tag %s added to %s", tagID, email)
	return true
}

// RemoveTag detaches a tag from a subscriber by email. Returns false on failure.
func (c *Client) RemoveTag(ctx context.Context, email, tagID string) bool {
	body := map[string]string{"email_address": email}

	if err := c.do(ctx, http.MethodDelete, "/tags/"+tagID+"/subscribers", body, nil); err != nil {
		log.Printf("[Kit] Error removing tag %s from %s: %v", tagID, email, err)
		return false
	}

	log.Printf("[Kit] Tag %s removed from %s", tagID, email)
	return true
}

// ListTags fetches all tags in the account. Also serves as the API key
// validation call during setup.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	var result struct {
		Tags []Tag `json:"tags"`
	}
	if err := c.do(ctx, http.MethodGet, "/tags", nil, &result); err != nil {
		return nil, fmt.Errorf("unable to fetch tags: %w", err)
	}
	return result.Tags, nil
}

// CreateTag creates a new tag by name.
func (c *Client) CreateTag(ctx context.Context, name string) (*Tag, error) {
	body := map[string]string{"name": name}

	var result struct {
		Tag Tag `json:"tag"`
	}
	if err := c.do(ctx, http.MethodPost, "/tags", body, &result); err != nil {
		return nil, fmt.Errorf("unable to create tag %q: %w", name, err)
	}
	return &result.Tag, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Kit-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("kit API returned %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("unable to decode response: %v", err)
		}
	}

	return nil
}
