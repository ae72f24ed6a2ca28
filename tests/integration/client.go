package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"tulpar/internal/models"
)

// TestClient provides methods for exercising the API over HTTP
type TestClient struct {
	BaseURL    string
	Username   string
	Password   string
	HTTPClient *http.Client
}

// NewTestClient creates a client for the instance under test. Tests are
// skipped unless API_BASE_URL is set.
func NewTestClient(t *testing.T) *TestClient {
	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		t.Skip("API_BASE_URL not set, skipping integration test")
	}
	return &TestClient{
		BaseURL:  baseURL,
		Username: getEnvDefault("API_TEST_USER", "test@example.com"),
		Password: getEnvDefault("API_TEST_PASSWORD", "password123"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// makeRequest makes an authenticated HTTP request and returns the response
func (c *TestClient) makeRequest(t *testing.T, method, path string, body interface{}) *http.Response {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reqBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(c.Username, c.Password)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

// CreateEvent creates an event and returns its id
func (c *TestClient) CreateEvent(t *testing.T, req models.CreateEventRequest) int64 {
	resp := c.makeRequest(t, http.MethodPost, "/api/events", req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("CreateEvent returned status %d", resp.StatusCode)
	}
	var created models.CreateEventResponse
	decodeBody(t, resp, &created)
	return created.ID
}

// ListEvents lists events
func (c *TestClient) ListEvents(t *testing.T) models.ListEventsResponse {
	resp := c.makeRequest(t, http.MethodGet, "/api/events", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ListEvents returned status %d", resp.StatusCode)
	}
	var events models.ListEventsResponse
	decodeBody(t, resp, &events)
	return events
}

// Register registers the authenticated user for an event
func (c *TestClient) Register(t *testing.T, eventID int64) (*models.RegisterResponse, int) {
	resp := c.makeRequest(t, http.MethodPost, fmt.Sprintf("/api/events/%d/register", eventID), nil)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, resp.StatusCode
	}
	status := resp.StatusCode
	var out models.RegisterResponse
	decodeBody(t, resp, &out)
	return &out, status
}

// Cancel cancels the registration for an event
func (c *TestClient) Cancel(t *testing.T, eventID int64) int {
	resp := c.makeRequest(t, http.MethodPost, fmt.Sprintf("/api/events/%d/cancel", eventID), nil)
	resp.Body.Close()
	return resp.StatusCode
}

// MyRegistrations returns the registrations of the authenticated user
func (c *TestClient) MyRegistrations(t *testing.T) models.MyRegistrationsResponse {
	resp := c.makeRequest(t, http.MethodGet, "/api/registrations", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("MyRegistrations returned status %d", resp.StatusCode)
	}
	var out models.MyRegistrationsResponse
	decodeBody(t, resp, &out)
	return out
}
