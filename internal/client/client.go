package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	defaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 5 * time.Second
)

// Client talks to a running bleu server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty serverURL respects the
// BLEU_URL env var and falls back to http://127.0.0.1:37778.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("BLEU_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

// Get sends a GET request. Returns response body.
func (c *Client) Get(path string) ([]byte, error) {
	resp, err := c.http.Get(c.serverURL + path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// IngestAsset records an asset for the owner and returns the server's
// retention response.
func (c *Client) IngestAsset(channelSlug, blueprintID, assetURL string) ([]byte, error) {
	body, _ := json.Marshal(map[string]string{"url": assetURL})
	return c.Post(ownerPath(channelSlug, blueprintID)+"/assets", body)
}

// AssignDefault asks the server to resolve the owner's default asset.
func (c *Client) AssignDefault(channelSlug, blueprintID string, candidates []string) ([]byte, error) {
	body, _ := json.Marshal(map[string][]string{"candidates": candidates})
	return c.Post(ownerPath(channelSlug, blueprintID)+"/default", body)
}

// FailJob reports a failed attempt for a claimed job.
func (c *Client) FailJob(jobID, reason string) ([]byte, error) {
	body, _ := json.Marshal(map[string]string{"error": reason})
	return c.Post("/api/jobs/"+url.PathEscape(jobID)+"/fail", body)
}

// CompleteJob reports a claimed job as succeeded.
func (c *Client) CompleteJob(jobID string) ([]byte, error) {
	return c.Post("/api/jobs/"+url.PathEscape(jobID)+"/complete", nil)
}

func ownerPath(channelSlug, blueprintID string) string {
	return "/api/owners/" + url.PathEscape(channelSlug) + "/" + url.PathEscape(blueprintID)
}
