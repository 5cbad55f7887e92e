package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultBaseURL = "https://api.deepgram.com"

// BatchClient calls the Deepgram prerecorded and manage REST APIs.
type BatchClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewBatchClient creates a prerecorded transcription client.
func NewBatchClient(apiKey string, httpClient *http.Client) *BatchClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BatchClient{apiKey: apiKey, baseURL: defaultBaseURL, httpClient: httpClient}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *BatchClient) SetBaseURL(u string) { c.baseURL = u }

// Transcribe sends WAV audio to the prerecorded endpoint and returns
// the first channel's best alternative.
func (c *BatchClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	u := c.baseURL + "/v1/listen?model=" + liveModel + "&smart_format=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram prerecorded: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("deepgram prerecorded: status %d: %s", resp.StatusCode, body)
	}

	var decoded struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("deepgram decode: %w", err)
	}

	if len(decoded.Results.Channels) > 0 && len(decoded.Results.Channels[0].Alternatives) > 0 {
		return decoded.Results.Channels[0].Alternatives[0].Transcript, nil
	}
	return "", nil
}

// TemporaryKey is a short-lived Deepgram API key minted for
// browser-direct experiments.
type TemporaryKey struct {
	APIKeyID string `json:"api_key_id"`
	Key      string `json:"key"`
}

// CreateTemporaryKey looks up the first project and mints a 20 second
// usage:write key in it.
func (c *BatchClient) CreateTemporaryKey(ctx context.Context) (*TemporaryKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/projects", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram projects: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepgram projects: status %d", resp.StatusCode)
	}

	var projects struct {
		Projects []struct {
			ProjectID string `json:"project_id"`
		} `json:"projects"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&projects); err != nil {
		return nil, fmt.Errorf("deepgram projects decode: %w", err)
	}
	if len(projects.Projects) == 0 {
		return nil, fmt.Errorf("deepgram projects: none available")
	}

	body, _ := json.Marshal(map[string]any{
		"comment":                 "short lived",
		"scopes":                  []string{"usage:write"},
		"time_to_live_in_seconds": 20,
	})
	keyURL := fmt.Sprintf("%s/v1/projects/%s/keys", c.baseURL, projects.Projects[0].ProjectID)
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, keyURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err = c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram create key: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("deepgram create key: status %d", resp.StatusCode)
	}

	var key TemporaryKey
	if err := json.NewDecoder(resp.Body).Decode(&key); err != nil {
		return nil, fmt.Errorf("deepgram key decode: %w", err)
	}
	return &key, nil
}
