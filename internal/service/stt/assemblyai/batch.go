package assemblyai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.assemblyai.com"

// ErrPollTimeout is returned when a batch transcription does not
// complete within the polling budget. It fails only the AssemblyAI
// result, never the batch request as a whole.
var ErrPollTimeout = fmt.Errorf("assemblyai: transcription polling timed out")

// BatchClient drives the asynchronous prerecorded API:
// upload -> submit -> poll -> retrieve.
type BatchClient struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAttempts  int
}

// NewBatchClient creates a prerecorded client with the given polling
// budget (interval between status checks and maximum attempts).
func NewBatchClient(apiKey string, httpClient *http.Client, pollInterval time.Duration, maxAttempts int) *BatchClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &BatchClient{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		httpClient:   httpClient,
		pollInterval: pollInterval,
		maxAttempts:  maxAttempts,
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (c *BatchClient) SetBaseURL(u string) { c.baseURL = u }

// Transcribe uploads the audio, requests a transcription and polls on a
// fixed interval until completion or the attempt ceiling.
func (c *BatchClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	uploadURL, err := c.upload(ctx, audio)
	if err != nil {
		return "", err
	}

	id, err := c.submit(ctx, uploadURL)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		status, text, err := c.poll(ctx, id)
		if err != nil {
			return "", err
		}
		switch status {
		case "completed":
			return text, nil
		case "error":
			return "", fmt.Errorf("assemblyai: transcription failed")
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return "", ErrPollTimeout
}

func (c *BatchClient) upload(ctx context.Context, audio []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", bytes.NewReader(audio))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assemblyai upload: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assemblyai upload: status %d", resp.StatusCode)
	}

	var decoded struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("assemblyai upload decode: %w", err)
	}
	return decoded.UploadURL, nil
}

func (c *BatchClient) submit(ctx context.Context, audioURL string) (string, error) {
	body, _ := json.Marshal(map[string]string{"audio_url": audioURL})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("assemblyai submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assemblyai submit: status %d", resp.StatusCode)
	}

	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("assemblyai submit decode: %w", err)
	}
	return decoded.ID, nil
}

func (c *BatchClient) poll(ctx context.Context, id string) (status, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+id, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("assemblyai poll: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("assemblyai poll: status %d", resp.StatusCode)
	}

	var decoded struct {
		Status string `json:"status"`
		Text   string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", "", fmt.Errorf("assemblyai poll decode: %w", err)
	}
	return decoded.Status, decoded.Text, nil
}
