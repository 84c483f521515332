package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// RemoteStore uploads avatars to the file microservice over HTTP.
type RemoteStore struct {
	base   string
	client *http.Client
}

func NewRemoteStore(baseURL string, client *http.Client) *RemoteStore {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &RemoteStore{base: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (s *RemoteStore) Upload(ctx context.Context, filename string, content io.Reader, size int64) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("blob: create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("blob: copy form file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("blob: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/upload", &body)
	if err != nil {
		return "", fmt.Errorf("blob: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("blob: file service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("blob: file service status %d", resp.StatusCode)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("blob: decode file service response: %w", err)
	}
	if result.URL == "" {
		return "", errors.New("blob: file service response missing url")
	}
	return result.URL, nil
}
