package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/user/cliprecorder/pkg/pipeline"
	"github.com/user/cliprecorder/pkg/ports"
)

// grantResponse is the control endpoint reply.
type grantResponse struct {
	URL *string `json:"Url"`
}

// GrantStage asks the control endpoint for a write URL.
type GrantStage struct {
	client    *http.Client
	endpoints map[pipeline.UploadKind]string
}

// Execute implements pipeline.Stage.
func (s *GrantStage) Execute(ctx context.Context, ticket pipeline.UploadTicket) (pipeline.Destination, error) {
	endpoint := s.endpoints[ticket.Kind]
	if endpoint == "" {
		return pipeline.Destination{}, fmt.Errorf("%w: %s", ErrNoEndpoint, ticket.Kind)
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return pipeline.Destination{}, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("api_key", ticket.APIKey)
	q.Set("session_id", ticket.SessionID)
	if ticket.Kind == pipeline.UploadThumbnail {
		q.Set("time", strconv.FormatInt(ticket.TimeMs, 10))
	} else {
		q.Set("start", strconv.FormatInt(ticket.StartMs, 10))
		q.Set("end", strconv.FormatInt(ticket.EndMs, 10))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return pipeline.Destination{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return pipeline.Destination{}, fmt.Errorf("grant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pipeline.Destination{}, fmt.Errorf("%w: grant returned %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeline.Destination{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var grant grantResponse
	if err := json.Unmarshal(body, &grant); err != nil {
		return pipeline.Destination{}, fmt.Errorf("failed to unmarshal grant: %w", err)
	}
	if grant.URL == nil || *grant.URL == "" {
		return pipeline.Destination{}, ErrNoURL
	}

	return pipeline.Destination{Ticket: ticket, URL: *grant.URL}, nil
}

// PutStage sends the ticket bytes to the granted URL.
type PutStage struct {
	client *http.Client
	fs     ports.FileSystem
}

// Execute implements pipeline.Stage.
func (s *PutStage) Execute(ctx context.Context, dest pipeline.Destination) (pipeline.UploadResult, error) {
	ticket := dest.Ticket

	var (
		body io.Reader
		size int64
	)
	if ticket.Kind == pipeline.UploadThumbnail {
		body = bytes.NewReader(ticket.Data)
		size = int64(len(ticket.Data))
	} else {
		f, n, err := s.fs.Open(ticket.Path)
		if err != nil {
			return pipeline.UploadResult{}, fmt.Errorf("open video: %w", err)
		}
		defer f.Close()
		body = f
		size = n
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest.URL, body)
	if err != nil {
		return pipeline.UploadResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}
	req.Header.Set("Content-Type", ticket.Kind.ContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return pipeline.UploadResult{}, fmt.Errorf("put request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pipeline.UploadResult{}, fmt.Errorf("%w: put returned %d", ErrStatus, resp.StatusCode)
	}

	return pipeline.UploadResult{Ticket: ticket, Bytes: size}, nil
}
