package ticketstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cuemby/task-sentinel/pkg/metrics"
	"github.com/cuemby/task-sentinel/pkg/types"
)

// observe records an HTTPAdapter call's outcome and duration against the
// ticket store request metrics; BoltAdapter calls are not recorded.
func observe(method string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.TicketStoreRequestsTotal.WithLabelValues(method, outcome).Inc()
	metrics.TicketStoreRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// HTTPAdapter is a REST/JSON implementation of Adapter for remote ticket
// systems (issue trackers, external databases fronted by an HTTP API). It
// makes no assumption about the backing store beyond the four endpoints
// below each returning JSON.
type HTTPAdapter struct {
	baseURL string
	client  *http.Client
}

// NewHTTPAdapter builds an HTTPAdapter against baseURL (no trailing slash).
// A nil client gets a default with a conservative timeout, since ticket
// store calls are suspension points that must not hang the calling
// component indefinitely.
func NewHTTPAdapter(baseURL string, client *http.Client) *HTTPAdapter {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPAdapter{baseURL: baseURL, client: client}
}

type ticketResponse struct {
	Assignees   []string  `json:"assignees"`
	State       string    `json:"state"`
	Annotations []string  `json:"annotations"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func (a *HTTPAdapter) FetchTicket(ctx context.Context, id string) (_ types.TicketState, err error) {
	start := time.Now()
	defer func() { observe("fetch", start, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/tickets/"+id, nil)
	if err != nil {
		return types.TicketState{}, fmt.Errorf("ticketstore http build request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return types.TicketState{}, fmt.Errorf("ticketstore http fetch %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return types.TicketState{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return types.TicketState{}, fmt.Errorf("ticketstore http fetch %s: unexpected status %d", id, resp.StatusCode)
	}

	var tr ticketResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return types.TicketState{}, fmt.Errorf("ticketstore http decode %s: %w", id, err)
	}
	return types.TicketState{
		ID:          id,
		Assignees:   tr.Assignees,
		State:       tr.State,
		Annotations: tr.Annotations,
		LastUpdated: tr.LastUpdated,
	}, nil
}

func (a *HTTPAdapter) AssignTicket(ctx context.Context, id, workerID string) (_ bool, err error) {
	start := time.Now()
	defer func() { observe("assign", start, err) }()

	body, err := json.Marshal(map[string]string{"workerId": workerID})
	if err != nil {
		return false, fmt.Errorf("ticketstore http encode assign %s: %w", id, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/tickets/"+id+"/assign", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("ticketstore http build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("ticketstore http assign %s: %w", id, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return true, nil
	case http.StatusConflict:
		// The backing store refused the assignment outright: this is the
		// expected "already assigned" case, not an error.
		return false, nil
	case http.StatusTooManyRequests:
		return false, fmt.Errorf("ticketstore http assign %s: %w", id, ErrRateLimited)
	default:
		return false, fmt.Errorf("ticketstore http assign %s: unexpected status %d", id, resp.StatusCode)
	}
}

func (a *HTTPAdapter) UnassignTicket(ctx context.Context, id, workerID string) (err error) {
	start := time.Now()
	defer func() { observe("unassign", start, err) }()

	body, err := json.Marshal(map[string]string{"workerId": workerID})
	if err != nil {
		return fmt.Errorf("ticketstore http encode unassign %s: %w", id, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/tickets/"+id+"/unassign", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ticketstore http build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("ticketstore http unassign %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("ticketstore http unassign %s: unexpected status %d", id, resp.StatusCode)
	}
	return nil
}

func (a *HTTPAdapter) Annotate(ctx context.Context, id, text string) (err error) {
	start := time.Now()
	defer func() { observe("annotate", start, err) }()

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("ticketstore http encode annotate %s: %w", id, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/tickets/"+id+"/annotations", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ticketstore http build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("ticketstore http annotate %s: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("ticketstore http annotate %s: unexpected status %d", id, resp.StatusCode)
	}
	return nil
}

