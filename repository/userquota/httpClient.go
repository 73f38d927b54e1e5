package userquota

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"bookledger/model"
	"bookledger/util/identity"
)

type httpClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTP builds the direct client. token is the service credential sent on
// every call; the owner rejects calls without it.
func NewHTTP(baseURL, token string, hc *http.Client) Client {
	return &httpClient{baseURL: baseURL, token: token, client: hc}
}

func (r *httpClient) Get(ctx context.Context, userID int64) (*model.UserQuota, error) {
	url := fmt.Sprintf("%s/api/users/%d", r.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("quota get user %d: %s", userID, resp.Status)
	}

	var out struct {
		Code    int              `json:"code"`
		Message string           `json:"message"`
		Data    *model.UserQuota `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	switch {
	case out.Code == http.StatusNotFound:
		return nil, nil
	case out.Code != http.StatusOK || out.Data == nil:
		return nil, fmt.Errorf("quota get user %d: code %d: %s", userID, out.Code, out.Message)
	}
	return out.Data, nil
}

func (r *httpClient) AddBorrowed(ctx context.Context, userID int64, delta int) error {
	body, _ := json.Marshal(map[string]int{"change": delta})
	url := fmt.Sprintf("%s/api/users/%d/borrow-count", r.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	r.authorize(req)

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("quota update user %d: %s", userID, resp.Status)
	}
	return nil
}

// authorize attaches the service credential and the propagated caller
// identity; the owner rejects calls carrying neither.
func (r *httpClient) authorize(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	identity.Stamp(req)
	req.Header.Set("Content-Type", "application/json")
}
