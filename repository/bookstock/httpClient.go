package bookstock

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

func NewHTTP(baseURL, token string, hc *http.Client) Client {
	return &httpClient{baseURL: baseURL, token: token, client: hc}
}

func (r *httpClient) Get(ctx context.Context, bookID int64) (*model.BookStock, error) {
	url := fmt.Sprintf("%s/api/books/%d", r.baseURL, bookID)
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
		return nil, fmt.Errorf("stock get book %d: %s", bookID, resp.Status)
	}

	var out struct {
		Code    int              `json:"code"`
		Message string           `json:"message"`
		Data    *model.BookStock `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	switch {
	case out.Code == http.StatusNotFound:
		return nil, nil
	case out.Code != http.StatusOK || out.Data == nil:
		return nil, fmt.Errorf("stock get book %d: code %d: %s", bookID, out.Code, out.Message)
	}
	return out.Data, nil
}

func (r *httpClient) SetAvailable(ctx context.Context, bookID int64, available int) error {
	body, _ := json.Marshal(map[string]any{
		"id":               bookID,
		"available_copies": available,
	})
	url := fmt.Sprintf("%s/api/books/update-stock", r.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
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
		return fmt.Errorf("stock update book %d: %s", bookID, resp.Status)
	}
	return nil
}

func (r *httpClient) authorize(req *http.Request) {
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	identity.Stamp(req)
	req.Header.Set("Content-Type", "application/json")
}
