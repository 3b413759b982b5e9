package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StoragePath is the legacy mount of the key-value surface.
const StoragePath = "/api/storage"

var ErrNotFound = errors.New("key not found")

// KV talks to the server's raw key-value surface.
type KV struct {
	base string
	http *http.Client
}

func NewKV(baseURL string, hc *http.Client) *KV {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &KV{base: strings.TrimRight(baseURL, "/") + StoragePath, http: hc}
}

type kvValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	var out kvValue
	status, err := k.do(ctx, http.MethodGet, key, nil, &out)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return out.Value, nil
}

func (k *KV) Set(ctx context.Context, key, value string) error {
	_, err := k.do(ctx, http.MethodPost, key, map[string]string{"value": value}, nil)
	return err
}

func (k *KV) Delete(ctx context.Context, key string) (bool, error) {
	var out struct {
		Deleted bool `json:"deleted"`
	}
	if _, err := k.do(ctx, http.MethodDelete, key, nil, &out); err != nil {
		return false, err
	}
	return out.Deleted, nil
}

// do sends one request. A 404 is reported through the status, any other
// non-2xx answer is an error.
func (k *KV) do(ctx context.Context, method, key string, body any, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, k.base+"/"+url.PathEscape(key), rd)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("%s %s: unexpected status %d", method, key, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s %s: decoding response: %w", method, key, err)
		}
	}
	return resp.StatusCode, nil
}
