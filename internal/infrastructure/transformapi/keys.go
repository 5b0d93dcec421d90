package transformapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
	"github.com/kirillkom/maritime-docflow/internal/infrastructure/httpclient"
)

const pathKeys = "/api/v1/keys"

type KeysClient struct {
	http *httpclient.Client
}

func NewKeysClient(http *httpclient.Client) *KeysClient {
	return &KeysClient{http: http}
}

type apiKeyPayload struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Key       string     `json:"key"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

func (p apiKeyPayload) toDomain() domain.APIKey {
	return domain.APIKey{
		ID:        p.ID,
		Name:      p.Name,
		Value:     p.Key,
		CreatedAt: p.CreatedAt,
		ExpiresAt: p.ExpiresAt,
	}
}

// keyList accepts a bare array or an object with a "keys" or "data" array.
type keyList []apiKeyPayload

func (l *keyList) UnmarshalJSON(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []apiKeyPayload
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var wrapped struct {
		Keys []apiKeyPayload `json:"keys"`
		Data []apiKeyPayload `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	if wrapped.Keys != nil {
		*l = wrapped.Keys
	} else {
		*l = wrapped.Data
	}
	return nil
}

func (c *KeysClient) List(ctx context.Context) ([]domain.APIKey, error) {
	var payload keyList
	err := c.http.DoJSON(ctx, "list keys", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.http.URL(pathKeys), nil)
	}, httpclient.CallOptions{Authenticated: true, Idempotent: true}, &payload)
	if err != nil {
		return nil, err
	}

	out := make([]domain.APIKey, 0, len(payload))
	for _, item := range payload {
		out = append(out, item.toDomain())
	}
	return out, nil
}

func (c *KeysClient) Create(ctx context.Context, name string) (*domain.APIKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "Key name is required")
	}
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("marshal create key request: %w", err)
	}

	var payload struct {
		apiKeyPayload
		Data *apiKeyPayload `json:"data"`
	}
	err = c.http.DoJSON(ctx, "create key", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.http.URL(pathKeys), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, httpclient.CallOptions{Authenticated: true}, &payload)
	if err != nil {
		return nil, err
	}

	created := payload.apiKeyPayload
	if payload.Data != nil {
		created = *payload.Data
	}
	key := created.toDomain()
	if key.Name == "" {
		key.Name = name
	}
	return &key, nil
}

func (c *KeysClient) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.WrapError(domain.ErrInvalidInput, "delete key", fmt.Errorf("key id is required"))
	}
	return c.http.DoJSON(ctx, "delete key", func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.http.URL(pathKeys+"/"+url.PathEscape(id)), nil)
	}, httpclient.CallOptions{Authenticated: true, Idempotent: true}, nil)
}
