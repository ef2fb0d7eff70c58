// Package identity предоставляет клиент внешнего поставщика учётных записей
// и реактивное значение текущей личности сеанса.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Session описывает ответ поставщика о текущем сеансе.
type Session struct {
	ProfileID string `json:"profile_id"`
	Active    bool   `json:"active"`
}

// Client инкапсулирует HTTP-взаимодействие с поставщиком учётных записей.
type Client struct {
	baseURL      string
	sessionToken string
	httpClient   *retryablehttp.Client
}

// NewClient создаёт HTTP-клиент поставщика учётных записей по указанному
// адресу. Временные сетевые ошибки повторяются с задержкой.
func NewClient(baseURL, sessionToken string) *Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 3
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.HTTPClient.Timeout = 5 * time.Second
	c.Logger = nil

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		sessionToken: sessionToken,
		httpClient:   c,
	}
}

func (c *Client) endpoint(path string) string {
	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + path
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.sessionToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

// CurrentSession запрашивает текущий сеанс. Отсутствие сеанса
// (недействительный или истёкший токен) не является ошибкой:
// возвращается nil-сеанс.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("identity client not configured")
	}

	resp, err := c.get(ctx, "/api/session")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusNotFound:
		return nil, nil
	case http.StatusOK:
	default:
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var s Session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if !s.Active || s.ProfileID == "" {
		return nil, nil
	}

	return &s, nil
}

type accountResponse struct {
	Email string `json:"email"`
}

// AccountEmail разрешает e-mail учётной записи по внутренней ссылке
// пользователя. Используется шлюзом для побочного поиска при чтении.
func (c *Client) AccountEmail(ctx context.Context, userRef string) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", fmt.Errorf("identity client not configured")
	}

	resp, err := c.get(ctx, "/api/accounts/"+userRef)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var a accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	return a.Email, nil
}
