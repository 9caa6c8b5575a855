// client.go — HTTP-клиент к Salesforce REST API.
// Сессия получается при первом обращении и кэшируется на весь запуск;
// ответ 401 сбрасывает кэш, следующий вызов выполнит вход заново.
// Операции: Connect, Query, QueryAll, Create.
package salesforce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client — HTTP-клиент к Salesforce REST API.
type Client struct {
	loginURL   string // Хост авторизации (без trailing slash)
	apiVersion string // Версия REST API (59.0)
	creds      Credentials
	method     AuthMethod

	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time

	// Кэш сессии
	mu          sync.Mutex
	accessToken string
	instanceURL string
}

// New создаёт клиент к Salesforce REST API.
// Возвращает ErrCredentials, если набор учётных данных неполон.
// httpClient — HTTP-клиент (может содержать TLS конфигурацию).
func New(creds Credentials, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	method, err := creds.Method()
	if err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	loginURL := strings.TrimRight(creds.LoginURL, "/")
	if loginURL == "" {
		loginURL = "https://login.salesforce.com"
	}
	apiVersion := strings.TrimPrefix(creds.APIVersion, "v")
	if apiVersion == "" {
		apiVersion = "59.0"
	}

	return &Client{
		loginURL:   loginURL,
		apiVersion: apiVersion,
		creds:      creds,
		method:     method,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "salesforce_client")),
		now:        time.Now,
	}, nil
}

// Method возвращает выбранный способ аутентификации.
func (c *Client) Method() AuthMethod {
	return c.method
}

// --- Аутентификация ---

// getToken возвращает актуальную сессию, выполняя вход при необходимости.
func (c *Client) getToken(ctx context.Context) (token, instanceURL string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" {
		return c.accessToken, c.instanceURL, nil
	}

	resp, err := c.requestToken(ctx)
	if err != nil {
		return "", "", err
	}

	c.accessToken = resp.AccessToken
	c.instanceURL = strings.TrimRight(resp.InstanceURL, "/")

	c.logger.Debug("Сессия Salesforce получена",
		slog.String("auth_method", string(c.method)),
		slog.String("instance_url", c.instanceURL),
	)

	return c.accessToken, c.instanceURL, nil
}

// invalidateToken сбрасывает кэш сессии.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.instanceURL = ""
	c.mu.Unlock()
}

// Connect выполняет вход заранее, чтобы ошибки учётных данных
// обнаруживались до начала обработки.
func (c *Client) Connect(ctx context.Context) error {
	_, instanceURL, err := c.getToken(ctx)
	if err != nil {
		return fmt.Errorf("подключение к Salesforce: %w", err)
	}
	c.logger.Info("Подключение к Salesforce установлено",
		slog.String("auth_method", string(c.method)),
		slog.String("instance_url", instanceURL),
	)
	return nil
}

// --- HTTP helpers ---

// doAuthorized выполняет HTTP-запрос к REST API с авторизацией.
// path — путь относительно /services/data/vXX.X либо абсолютный путь /services/...
// (nextRecordsUrl).
func (c *Client) doAuthorized(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token, instanceURL, err := c.getToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение сессии: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := instanceURL + "/services/data/v" + c.apiVersion + path
	if strings.HasPrefix(path, "/services/") {
		reqURL = instanceURL + path
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
	return resp, nil
}

// decodeResponse декодирует JSON ответ в target.
// Неуспешный статус превращается в *APIError.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("декодирование ответа Salesforce: %w", err)
		}
	}

	return nil
}

// newAPIError читает тело ответа с ошибкой. REST API возвращает список
// {message, errorCode, fields}; иначе сохраняется сырое тело.
func newAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var errs []SaveError
	if err := json.Unmarshal(body, &errs); err == nil && len(errs) > 0 {
		apiErr.Errors = errs
		return apiErr
	}
	apiErr.Body = strings.TrimSpace(string(body))
	return apiErr
}

// --- Query API ---

// Query выполняет SOQL-запрос и возвращает первую страницу результата.
func (c *Client) Query(ctx context.Context, soql string) (*QueryResult, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "/query?q="+url.QueryEscape(soql), nil)
	if err != nil {
		return nil, err
	}

	var result QueryResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}

	return &result, nil
}

// QueryAll выполняет SOQL-запрос и дочитывает все страницы по nextRecordsUrl.
func (c *Client) QueryAll(ctx context.Context, soql string) (*QueryResult, error) {
	result, err := c.Query(ctx, soql)
	if err != nil {
		return nil, err
	}

	next := result.NextRecordsURL
	for !result.Done && next != "" {
		resp, err := c.doAuthorized(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}

		var page QueryResult
		if err := decodeResponse(resp, &page); err != nil {
			return nil, fmt.Errorf("QueryAll: %w", err)
		}

		result.Records = append(result.Records, page.Records...)
		result.Done = page.Done
		next = page.NextRecordsURL
	}

	result.Done = true
	result.NextRecordsURL = ""
	return result, nil
}

// --- SObject API ---

// Create создаёт запись sobject. Неуспешный HTTP-статус возвращается
// как *APIError; SaveResult с success=false возвращается без ошибки.
func (c *Client) Create(ctx context.Context, sobject string, payload any) (*SaveResult, error) {
	resp, err := c.doAuthorized(ctx, http.MethodPost, "/sobjects/"+url.PathEscape(sobject)+"/", payload)
	if err != nil {
		return nil, err
	}

	var result SaveResult
	if err := decodeResponse(resp, &result); err != nil {
		return nil, fmt.Errorf("Create %s: %w", sobject, err)
	}

	return &result, nil
}
