// auth.go — аутентификация в Salesforce.
// Поддерживаются JWT Bearer flow (приватный ключ + consumer key),
// OAuth password flow (consumer key/secret) и SOAP login (username + password + token).
package salesforce

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthMethod — способ аутентификации.
type AuthMethod string

const (
	// AuthJWT — OAuth 2.0 JWT Bearer flow.
	AuthJWT AuthMethod = "jwt"
	// AuthPassword — username + password + security token.
	AuthPassword AuthMethod = "password"
)

// jwtLifetime — срок жизни assertion для JWT Bearer flow.
const jwtLifetime = 3 * time.Minute

// ErrCredentials — учётные данные заданы не полностью.
var ErrCredentials = errors.New("учётные данные Salesforce заданы не полностью: укажите username/password/security token или private key/consumer key")

// Credentials — параметры подключения к Salesforce.
type Credentials struct {
	// LoginURL — хост авторизации (https://login.salesforce.com)
	LoginURL string
	// APIVersion — версия REST API без префикса "v" (59.0)
	APIVersion string

	Username       string
	Password       string
	SecurityToken  string
	ConsumerKey    string
	ConsumerSecret string
	// PrivateKey — ключ подписи JWT assertion
	PrivateKey *rsa.PrivateKey
}

// Method определяет способ аутентификации по набору заполненных полей.
// JWT имеет приоритет над паролем.
func (c Credentials) Method() (AuthMethod, error) {
	if c.PrivateKey != nil && c.ConsumerKey != "" {
		if c.Username == "" {
			return "", fmt.Errorf("%w: username обязателен для JWT Bearer flow", ErrCredentials)
		}
		return AuthJWT, nil
	}
	if c.Username != "" && c.Password != "" && c.SecurityToken != "" {
		return AuthPassword, nil
	}
	return "", ErrCredentials
}

// LoadPrivateKey читает RSA-ключ в формате PEM.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение приватного ключа: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("разбор приватного ключа: %w", err)
	}
	return key, nil
}

// requestToken выполняет вход выбранным способом.
func (c *Client) requestToken(ctx context.Context) (*TokenResponse, error) {
	switch {
	case c.method == AuthJWT:
		assertion, err := c.signAssertion()
		if err != nil {
			return nil, err
		}
		return c.postToken(ctx, url.Values{
			"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
			"assertion":  {assertion},
		})
	case c.creds.ConsumerKey != "":
		return c.postToken(ctx, url.Values{
			"grant_type":    {"password"},
			"client_id":     {c.creds.ConsumerKey},
			"client_secret": {c.creds.ConsumerSecret},
			"username":      {c.creds.Username},
			"password":      {c.creds.Password + c.creds.SecurityToken},
		})
	default:
		return c.soapLogin(ctx)
	}
}

// signAssertion подписывает JWT assertion (RS256).
// aud — хост авторизации, sub — пользователь, iss — consumer key.
func (c *Client) signAssertion() (string, error) {
	claims := jwt.MapClaims{
		"iss": c.creds.ConsumerKey,
		"sub": c.creds.Username,
		"aud": c.loginURL,
		"exp": c.now().Add(jwtLifetime).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.creds.PrivateKey)
	if err != nil {
		return "", fmt.Errorf("подпись JWT assertion: %w", err)
	}
	return signed, nil
}

// postToken отправляет форму в OAuth token endpoint.
func (c *Client) postToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.loginURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("создание запроса токена: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос токена Salesforce: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var te tokenError
		if json.Unmarshal(body, &te) == nil && te.Error != "" {
			return nil, fmt.Errorf("Salesforce вернул статус %d при запросе токена: %s: %s", resp.StatusCode, te.Error, te.Description)
		}
		return nil, fmt.Errorf("Salesforce вернул статус %d при запросе токена: %s", resp.StatusCode, string(body))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("декодирование токена Salesforce: %w", err)
	}
	if token.AccessToken == "" || token.InstanceURL == "" {
		return nil, fmt.Errorf("ответ токена Salesforce не содержит access_token или instance_url")
	}
	return &token, nil
}

// soapLoginResponse — значимые поля ответа partner login.
type soapLoginResponse struct {
	XMLName   xml.Name `xml:"Envelope"`
	SessionID string   `xml:"Body>loginResponse>result>sessionId"`
	ServerURL string   `xml:"Body>loginResponse>result>serverUrl"`
	Fault     string   `xml:"Body>Fault>faultstring"`
}

// soapLogin выполняет вход через partner SOAP API: для него не нужен connected app.
func (c *Client) soapLogin(ctx context.Context) (*TokenResponse, error) {
	var body bytes.Buffer
	body.WriteString(`<?xml version="1.0" encoding="utf-8" ?>` +
		`<env:Envelope xmlns:xsd="http://www.w3.org/2001/XMLSchema" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
		`xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<env:Body><n1:login xmlns:n1="urn:partner.soap.sforce.com"><n1:username>`)
	if err := xml.EscapeText(&body, []byte(c.creds.Username)); err != nil {
		return nil, fmt.Errorf("формирование SOAP login: %w", err)
	}
	body.WriteString(`</n1:username><n1:password>`)
	if err := xml.EscapeText(&body, []byte(c.creds.Password+c.creds.SecurityToken)); err != nil {
		return nil, fmt.Errorf("формирование SOAP login: %w", err)
	}
	body.WriteString(`</n1:password></n1:login></env:Body></env:Envelope>`)

	endpoint := fmt.Sprintf("%s/services/Soap/u/%s", c.loginURL, c.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса SOAP login: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=UTF-8")
	req.Header.Set("SOAPAction", "login")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SOAP login Salesforce: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("чтение ответа SOAP login: %w", err)
	}

	var parsed soapLoginResponse
	if err := xml.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("Salesforce вернул статус %d при SOAP login: %s", resp.StatusCode, string(raw))
	}
	if parsed.Fault != "" {
		return nil, fmt.Errorf("SOAP login отклонён: %s", parsed.Fault)
	}
	if parsed.SessionID == "" || parsed.ServerURL == "" {
		return nil, fmt.Errorf("ответ SOAP login не содержит sessionId или serverUrl")
	}

	server, err := url.Parse(parsed.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("разбор serverUrl: %w", err)
	}

	return &TokenResponse{
		AccessToken: parsed.SessionID,
		InstanceURL: server.Scheme + "://" + server.Host,
		TokenType:   "Bearer",
	}, nil
}
