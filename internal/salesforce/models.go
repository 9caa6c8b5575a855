// Пакет salesforce — HTTP-клиент к Salesforce REST API.
// models.go — модели данных Salesforce.
package salesforce

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TokenResponse — ответ OAuth token endpoint (password и JWT bearer flow).
type TokenResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	InstanceURL string `json:"instance_url"`
	ID          string `json:"id"`
	TokenType   string `json:"token_type"`
	IssuedAt    string `json:"issued_at"`
}

// tokenError — тело ошибки OAuth token endpoint.
type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// QueryResult — страница результата SOQL-запроса.
// Records остаются сырыми: форма записи зависит от SELECT.
type QueryResult struct {
	TotalSize      int               `json:"totalSize"`
	Done           bool              `json:"done"`
	NextRecordsURL string            `json:"nextRecordsUrl,omitempty"`
	Records        []json.RawMessage `json:"records"`
}

// DecodeRecords декодирует записи результата в срез T.
func DecodeRecords[T any](r *QueryResult) ([]T, error) {
	if r == nil {
		return nil, nil
	}
	out := make([]T, 0, len(r.Records))
	for i, raw := range r.Records {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("декодирование записи %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// SaveError — ошибка операции записи (create) или REST API.
type SaveError struct {
	StatusCode string   `json:"statusCode,omitempty"`
	ErrorCode  string   `json:"errorCode,omitempty"`
	Message    string   `json:"message"`
	Fields     []string `json:"fields,omitempty"`
}

// Code возвращает код ошибки: statusCode для create, errorCode для REST.
func (e SaveError) Code() string {
	if e.StatusCode != "" {
		return e.StatusCode
	}
	return e.ErrorCode
}

func (e SaveError) String() string {
	s := e.Message
	if code := e.Code(); code != "" {
		s = code + ": " + s
	}
	if len(e.Fields) > 0 {
		s += " [" + strings.Join(e.Fields, ", ") + "]"
	}
	return s
}

// SaveResult — результат создания записи.
type SaveResult struct {
	ID      string      `json:"id"`
	Success bool        `json:"success"`
	Errors  []SaveError `json:"errors"`
}

// ErrorText склеивает ошибки результата в одну строку.
func (r *SaveResult) ErrorText() string {
	if len(r.Errors) == 0 {
		return "Unknown error"
	}
	return joinErrors(r.Errors)
}

// APIError — ответ REST API с неуспешным HTTP-статусом.
type APIError struct {
	StatusCode int
	Errors     []SaveError
	// Body — тело ответа, если его не удалось разобрать как список ошибок
	Body string
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("Salesforce API вернул статус %d: %s", e.StatusCode, joinErrors(e.Errors))
	}
	return fmt.Sprintf("Salesforce API вернул статус %d: %s", e.StatusCode, e.Body)
}

// HasCode сообщает, содержит ли ответ ошибку с указанным кодом.
func (e *APIError) HasCode(code string) bool {
	for _, se := range e.Errors {
		if se.Code() == code {
			return true
		}
	}
	return false
}

func joinErrors(errs []SaveError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.String()
	}
	return strings.Join(parts, "; ")
}

// --- Payload объектов ---

// UserCreate — тело создания User.
// Фиксированные поля всегда сериализуются (nil Id → null);
// Extra дополняет тело полями из маппинга, не перекрывая фиксированные.
type UserCreate struct {
	Username          string
	Alias             string
	FirstName         string
	LastName          string
	Email             string
	ProfileID         *string
	UserRoleID        *string
	TimeZoneSidKey    string
	LocaleSidKey      string
	LanguageLocaleKey string
	EmailEncodingKey  string
	IsActive          bool
	// InteractionUser — UserPermissionsInteractionUser, только если задан
	InteractionUser *bool
	// FederationIdentifier — только для SSO-пользователей
	FederationIdentifier *string

	Extra map[string]string
}

// userReservedFields — поля User, которые Extra не может задать.
var userReservedFields = map[string]struct{}{
	"Username": {}, "Alias": {}, "FirstName": {}, "LastName": {}, "Email": {},
	"ProfileId": {}, "UserRoleId": {}, "TimeZoneSidKey": {}, "LocaleSidKey": {},
	"LanguageLocaleKey": {}, "EmailEncodingKey": {}, "IsActive": {},
	"UserPermissionsInteractionUser": {}, "FederationIdentifier": {},
}

// Fields возвращает тело запроса как map полей User.
func (u UserCreate) Fields() map[string]any {
	m := make(map[string]any, len(userReservedFields)+len(u.Extra))
	for k, v := range u.Extra {
		if _, reserved := userReservedFields[k]; reserved {
			continue
		}
		m[k] = v
	}
	m["Username"] = u.Username
	m["Alias"] = u.Alias
	m["FirstName"] = u.FirstName
	m["LastName"] = u.LastName
	m["Email"] = u.Email
	m["ProfileId"] = u.ProfileID
	m["UserRoleId"] = u.UserRoleID
	m["TimeZoneSidKey"] = u.TimeZoneSidKey
	m["LocaleSidKey"] = u.LocaleSidKey
	m["LanguageLocaleKey"] = u.LanguageLocaleKey
	m["EmailEncodingKey"] = u.EmailEncodingKey
	m["IsActive"] = u.IsActive
	if u.InteractionUser != nil {
		m["UserPermissionsInteractionUser"] = *u.InteractionUser
	}
	if u.FederationIdentifier != nil {
		m["FederationIdentifier"] = *u.FederationIdentifier
	}
	return m
}

// MarshalJSON сериализует UserCreate через Fields.
func (u UserCreate) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.Fields())
}

// PermissionSetAssignment — назначение permission set group пользователю.
type PermissionSetAssignment struct {
	AssigneeID           string `json:"AssigneeId"`
	PermissionSetGroupID string `json:"PermissionSetGroupId"`
}

// GroupMember — членство пользователя в группе (очереди).
type GroupMember struct {
	GroupID       string `json:"GroupId"`
	UserOrGroupID string `json:"UserOrGroupId"`
}

// --- Записи запросов ---

// NamedRef — вложенная ссылка вида {"Name": "..."} (Profile, UserRole).
type NamedRef struct {
	Name string `json:"Name"`
}

// UserRecord — запись User из SOQL-запросов.
// Набор заполненных полей зависит от SELECT.
type UserRecord struct {
	ID                   string    `json:"Id"`
	Username             string    `json:"Username"`
	Name                 string    `json:"Name"`
	Email                string    `json:"Email"`
	FederationIdentifier *string   `json:"FederationIdentifier"`
	IsActive             bool      `json:"IsActive"`
	ProfileID            *string   `json:"ProfileId"`
	UserRoleID           *string   `json:"UserRoleId"`
	Profile              *NamedRef `json:"Profile"`
	UserRole             *NamedRef `json:"UserRole"`
}

// GroupRecord — запись Group (очередь).
type GroupRecord struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// AssigneeRecord — запись PermissionSetAssignment с вложенным Assignee.
type AssigneeRecord struct {
	Assignee *struct {
		Name    string    `json:"Name"`
		Email   string    `json:"Email"`
		Profile *NamedRef `json:"Profile"`
	} `json:"Assignee"`
}

// NamedChangeRecord — запись PermissionSet/ConnectedApp с датой изменения.
type NamedChangeRecord struct {
	Name             string `json:"Name"`
	LastModifiedDate string `json:"LastModifiedDate"`
}

// ConnectedAppRecord — запись ConnectedApp.
type ConnectedAppRecord struct {
	Name           string  `json:"Name"`
	DeveloperName  string  `json:"DeveloperName"`
	StartURL       *string `json:"StartUrl"`
	MobileStartURL *string `json:"MobileStartUrl"`
}
