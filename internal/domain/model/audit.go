package model

import "time"

// AuditRecord — снимок созданного пользователя для отчёта.
// Вложенные Profile/UserRole уплощены в ProfileName/UserRoleName.
type AuditRecord struct {
	ID                   string
	Username             string
	Name                 string
	Email                string
	FederationIdentifier string
	IsActive             bool
	ProfileName          string
	UserRoleName         string
}

// AuditReport — отчёт о созданных пользователях на момент генерации.
type AuditReport struct {
	GeneratedAt time.Time
	// FileName — user_creation_report_YYYYMMDD_HHMMSS.csv
	FileName string
	Records  []AuditRecord
	// Location — куда записан отчёт (путь или s3://...), пусто до записи
	Location string
}

// ValidatedUser — пользователь, найденный при валидации.
type ValidatedUser struct {
	ID                   string
	Username             string
	IsActive             bool
	ProfileID            string
	UserRoleID           string
	FederationIdentifier string
}

// ValidationResult — итог проверки созданных пользователей.
type ValidationResult struct {
	// Requested — запрошенные Id
	Requested []string
	// Found — найденные пользователи
	Found []ValidatedUser
	// Missing — Id, не найденные в каталоге
	Missing []string
	// Inactive — найденные, но неактивные Id
	Inactive []string
}

// OK сообщает, что все запрошенные пользователи найдены и активны.
func (r ValidationResult) OK() bool {
	return len(r.Missing) == 0 && len(r.Inactive) == 0
}

// PermissionSetUser — пользователь, назначенный permission set.
type PermissionSetUser struct {
	Name        string
	Email       string
	ProfileName string
}

// NamedChange — объект с датой последнего изменения (permission set, connected app).
type NamedChange struct {
	Name             string
	LastModifiedDate string
}

// ConnectedAppDetails — основные сведения о connected app.
type ConnectedAppDetails struct {
	Name           string
	DeveloperName  string
	StartURL       string
	MobileStartURL string
}
