package model

// RosterRecord — строка ростера пользователей (лист "Training Template").
// После загрузки не изменяется.
type RosterRecord struct {
	// Row — номер строки в источнике после заголовка (1-based, пустые строки учитываются)
	Row int
	// EmailEmployeeID — "Email (employee ID version)", ключ членства в SSO-ростере
	EmailEmployeeID string
	// EmailName — "Email (name version)", email создаваемого пользователя
	EmailName string
	FirstName string
	LastName  string
	// PersonaName — ключ соединения с persona mapping (регистрозависимый)
	PersonaName string
	Username    string
	Alias       string

	TimeZoneSidKey    string
	LocaleSidKey      string
	LanguageLocaleKey string
	EmailEncodingKey  string

	// IsActive — флаг активности (пустая ячейка = true)
	IsActive bool
	// InteractionUser — UserPermissionsInteractionUser; nil, если ячейка пуста
	InteractionUser *bool
	// FederationIdentifier — идентификатор федерации, отправляется только при EnableSSO
	FederationIdentifier string
	// AddedBy — провенанс строки ("added by")
	AddedBy string

	// Extra — остальные колонки источника (для артефактов и маппинга полей)
	Extra map[string]string
}

// SSORoster — множество email (employee ID version), подлежащих SSO.
// Сравнение регистрозависимое.
type SSORoster map[string]struct{}

// NewSSORoster строит SSORoster из списка email, пропуская пустые.
func NewSSORoster(emails []string) SSORoster {
	r := make(SSORoster, len(emails))
	for _, e := range emails {
		if e == "" {
			continue
		}
		r[e] = struct{}{}
	}
	return r
}

// Contains сообщает, входит ли email в SSO-ростер.
func (r SSORoster) Contains(email string) bool {
	_, ok := r[email]
	return ok
}
