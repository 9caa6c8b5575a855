package model

// PersonaPermissions — значения persona mapping для одного окружения.
// nil означает пустую ячейку.
type PersonaPermissions struct {
	ProfileID             *string
	RoleID                *string
	PermissionSetGroupIDs *string
	ContactCenterID       *string
}

// PersonaMapping — строка persona mapping.
type PersonaMapping struct {
	// Name — "Persona Name"
	Name string
	// Queues — имена очередей через перевод строки; nil, если ячейка пуста
	Queues *string
	// Values — значения всех колонок строки по заголовку (пустые ячейки отсутствуют)
	Values map[string]string
}

// Value возвращает значение колонки или nil для пустой/отсутствующей ячейки.
func (p PersonaMapping) Value(column string) *string {
	v, ok := p.Values[column]
	if !ok || v == "" {
		return nil
	}
	return &v
}

// PersonaTable — persona mapping целиком: заголовок в порядке чтения и строки.
type PersonaTable struct {
	Columns  []string
	Personas []PersonaMapping
}

// HasColumn сообщает, присутствует ли колонка в заголовке.
func (t PersonaTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}
