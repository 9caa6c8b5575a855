// fieldmap.go — маппинг дополнительных колонок ростера в поля объекта User.
// Формат — Java .properties ("Source\ Column = Field__c").
package config

import (
	"fmt"
	"strings"

	"github.com/magiconair/properties"
)

// FieldMap — одна пара «колонка ростера → поле Salesforce».
type FieldMap struct {
	Column string
	Field  string
}

// FieldMapping — упорядоченный набор пар в порядке объявления в файле.
type FieldMapping []FieldMap

// LoadFieldMapping читает .properties файл маппинга.
func LoadFieldMapping(path string) (FieldMapping, error) {
	p, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, fmt.Errorf("чтение маппинга полей: %w", err)
	}
	return fieldMappingFrom(p)
}

// ParseFieldMapping разбирает .properties из строки.
func ParseFieldMapping(s string) (FieldMapping, error) {
	p, err := properties.LoadString(s)
	if err != nil {
		return nil, fmt.Errorf("разбор маппинга полей: %w", err)
	}
	return fieldMappingFrom(p)
}

func fieldMappingFrom(p *properties.Properties) (FieldMapping, error) {
	keys := p.Keys()
	m := make(FieldMapping, 0, len(keys))
	for _, key := range keys {
		field := strings.TrimSpace(p.GetString(key, ""))
		column := strings.TrimSpace(key)
		if column == "" || field == "" {
			return nil, fmt.Errorf("маппинг полей: пустая колонка или поле в паре %q", key)
		}
		m = append(m, FieldMap{Column: column, Field: field})
	}
	return m, nil
}
