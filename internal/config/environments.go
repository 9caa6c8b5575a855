// environments.go — каталог окружений Salesforce: для каждого окружения
// явно задаются четыре колонки persona mapping. Каталог валидируется при загрузке.
package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvironmentColumns — имена колонок persona mapping для одного окружения.
type EnvironmentColumns struct {
	Name                  string `yaml:"-"`
	ProfileID             string `yaml:"profile_id"`
	RoleID                string `yaml:"role_id"`
	PermissionSetGroupIDs string `yaml:"permission_set_group_ids"`
	ContactCenterID       string `yaml:"contact_center_id"`
}

// Labels возвращает колонки в фиксированном порядке проверки.
func (e EnvironmentColumns) Labels() []string {
	return []string{e.ProfileID, e.RoleID, e.PermissionSetGroupIDs, e.ContactCenterID}
}

// validate проверяет, что все четыре колонки заданы.
func (e EnvironmentColumns) validate() error {
	fields := []struct {
		key, value string
	}{
		{"profile_id", e.ProfileID},
		{"role_id", e.RoleID},
		{"permission_set_group_ids", e.PermissionSetGroupIDs},
		{"contact_center_id", e.ContactCenterID},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("окружение %q: не задана колонка %s", e.Name, f.key)
		}
	}
	return nil
}

// EnvironmentCatalog — набор известных окружений.
type EnvironmentCatalog struct {
	Environments map[string]EnvironmentColumns `yaml:"environments"`
}

// defaultEnvironments — окружения, поддерживаемые без файла каталога.
var defaultEnvironments = []string{"QA2", "Training", "Prod"}

// TemplateColumns строит колонки по стандартной схеме заголовков
// persona mapping: "Profile ID (<env>)", "Contact Center <env>" и т.д.
func TemplateColumns(env string) EnvironmentColumns {
	return EnvironmentColumns{
		Name:                  env,
		ProfileID:             fmt.Sprintf("Profile ID (%s)", env),
		RoleID:                fmt.Sprintf("Role ID (%s)", env),
		PermissionSetGroupIDs: fmt.Sprintf("Permission Set Group IDs (%s)", env),
		ContactCenterID:       fmt.Sprintf("Contact Center %s", env),
	}
}

// DefaultCatalog возвращает встроенный каталог (QA2, Training, Prod).
func DefaultCatalog() *EnvironmentCatalog {
	c := &EnvironmentCatalog{Environments: make(map[string]EnvironmentColumns, len(defaultEnvironments))}
	for _, env := range defaultEnvironments {
		c.Environments[env] = TemplateColumns(env)
	}
	return c
}

// LoadCatalog читает YAML-каталог окружений и валидирует каждую запись.
func LoadCatalog(path string) (*EnvironmentCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение каталога окружений: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog разбирает YAML-каталог окружений.
func ParseCatalog(data []byte) (*EnvironmentCatalog, error) {
	var c EnvironmentCatalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("разбор каталога окружений: %w", err)
	}
	if len(c.Environments) == 0 {
		return nil, fmt.Errorf("каталог окружений пуст")
	}

	for name, cols := range c.Environments {
		cols.Name = name
		if err := cols.validate(); err != nil {
			return nil, err
		}
		c.Environments[name] = cols
	}

	return &c, nil
}

// Resolve возвращает колонки окружения по имени.
func (c *EnvironmentCatalog) Resolve(name string) (EnvironmentColumns, error) {
	cols, ok := c.Environments[name]
	if !ok {
		return EnvironmentColumns{}, fmt.Errorf("неизвестное окружение %q, допустимые: %s",
			name, strings.Join(c.Names(), ", "))
	}
	return cols, nil
}

// Names возвращает отсортированные имена окружений.
func (c *EnvironmentCatalog) Names() []string {
	names := make([]string, 0, len(c.Environments))
	for name := range c.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
