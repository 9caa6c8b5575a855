package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setEnvs устанавливает переменные окружения на время теста.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, ожидается Info", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, ожидается text", cfg.LogFormat)
	}
	if cfg.Environment != "Training" {
		t.Errorf("Environment = %q, ожидается Training", cfg.Environment)
	}
	if cfg.EnvironmentColumns.ProfileID != "Profile ID (Training)" {
		t.Errorf("ProfileID = %q", cfg.EnvironmentColumns.ProfileID)
	}
	if cfg.EnvironmentColumns.ContactCenterID != "Contact Center Training" {
		t.Errorf("ContactCenterID = %q", cfg.EnvironmentColumns.ContactCenterID)
	}
	if cfg.RosterSheet != "Training Template" || cfg.PersonaSheet != "Persona Mapping" || cfg.SSOSheet != "TSSO_TrainTheTrainer" {
		t.Errorf("неожиданные имена листов: %q, %q, %q", cfg.RosterSheet, cfg.PersonaSheet, cfg.SSOSheet)
	}
	if cfg.ProvenanceColumn != "added by" {
		t.Errorf("ProvenanceColumn = %q, ожидается 'added by'", cfg.ProvenanceColumn)
	}
	if cfg.ReportSink != SinkFS || cfg.ReportsDir != "reports" {
		t.Errorf("ReportSink = %q, ReportsDir = %q", cfg.ReportSink, cfg.ReportsDir)
	}
	if cfg.Salesforce.LoginURL != "https://login.salesforce.com" {
		t.Errorf("LoginURL = %q", cfg.Salesforce.LoginURL)
	}
	if cfg.Salesforce.APIVersion != "59.0" {
		t.Errorf("APIVersion = %q, ожидается 59.0", cfg.Salesforce.APIVersion)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, ожидается 30s", cfg.HTTPTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setEnvs(t, map[string]string{
		"PV_LOG_LEVEL":            "debug",
		"PV_LOG_FORMAT":           "json",
		"PV_ENVIRONMENT":          "Prod",
		"PV_REPORT_SINK":          "s3",
		"PV_S3_BUCKET":            "audit",
		"PV_S3_PATH_STYLE":        "true",
		"PV_S3_PREFIX":            "/runs/",
		"PV_S3_ACCESS_KEY_ID":     "minio",
		"PV_S3_SECRET_ACCESS_KEY": "minio-secret",
		"PV_SF_LOGIN_URL":         "https://test.salesforce.com/",
		"PV_SF_API_VERSION":       "v60.0",
		"PV_HTTP_TIMEOUT":         "10s",
		"PV_PUSHGATEWAY_URL":      "http://pushgateway:9091/",
		"PV_PROVENANCE_VALUE":     "Josh",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}

	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, ожидается Debug", cfg.LogLevel)
	}
	if cfg.EnvironmentColumns.RoleID != "Role ID (Prod)" {
		t.Errorf("RoleID = %q, ожидается 'Role ID (Prod)'", cfg.EnvironmentColumns.RoleID)
	}
	if !cfg.S3.PathStyle || cfg.S3.Prefix != "runs" || cfg.S3.Bucket != "audit" {
		t.Errorf("S3 = %+v", cfg.S3)
	}
	if cfg.S3.AccessKeyID != "minio" || cfg.S3.SecretAccessKey != "minio-secret" {
		t.Errorf("S3 ключи = %q / %q", cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
	}
	if cfg.Salesforce.LoginURL != "https://test.salesforce.com" {
		t.Errorf("LoginURL = %q", cfg.Salesforce.LoginURL)
	}
	if cfg.Salesforce.APIVersion != "60.0" {
		t.Errorf("APIVersion = %q, ожидается 60.0", cfg.Salesforce.APIVersion)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.PushgatewayURL != "http://pushgateway:9091" {
		t.Errorf("PushgatewayURL = %q", cfg.PushgatewayURL)
	}
	if cfg.ProvenanceValue != "Josh" {
		t.Errorf("ProvenanceValue = %q", cfg.ProvenanceValue)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		envs map[string]string
	}{
		{"неизвестный уровень логов", map[string]string{"PV_LOG_LEVEL": "trace"}},
		{"неизвестный формат логов", map[string]string{"PV_LOG_FORMAT": "xml"}},
		{"неизвестное окружение", map[string]string{"PV_ENVIRONMENT": "Staging"}},
		{"неизвестный приёмник", map[string]string{"PV_REPORT_SINK": "ftp"}},
		{"s3 без бакета", map[string]string{"PV_REPORT_SINK": "s3"}},
		{"некорректный path style", map[string]string{"PV_S3_PATH_STYLE": "maybe"}},
		{"ключ S3 без секрета", map[string]string{"PV_S3_ACCESS_KEY_ID": "minio"}},
		{"некорректная версия API", map[string]string{"PV_SF_API_VERSION": "latest"}},
		{"некорректный таймаут", map[string]string{"PV_HTTP_TIMEOUT": "soon"}},
		{"нулевой таймаут", map[string]string{"PV_HTTP_TIMEOUT": "0s"}},
		{"нет файла каталога", map[string]string{"PV_ENVIRONMENTS_FILE": "/nonexistent/envs.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)
			if _, err := Load(); err == nil {
				t.Error("Load() должен вернуть ошибку")
			}
		})
	}
}

func TestLoad_EnvironmentsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "environments.yaml")
	content := `environments:
  UAT:
    profile_id: "Profile (UAT)"
    role_id: "Role (UAT)"
    permission_set_group_ids: "PSG (UAT)"
    contact_center_id: "CC UAT"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Ошибка записи каталога: %v", err)
	}

	setEnvs(t, map[string]string{
		"PV_ENVIRONMENTS_FILE": path,
		"PV_ENVIRONMENT":       "UAT",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if cfg.EnvironmentColumns.Name != "UAT" {
		t.Errorf("Name = %q, ожидается UAT", cfg.EnvironmentColumns.Name)
	}
	if cfg.EnvironmentColumns.PermissionSetGroupIDs != "PSG (UAT)" {
		t.Errorf("PermissionSetGroupIDs = %q", cfg.EnvironmentColumns.PermissionSetGroupIDs)
	}
	if err := cfg.SetEnvironment("Training"); err == nil {
		t.Error("Training отсутствует в файловом каталоге, ожидалась ошибка")
	}
}

func TestLoad_FieldMappingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mapping.properties")
	content := "# дополнительные поля\nIs_Migrated__c = Is_Migrated__c\nContact\\ Center = Contact_Center__c\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Ошибка записи маппинга: %v", err)
	}
	t.Setenv("PV_FIELD_MAPPING_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() вернул ошибку: %v", err)
	}
	if len(cfg.FieldMapping) != 2 {
		t.Fatalf("FieldMapping: хотели 2 пары, получили %d", len(cfg.FieldMapping))
	}
	if cfg.FieldMapping[1].Column != "Contact Center" || cfg.FieldMapping[1].Field != "Contact_Center__c" {
		t.Errorf("FieldMapping[1] = %+v", cfg.FieldMapping[1])
	}
}

func TestParseCatalog_MissingColumn(t *testing.T) {
	data := []byte(`environments:
  QA2:
    profile_id: "Profile ID (QA2)"
    role_id: "Role ID (QA2)"
    permission_set_group_ids: ""
    contact_center_id: "Contact Center QA2"
`)
	if _, err := ParseCatalog(data); err == nil {
		t.Error("ожидалась ошибка для незаданной колонки permission_set_group_ids")
	}

	if _, err := ParseCatalog([]byte("environments: {}\n")); err == nil {
		t.Error("ожидалась ошибка для пустого каталога")
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	names := c.Names()
	if len(names) != 3 || names[0] != "Prod" || names[1] != "QA2" || names[2] != "Training" {
		t.Errorf("Names() = %v", names)
	}

	cols, err := c.Resolve("QA2")
	if err != nil {
		t.Fatalf("Resolve(QA2): %v", err)
	}
	want := []string{"Profile ID (QA2)", "Role ID (QA2)", "Permission Set Group IDs (QA2)", "Contact Center QA2"}
	got := cols.Labels()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Labels()[%d] = %q, ожидается %q", i, got[i], want[i])
		}
	}
}

func TestParseFieldMapping_Invalid(t *testing.T) {
	if _, err := ParseFieldMapping("Column = \n"); err == nil {
		t.Error("ожидалась ошибка для пустого поля")
	}
}
