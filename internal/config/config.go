// Пакет config — загрузка и валидация конфигурации sf-provisioner
// из переменных окружения, каталога окружений (YAML) и маппинга полей (.properties).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые значения PV_REPORT_SINK.
const (
	SinkFS = "fs"
	SinkS3 = "s3"
)

// Config содержит все параметры конфигурации sf-provisioner.
type Config struct {
	// --- Логирование ---

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- Целевое окружение ---

	// Имя целевого окружения Salesforce (QA2, Training, Prod, ...)
	Environment string
	// Путь к YAML-каталогу окружений (опционально)
	EnvironmentsFile string
	// Каталог окружений: встроенный или загруженный из EnvironmentsFile
	Environments *EnvironmentCatalog
	// Колонки persona mapping для выбранного окружения
	EnvironmentColumns EnvironmentColumns

	// Путь к .properties маппингу дополнительных колонок (опционально)
	FieldMappingFile string
	// Маппинг дополнительных колонок ростера → поля User
	FieldMapping FieldMapping

	// --- Рабочая книга ---

	// Лист ростера
	RosterSheet string
	// Лист persona mapping
	PersonaSheet string
	// Лист SSO-ростера
	SSOSheet string

	// --- Провенанс (фильтр валидации) ---

	// Колонка ростера с отметкой «кто добавил»
	ProvenanceColumn string
	// Значение провенанса для отбора валидации (пусто — без фильтра)
	ProvenanceValue string

	// --- Артефакты ---

	// Приёмник отчётов: fs или s3
	ReportSink string
	// Каталог отчётов для fs
	ReportsDir string
	// Параметры S3-приёмника
	S3 S3Config

	// --- Метрики ---

	// URL Prometheus Pushgateway (пусто — метрики не отправляются)
	PushgatewayURL string

	// --- Salesforce ---

	Salesforce SalesforceConfig
	// Таймаут HTTP-запросов к Salesforce
	HTTPTimeout time.Duration
	// Путь к CA-сертификату (опционально)
	CACertPath string
}

// S3Config — параметры S3-совместимого хранилища отчётов.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // опционально, для MinIO
	PathStyle bool
	Prefix    string
	// Статические ключи; пусто — стандартная цепочка AWS
	AccessKeyID     string
	SecretAccessKey string
}

// SalesforceConfig — параметры подключения к Salesforce.
// Способ аутентификации определяется набором заполненных полей.
type SalesforceConfig struct {
	// Хост OAuth (https://login.salesforce.com или https://test.salesforce.com)
	LoginURL string
	// Версия REST API (например, 59.0)
	APIVersion string

	Username       string
	Password       string
	SecurityToken  string
	ConsumerKey    string
	ConsumerSecret string
	// Путь к приватному ключу для JWT Bearer flow
	PrivateKeyFile string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения, загружает каталог окружений и маппинг полей.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Логирование ---

	// PV_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PV_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PV_LOG_LEVEL: %w", err)
	}

	// PV_LOG_FORMAT — формат логов (по умолчанию text)
	cfg.LogFormat = getEnvDefault("PV_LOG_FORMAT", "text")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PV_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- Целевое окружение ---

	cfg.Environment = getEnvDefault("PV_ENVIRONMENT", "Training")
	cfg.EnvironmentsFile = getEnvDefault("PV_ENVIRONMENTS_FILE", "")

	if cfg.EnvironmentsFile != "" {
		cfg.Environments, err = LoadCatalog(cfg.EnvironmentsFile)
		if err != nil {
			return nil, fmt.Errorf("PV_ENVIRONMENTS_FILE: %w", err)
		}
	} else {
		cfg.Environments = DefaultCatalog()
	}

	if err := cfg.SetEnvironment(cfg.Environment); err != nil {
		return nil, fmt.Errorf("PV_ENVIRONMENT: %w", err)
	}

	// PV_FIELD_MAPPING_FILE — маппинг дополнительных колонок (опционально)
	cfg.FieldMappingFile = getEnvDefault("PV_FIELD_MAPPING_FILE", "")
	if cfg.FieldMappingFile != "" {
		cfg.FieldMapping, err = LoadFieldMapping(cfg.FieldMappingFile)
		if err != nil {
			return nil, fmt.Errorf("PV_FIELD_MAPPING_FILE: %w", err)
		}
	}

	// --- Рабочая книга ---

	cfg.RosterSheet = getEnvDefault("PV_ROSTER_SHEET", "Training Template")
	cfg.PersonaSheet = getEnvDefault("PV_PERSONA_SHEET", "Persona Mapping")
	cfg.SSOSheet = getEnvDefault("PV_SSO_SHEET", "TSSO_TrainTheTrainer")

	// --- Провенанс ---

	cfg.ProvenanceColumn = getEnvDefault("PV_PROVENANCE_COLUMN", "added by")
	cfg.ProvenanceValue = getEnvDefault("PV_PROVENANCE_VALUE", "")

	// --- Артефакты ---

	cfg.ReportSink = getEnvDefault("PV_REPORT_SINK", SinkFS)
	if cfg.ReportSink != SinkFS && cfg.ReportSink != SinkS3 {
		return nil, fmt.Errorf("PV_REPORT_SINK: недопустимое значение %q, допустимые: fs, s3", cfg.ReportSink)
	}
	cfg.ReportsDir = getEnvDefault("PV_REPORTS_DIR", "reports")

	cfg.S3.Bucket = getEnvDefault("PV_S3_BUCKET", "")
	cfg.S3.Region = getEnvDefault("PV_S3_REGION", "us-east-1")
	cfg.S3.Endpoint = getEnvDefault("PV_S3_ENDPOINT", "")
	cfg.S3.Prefix = strings.Trim(getEnvDefault("PV_S3_PREFIX", "reports"), "/")
	cfg.S3.PathStyle, err = getEnvBool("PV_S3_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("PV_S3_PATH_STYLE: %w", err)
	}
	cfg.S3.AccessKeyID = getEnvDefault("PV_S3_ACCESS_KEY_ID", "")
	cfg.S3.SecretAccessKey = getEnvDefault("PV_S3_SECRET_ACCESS_KEY", "")
	if (cfg.S3.AccessKeyID == "") != (cfg.S3.SecretAccessKey == "") {
		return nil, fmt.Errorf("PV_S3_ACCESS_KEY_ID и PV_S3_SECRET_ACCESS_KEY задаются вместе")
	}
	if cfg.ReportSink == SinkS3 && cfg.S3.Bucket == "" {
		return nil, fmt.Errorf("PV_S3_BUCKET: обязательна при PV_REPORT_SINK=s3")
	}

	// --- Метрики ---

	cfg.PushgatewayURL = strings.TrimRight(getEnvDefault("PV_PUSHGATEWAY_URL", ""), "/")

	// --- Salesforce ---

	cfg.Salesforce.LoginURL = strings.TrimRight(getEnvDefault("PV_SF_LOGIN_URL", "https://login.salesforce.com"), "/")
	cfg.Salesforce.APIVersion = strings.TrimPrefix(getEnvDefault("PV_SF_API_VERSION", "59.0"), "v")
	if _, err := strconv.ParseFloat(cfg.Salesforce.APIVersion, 64); err != nil {
		return nil, fmt.Errorf("PV_SF_API_VERSION: некорректная версия API %q", cfg.Salesforce.APIVersion)
	}
	cfg.Salesforce.Username = getEnvDefault("PV_SF_USERNAME", "")
	cfg.Salesforce.Password = getEnvDefault("PV_SF_PASSWORD", "")
	cfg.Salesforce.SecurityToken = getEnvDefault("PV_SF_SECURITY_TOKEN", "")
	cfg.Salesforce.ConsumerKey = getEnvDefault("PV_SF_CONSUMER_KEY", "")
	cfg.Salesforce.ConsumerSecret = getEnvDefault("PV_SF_CONSUMER_SECRET", "")
	cfg.Salesforce.PrivateKeyFile = getEnvDefault("PV_SF_PRIVATE_KEY_FILE", "")

	// PV_HTTP_TIMEOUT — таймаут HTTP-запросов (по умолчанию 30s)
	cfg.HTTPTimeout, err = getEnvDuration("PV_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PV_HTTP_TIMEOUT: %w", err)
	}
	if cfg.HTTPTimeout <= 0 {
		return nil, fmt.Errorf("PV_HTTP_TIMEOUT: значение должно быть положительным")
	}

	cfg.CACertPath = getEnvDefault("PV_CA_CERT_PATH", "")

	return cfg, nil
}

// SetEnvironment переключает целевое окружение и разрешает его колонки
// в каталоге. Используется флагом --environment поверх PV_ENVIRONMENT.
func (c *Config) SetEnvironment(name string) error {
	cols, err := c.Environments.Resolve(name)
	if err != nil {
		return err
	}
	c.Environment = name
	c.EnvironmentColumns = cols
	return nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
