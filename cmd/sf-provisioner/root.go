// root.go — корневая команда и общее состояние CLI.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bigkaa/sf-provisioner/internal/artifact"
	"github.com/bigkaa/sf-provisioner/internal/config"
	"github.com/bigkaa/sf-provisioner/internal/salesforce"
	"github.com/bigkaa/sf-provisioner/internal/service"
	"github.com/bigkaa/sf-provisioner/internal/workbook"
)

// globalOptions — флаги, общие для всех команд.
type globalOptions struct {
	environment string
	input       string
	format      string
	noDryRun    bool
}

// app — состояние, подготовленное PersistentPreRunE.
type app struct {
	opts   *globalOptions
	cfg    *config.Config
	logger *slog.Logger
	sink   artifact.Sink

	// dir — подключённый каталог Salesforce, создаётся при первом обращении
	dir service.Directory

	// started — разбор аргументов завершён, команда начала выполнение
	started bool
}

func newApp() *app {
	return &app{opts: &globalOptions{}}
}

func newRootCmd(a *app) *cobra.Command {
	opts := a.opts

	cmd := &cobra.Command{
		Use:           "sf-provisioner",
		Short:         "Провижининг пользователей Salesforce по ростеру",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// cobra проверяет обязательные флаги только после PersistentPreRunE
			if err := cmd.ValidateRequiredFlags(); err != nil {
				return withCode(exitUsage, err)
			}
			if err := cmd.ValidateFlagGroups(); err != nil {
				return withCode(exitUsage, err)
			}
			return a.init(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			a.pushMetrics(cmd.Context())
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.environment, "environment", "e", "", "целевое окружение (QA2, Training, Prod, ...); по умолчанию PV_ENVIRONMENT")
	flags.StringVarP(&opts.input, "input", "i", "data", "каталог с CSV или XLSX-книга с листами ростера")
	flags.StringVar(&opts.format, "format", ".csv", "формат артефактов по умолчанию: .csv или .xlsx")
	flags.BoolVar(&opts.noDryRun, "no-dry-run", false, "выполнять изменяющие вызовы (по умолчанию dry run)")

	cmd.AddCommand(
		newPreflightCmd(a),
		newCreateUsersCmd(a),
		newProvisionCmd(a),
		newValidateCmd(a),
		newReportCmd(a),
		newAnalyzeCmd(a),
	)
	return cmd
}

// addOutputFlag регистрирует флаг --output с именем артефакта по умолчанию.
func addOutputFlag(fs *pflag.FlagSet, target *string, base string) {
	fs.StringVarP(target, "output", "o", "",
		fmt.Sprintf("имя артефакта; расширение задаёт формат (по умолчанию %s_<время><format>)", base))
}

// init загружает конфигурацию, настраивает логирование и приёмник артефактов.
func (a *app) init(ctx context.Context) error {
	a.started = true

	// 1. Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if a.opts.environment != "" {
		if err := cfg.SetEnvironment(a.opts.environment); err != nil {
			return withCode(exitUsage, fmt.Errorf("--environment: %w", err))
		}
	}
	switch strings.ToLower(a.opts.format) {
	case ".csv", "csv":
		a.opts.format = ".csv"
	case ".xlsx", "xlsx":
		a.opts.format = ".xlsx"
	default:
		return usageErrorf("--format: недопустимое значение %q, допустимые: .csv, .xlsx", a.opts.format)
	}
	a.cfg = cfg

	// 2. Настройка логирования
	a.logger = config.SetupLogger(cfg)
	a.logger.Info("Запуск sf-provisioner",
		slog.String("version", config.Version),
		slog.String("environment", cfg.Environment),
		slog.Bool("dry_run", a.dryRun()),
		slog.String("input", a.opts.input),
	)

	// 3. Приёмник артефактов
	a.sink, err = newSink(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приёмника отчётов: %w", err)
	}
	return nil
}

func (a *app) dryRun() bool { return !a.opts.noDryRun }

// runOptions собирает параметры запуска из конфигурации и флагов.
func (a *app) runOptions() service.RunOptions {
	return service.RunOptions{
		Environment:     a.cfg.EnvironmentColumns,
		DryRun:          a.dryRun(),
		ProvenanceValue: a.cfg.ProvenanceValue,
		Format:          a.opts.format,
	}
}

// loadInput читает ростер, persona mapping и SSO-ростер.
func (a *app) loadInput() (*workbook.Input, error) {
	sheets := workbook.Sheets{
		Roster:  a.cfg.RosterSheet,
		Persona: a.cfg.PersonaSheet,
		SSO:     a.cfg.SSOSheet,
	}
	in, err := workbook.Load(a.opts.input, sheets, a.cfg.ProvenanceColumn)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Входные данные загружены",
		slog.String("input", a.opts.input),
		slog.Int("roster", len(in.Roster.Records)),
		slog.Int("personas", len(in.Personas.Personas)),
		slog.Int("sso", len(in.SSO)),
	)
	return in, nil
}

// directory возвращает подключённый каталог Salesforce.
func (a *app) directory(ctx context.Context) (service.Directory, error) {
	if a.dir != nil {
		return a.dir, nil
	}

	httpClient := &http.Client{Timeout: a.cfg.HTTPTimeout}
	if a.cfg.CACertPath != "" {
		var err error
		httpClient, err = buildHTTPClientWithCA(a.cfg.CACertPath, a.cfg.HTTPTimeout)
		if err != nil {
			return nil, fmt.Errorf("ошибка загрузки CA-сертификата: %w", err)
		}
		a.logger.Info("Используется CA-сертификат", slog.String("path", a.cfg.CACertPath))
	}

	sf := a.cfg.Salesforce
	creds := salesforce.Credentials{
		LoginURL:       sf.LoginURL,
		APIVersion:     sf.APIVersion,
		Username:       sf.Username,
		Password:       sf.Password,
		SecurityToken:  sf.SecurityToken,
		ConsumerKey:    sf.ConsumerKey,
		ConsumerSecret: sf.ConsumerSecret,
	}
	if sf.PrivateKeyFile != "" {
		key, err := salesforce.LoadPrivateKey(sf.PrivateKeyFile)
		if err != nil {
			return nil, err
		}
		creds.PrivateKey = key
	}

	client, err := salesforce.New(creds, httpClient, a.logger)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("ошибка подключения к Salesforce: %w", err)
	}

	a.dir = service.InstrumentDirectory(client)
	return a.dir, nil
}

// workflow создаёт Workflow; каталог подключается только при необходимости.
func (a *app) workflow(ctx context.Context, needDirectory bool) (*service.Workflow, error) {
	var dir service.Directory
	if needDirectory {
		var err error
		dir, err = a.directory(ctx)
		if err != nil {
			return nil, err
		}
	}
	return service.NewWorkflow(dir, a.sink, a.cfg.FieldMapping, a.logger), nil
}

// pushMetrics отправляет метрики запуска, если задан Pushgateway.
func (a *app) pushMetrics(ctx context.Context) {
	if a.cfg == nil || a.cfg.PushgatewayURL == "" {
		return
	}
	if err := service.PushMetrics(ctx, a.cfg.PushgatewayURL, a.cfg.Environment); err != nil {
		a.logger.Warn("Не удалось отправить метрики в Pushgateway",
			slog.String("url", a.cfg.PushgatewayURL),
			slog.String("error", err.Error()),
		)
		return
	}
	a.logger.Debug("Метрики отправлены в Pushgateway", slog.String("url", a.cfg.PushgatewayURL))
}

// newSink создаёт приёмник артефактов по конфигурации.
func newSink(ctx context.Context, cfg *config.Config) (artifact.Sink, error) {
	if cfg.ReportSink != config.SinkS3 {
		return artifact.NewDirSink(cfg.ReportsDir), nil
	}
	return artifact.NewS3Sink(ctx, artifact.S3Config{
		Bucket:    cfg.S3.Bucket,
		Region:    cfg.S3.Region,
		Endpoint:  cfg.S3.Endpoint,
		PathStyle: cfg.S3.PathStyle,
		Prefix:    cfg.S3.Prefix,

		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
	})
}

// buildHTTPClientWithCA создаёт HTTP-клиент с кастомным CA-сертификатом.
func buildHTTPClientWithCA(caCertPath string, timeout time.Duration) (*http.Client, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("файл %s не содержит PEM-сертификатов", caCertPath)
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				RootCAs: caCertPool,
			},
		},
	}, nil
}
