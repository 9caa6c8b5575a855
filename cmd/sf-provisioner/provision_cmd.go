// provision_cmd.go — команды preflight, create-users и provision.
package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/sf-provisioner/internal/service"
	"github.com/bigkaa/sf-provisioner/internal/workbook"
)

type preflightOptions struct {
	output string
}

func newPreflightCmd(a *app) *cobra.Command {
	opts := &preflightOptions{}

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Объединить ростер с persona mapping и проверить дубликаты",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			in, err := a.loadInput()
			if err != nil {
				return err
			}
			// Проверка дубликатов выполняет только чтение и нужна в обоих режимах
			wf, err := a.workflow(ctx, true)
			if err != nil {
				return err
			}
			runOpts := a.runOptions()
			runOpts.PreflightName = opts.output

			result, err := wf.Preflight(ctx, in, runOpts)
			if err != nil {
				return err
			}
			logResult(a.logger, result)
			return nil
		},
	}

	addOutputFlag(cmd.Flags(), &opts.output, "preflight_results")
	return cmd
}

type createUsersOptions struct {
	preflight string
	output    string
}

func newCreateUsersCmd(a *app) *cobra.Command {
	opts := &createUsersOptions{}

	cmd := &cobra.Command{
		Use:   "create-users",
		Short: "Создать пользователей, отмеченных в таблице preflight как \"Create New User\"",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			table, err := workbook.ReadTableFile(opts.preflight, "")
			if err != nil {
				return err
			}
			toCreate, err := workbook.UsernamesToCreate(table)
			if err != nil {
				return err
			}
			in, err := a.loadInput()
			if err != nil {
				return err
			}
			wf, err := a.workflow(ctx, !a.dryRun())
			if err != nil {
				return err
			}
			runOpts := a.runOptions()
			runOpts.OutcomesName = opts.output

			result, err := wf.CreateUsers(ctx, in, toCreate, runOpts)
			if err != nil {
				return err
			}
			logResult(a.logger, result)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.preflight, "preflight", "p", "", "таблица preflight (CSV или XLSX)")
	addOutputFlag(cmd.Flags(), &opts.output, "creation_results")
	_ = cmd.MarkFlagRequired("preflight")
	return cmd
}

type provisionOptions struct {
	output string
}

func newProvisionCmd(a *app) *cobra.Command {
	opts := &provisionOptions{}

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Полный запуск: preflight, создание, отчёт и валидация",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			in, err := a.loadInput()
			if err != nil {
				return err
			}
			wf, err := a.workflow(ctx, true)
			if err != nil {
				return err
			}
			runOpts := a.runOptions()
			runOpts.FinalName = opts.output

			result, err := wf.Run(ctx, in, runOpts)
			if err != nil {
				return err
			}
			logResult(a.logger, result)
			if result.Validation != nil && !result.Validation.OK() {
				return fmt.Errorf("валидация не пройдена: не найдено %d, неактивно %d",
					len(result.Validation.Missing), len(result.Validation.Inactive))
			}
			return nil
		},
	}

	addOutputFlag(cmd.Flags(), &opts.output, "provisioning_report")
	return cmd
}

// logResult выводит итоги запуска и нефатальные ошибки артефактов.
func logResult(logger *slog.Logger, result *service.RunResult) {
	attrs := []any{
		slog.String("run_id", result.Summary.RunID),
		slog.Int("roster", result.MergeStats.Total),
		slog.Int("unmatched", result.MergeStats.Unmatched),
		slog.Int("sso", result.MergeStats.SSO),
		slog.Any("artifacts", result.Artifacts),
	}
	if result.Preflight != nil {
		attrs = append(attrs, slog.Bool("degraded", result.Preflight.Degraded))
	}
	if result.Report != nil {
		attrs = append(attrs, slog.Int("reported", len(result.Report.Records)))
	}
	logger.Info("Итоги запуска", attrs...)

	for _, err := range result.ReportErrors {
		logger.Warn("Артефакт не сформирован", slog.String("error", err.Error()))
	}
}
