// audit_cmd.go — команды validate и report.
package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bigkaa/sf-provisioner/internal/service"
	"github.com/bigkaa/sf-provisioner/internal/workbook"
)

type validateOptions struct {
	results    string
	provenance string
	output     string
}

func newValidateCmd(a *app) *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Проверить созданных пользователей по таблице результатов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			table, err := workbook.ReadTableFile(opts.results, "")
			if err != nil {
				return err
			}
			outcomes, err := workbook.ParseOutcomes(table)
			if err != nil {
				return err
			}
			in, err := a.loadInput()
			if err != nil {
				return err
			}
			wf, err := a.workflow(ctx, true)
			if err != nil {
				return err
			}

			provenance := a.cfg.ProvenanceValue
			if cmd.Flags().Changed("provenance") {
				provenance = opts.provenance
			}

			result, err := wf.Validate(ctx, outcomes, in.Roster.Records, provenance)
			if err != nil {
				return err
			}
			if _, err := a.writeTable(ctx, workbook.ValidationTable(result), opts.output, "validation_results"); err != nil {
				a.logger.Warn("Таблица валидации не записана", slog.String("error", err.Error()))
			}
			if !result.OK() {
				return fmt.Errorf("валидация не пройдена: не найдено %d (%s), неактивно %d (%s)",
					len(result.Missing), strings.Join(result.Missing, ", "),
					len(result.Inactive), strings.Join(result.Inactive, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.results, "results", "r", "", "таблица результатов создания (CSV или XLSX)")
	cmd.Flags().StringVar(&opts.provenance, "provenance", "", "значение колонки провенанса для отбора (по умолчанию PV_PROVENANCE_VALUE)")
	addOutputFlag(cmd.Flags(), &opts.output, "validation_results")
	_ = cmd.MarkFlagRequired("results")
	return cmd
}

type reportOptions struct {
	results string
	ids     []string
}

func newReportCmd(a *app) *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Сформировать отчёт о созданных пользователях",
		Args:  cobra.NoArgs,
		PreRunE: func(_ *cobra.Command, _ []string) error {
			if (opts.results == "") == (len(opts.ids) == 0) {
				return usageErrorf("укажите ровно один из флагов --results или --ids")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ids := opts.ids
			if opts.results != "" {
				table, err := workbook.ReadTableFile(opts.results, "")
				if err != nil {
					return err
				}
				outcomes, err := workbook.ParseOutcomes(table)
				if err != nil {
					return err
				}
				ids = service.CreatedIDs(outcomes)
			}
			if len(ids) == 0 {
				a.logger.Info("Нет созданных пользователей для отчёта")
				return nil
			}

			wf, err := a.workflow(ctx, true)
			if err != nil {
				return err
			}
			report, loc, err := wf.Report(ctx, ids)
			if err != nil {
				return err
			}
			if report == nil {
				return nil
			}
			a.logger.Info("Отчёт сформирован",
				slog.String("location", loc),
				slog.Int("users", len(report.Records)),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.results, "results", "r", "", "таблица результатов создания (CSV или XLSX)")
	cmd.Flags().StringSliceVar(&opts.ids, "ids", nil, "Id пользователей через запятую")
	return cmd
}
