// analyze_cmd.go — команды анализа организации (только чтение).
package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigkaa/sf-provisioner/internal/service"
	"github.com/bigkaa/sf-provisioner/internal/workbook"
)

type analyzeOptions struct {
	output string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Запросы к организации: permission sets, connected apps",
	}
	addOutputFlag(cmd.PersistentFlags(), &opts.output, "<команда>")

	analyzer := func(ctx context.Context) (*service.OrgAnalyzer, error) {
		dir, err := a.directory(ctx)
		if err != nil {
			return nil, err
		}
		return service.NewOrgAnalyzer(dir, a.logger), nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "permission-set-users <name>",
			Short: "Пользователи, которым назначен permission set",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				o, err := analyzer(ctx)
				if err != nil {
					return err
				}
				users, err := o.PermissionSetUsers(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = a.writeTable(ctx, workbook.PermissionSetUsersTable(users), opts.output, "permission_set_users")
				return err
			},
		},
		&cobra.Command{
			Use:   "permission-sets",
			Short: "Permission sets по дате последнего изменения",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				o, err := analyzer(ctx)
				if err != nil {
					return err
				}
				items, err := o.PermissionSets(ctx)
				if err != nil {
					return err
				}
				_, err = a.writeTable(ctx, workbook.NamedChangesTable(items), opts.output, "permission_sets")
				return err
			},
		},
		&cobra.Command{
			Use:   "connected-apps",
			Short: "Connected apps по дате последнего изменения",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				o, err := analyzer(ctx)
				if err != nil {
					return err
				}
				items, err := o.ConnectedApps(ctx)
				if err != nil {
					return err
				}
				_, err = a.writeTable(ctx, workbook.NamedChangesTable(items), opts.output, "connected_apps")
				return err
			},
		},
		&cobra.Command{
			Use:   "connected-app <name>",
			Short: "Сведения о connected app",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				o, err := analyzer(ctx)
				if err != nil {
					return err
				}
				details, err := o.ConnectedApp(ctx, args[0])
				if err != nil {
					return err
				}
				_, err = a.writeTable(ctx, workbook.ConnectedAppTable(details), opts.output, "connected_app")
				return err
			},
		},
	)
	return cmd
}

// writeTable кодирует таблицу по расширению имени и записывает в приёмник.
// Пустое name — base_<время><format>.
func (a *app) writeTable(ctx context.Context, t *workbook.Table, name, base string) (string, error) {
	if name == "" {
		name = base + "_" + time.Now().Format("20060102_150405") + a.opts.format
	}
	data, contentType, err := workbook.Encode(t, name)
	if err != nil {
		return "", err
	}
	loc, err := a.sink.Put(ctx, name, contentType, data)
	if err != nil {
		return "", err
	}
	a.logger.Info("Таблица записана",
		slog.String("location", loc),
		slog.Int("rows", len(t.Rows)),
	)
	return loc, nil
}
