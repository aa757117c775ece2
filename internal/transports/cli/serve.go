package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kefctl/internal/host"
	"kefctl/internal/storage"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP/MQTT-фасады",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.CheckStartup(ctx); err != nil {
				return fmt.Errorf("startup check failed: %w", err)
			}
			return a.Serve(ctx)
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Показать полный статус колонки",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.Service.Status(cmd.Context())
			if !res.Success {
				return res.Err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res.Payload)
		},
	}
}

func newDiagCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "diag",
		Short: "Диагностика узла и связи с колонкой",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			report := map[string]interface{}{
				"speaker": a.Address(),
				"driver":  a.Config.Speaker.Driver,
				"online":  a.Service.Online(ctx),
			}
			if info, err := host.Collect(ctx); err == nil {
				report["host"] = info
			} else {
				report["host_error"] = err.Error()
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func newAuditCmd(c *cli) *cobra.Command {
	var (
		limit  int
		source string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Показать журнал команд",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Store == nil {
				return errors.New("audit store is not configured: set sqlite.path")
			}
			events, err := a.Store.QueryAudit(cmd.Context(), storage.AuditQuery{Source: source, Limit: limit})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, ev := range events {
				line := fmt.Sprintf("%s %-4s %-12s %s", ev.TS.Format(time.RFC3339), ev.Source, ev.Command, ev.Status)
				if ev.Value != "" {
					line += " value=" + ev.Value
				}
				if ev.Error != "" {
					line += " error=" + ev.Error
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "число записей")
	cmd.Flags().StringVar(&source, "source", "", "фильтр по фасаду: cli, web, mqtt")
	return cmd
}
