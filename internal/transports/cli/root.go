package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kefctl/internal/app"
	"kefctl/internal/config"
	"kefctl/internal/core"
	"kefctl/pkg/logger"
)

type rootFlags struct {
	configPath string
	address    string
	driver     string
}

type cli struct {
	version string
	flags   rootFlags
	appOpts []app.Option
}

// New создает корневую CLI-команду. appOpts передаются в app.New (тесты подменяют устройство).
func New(version string, appOpts ...app.Option) *cobra.Command {
	c := &cli{version: version, appOpts: appOpts}
	root := &cobra.Command{
		Use:           "kefctl",
		Short:         "Управление сетевой колонкой KEF",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "путь к YAML-конфигу")
	pf.StringVar(&c.flags.address, "address", "", "адрес колонки (перекрывает speaker.address)")
	pf.StringVar(&c.flags.driver, "driver", "", "драйвер колонки: kef или memory")

	root.AddCommand(
		newExecCmd(c),
		newServeCmd(c),
		newStatusCmd(c),
		newCommandsCmd(),
		newDiagCmd(c),
		newAuditCmd(c),
		newVersionCmd(version),
	)
	return root
}

func (c *cli) loadConfig() (config.Config, error) {
	cfg, err := config.Load(c.flags.configPath)
	if err != nil {
		return cfg, err
	}
	if c.flags.address != "" {
		cfg.Speaker.Address = c.flags.address
	}
	if c.flags.driver != "" {
		cfg.Speaker.Driver = c.flags.driver
	}
	return cfg, cfg.Validate()
}

// open собирает приложение. Логи CLI идут в stderr, чтобы не смешиваться с выводом команд.
func (c *cli) open(cmd *cobra.Command) (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	lg := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Version: c.version,
		Output:  cmd.ErrOrStderr(),
	})
	return app.New(cfg, lg, c.appOpts...)
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Показать версию",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version)
		},
	}
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "Показать команды колонки",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), commandHelp(core.NewRegistry()))
		},
	}
}

func commandHelp(r *core.Registry) string {
	var b strings.Builder
	for _, c := range r.Commands() {
		fmt.Fprintf(&b, "  %s: %s", c.Name, c.Help)
		if len(c.Aliases) > 0 {
			fmt.Fprintf(&b, " (aliases: %s)", strings.Join(c.Aliases, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
