package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"kefctl/internal/core"
	"kefctl/internal/speaker"
)

const (
	cliSource  = "cli"
	valuesFlag = "--values"
)

func newExecCmd(c *cli) *cobra.Command {
	var values []string
	cmd := &cobra.Command{
		Use:   "exec COMMAND... [--values V...]",
		Short: "Выполнить команды колонки по порядку",
		Long: "Commands to execute (space-separated)\n\nAvailable commands and their parameters:\n" +
			commandHelp(core.NewRegistry()) +
			"\nValues are paired with commands by position; missing values are treated as absent.\n" +
			"Both forms are accepted:\n" +
			"  kefctl exec set_volume set_source --values 0.5 Aux\n" +
			"  kefctl exec set_volume set_source --values 0.5 --values Aux\n" +
			"Global flags go before the first command.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			args, trailing := splitValues(args)
			if len(args) == 0 {
				return errNoCommands
			}
			values = append(values, trailing...)

			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if err := a.CheckStartup(ctx); err != nil {
				fmt.Fprintln(out, "Speaker is offline. Please check the connection.")
				return err
			}
			names := a.Dispatcher.Registry().Names()
			for i, name := range args {
				var cmdArgs []string
				if i < len(values) {
					cmdArgs = []string{values[i]}
				}
				res := a.Service.Execute(ctx, cliSource, "", name, cmdArgs...)
				printResult(out, name, res, names)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&values, "values", nil, "значения команд по порядку; пустая строка = нет значения")
	// Разбор флагов останавливается на первой команде: все после --values
	// разбирает splitValues.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

var errNoCommands = errors.New("exec requires at least one command")

// splitValues отделяет команды от значений после первого --values.
// Повторные "--values" и "--values=V" среди значений тоже принимаются.
func splitValues(args []string) (commands, values []string) {
	for i, arg := range args {
		if arg != valuesFlag && !strings.HasPrefix(arg, valuesFlag+"=") {
			continue
		}
		commands = args[:i]
		for _, v := range args[i:] {
			switch {
			case v == valuesFlag:
			case strings.HasPrefix(v, valuesFlag+"="):
				values = append(values, strings.TrimPrefix(v, valuesFlag+"="))
			default:
				values = append(values, v)
			}
		}
		return commands, values
	}
	return args, nil
}

// printResult печатает итог одной команды. Ошибка команды не прерывает последовательность.
func printResult(w io.Writer, name string, res core.Result, available []string) {
	switch {
	case res.Success && res.Payload != nil:
		fmt.Fprintf(w, "%s result: %s\n", name, formatPayload(res.Payload))
	case res.Success:
		fmt.Fprintf(w, "%s executed successfully\n", name)
	case errors.Is(res.Err, core.ErrUnknownCommand):
		fmt.Fprintf(w, "Unknown command: %s\n", name)
		fmt.Fprintln(w, "Available commands:", available)
	case errors.Is(res.Err, core.ErrMissingValue):
		fmt.Fprintf(w, "Error: %s\n", res.Message())
	default:
		fmt.Fprintf(w, "Error executing %s: %s\n", name, res.Message())
	}
}

func formatPayload(v interface{}) string {
	switch p := v.(type) {
	case string, float64, bool:
		return fmt.Sprint(p)
	case speaker.Source:
		return string(p)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
