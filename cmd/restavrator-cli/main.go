// Restavrator CLI — инструмент командной строки для управления
// batch-заданиями и просмотра runs через HTTP API.
//
// Использование:
//
//	restavrator [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	batch  Управление batch-заданиями
//	run    Просмотр runs и шагов пайплайна
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fotoarhiv/restavrator/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "restavrator",
		Short:         "Restavrator CLI — photo restoration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewBatchCmd(clientFn, outputFn),
		cli.NewRunCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
