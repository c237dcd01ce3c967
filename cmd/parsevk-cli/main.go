// parseVK CLI — инструмент командной строки для управления
// задачами парсинга, группами VK и расписаниями через HTTP API.
//
// Использование:
//
//	parsevk [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	task      Управление задачами парсинга
//	group     Управление группами VK
//	schedule  Управление расписаниями
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/andr-235/parseVK-sub006/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "parsevk",
		Short:         "parseVK CLI — VK scraping control tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewGroupCmd(clientFn, outputFn),
		cli.NewScheduleCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		cli.NewOutput(jsonOutput).Error(err.Error())
		os.Exit(1)
	}
}
