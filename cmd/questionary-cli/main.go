// Questionary CLI - инструмент командной строки для шаблонов
// и анкет через HTTP API.
//
// Использование:
//
//	questionary [--api-url URL] [--token TOKEN] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	template     Шаблоны: список, создание, импорт, проверка
//	question     Вопросы
//	questionary  Заполнение анкет
//	token        Выпуск токена для отладки
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Questionary/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var token string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "questionary",
		Short:         "Questionary CLI: proposal templates and questionaries",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("QUESTIONARY_TOKEN"), "Bearer token (default $QUESTIONARY_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, token) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTemplateCmd(clientFn, outputFn),
		cli.NewQuestionCmd(clientFn, outputFn),
		cli.NewQuestionaryCmd(clientFn, outputFn),
		cli.NewTokenCmd(outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
