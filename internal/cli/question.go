package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var questionHeaders = []string{"ID", "TYPE", "NATURAL_KEY", "QUESTION"}

func questionRow(q *QuestionResponse) []string {
	return []string{q.ID, q.DataType, q.NaturalKey, q.Question}
}

// NewQuestionCmd создаёт группу команд для управления вопросами.
func NewQuestionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "question",
		Short: "Manage questions",
	}

	cmd.AddCommand(
		newQuestionListCmd(clientFn, outputFn),
		newQuestionCreateCmd(clientFn, outputFn),
		newQuestionShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newQuestionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			questions, err := client.ListQuestions()
			if err != nil {
				return err
			}

			rows := make([][]string, len(questions))
			for i := range questions {
				rows[i] = questionRow(&questions[i])
			}

			out.Print(questionHeaders, rows, questions)
			return nil
		},
	}
}

func newQuestionCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateQuestionRequest
	var config string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a question outside of templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if config != "" {
				if !json.Valid([]byte(config)) {
					return fmt.Errorf("--config is not valid JSON")
				}
				req.DefaultConfig = json.RawMessage(config)
			}

			q, err := client.CreateQuestion(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Question created: %s", q.ID))
			out.Print(questionHeaders, [][]string{questionRow(q)}, q)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.DataType, "type", "", "Data type, e.g. TEXT_INPUT, BOOLEAN (required)")
	cmd.Flags().StringVar(&req.NaturalKey, "key", "", "Natural key")
	cmd.Flags().StringVar(&req.Question, "text", "", "Question text")
	cmd.Flags().StringVar(&config, "config", "", "Default config as JSON")
	cmd.MarkFlagRequired("type")

	return cmd
}

func newQuestionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show question details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			q, err := client.GetQuestion(args[0])
			if err != nil {
				return err
			}

			out.Print(
				append(questionHeaders, "DEFAULT_CONFIG"),
				[][]string{append(questionRow(q), string(q.DefaultConfig))},
				q,
			)
			return nil
		},
	}
}
