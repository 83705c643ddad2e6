package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var questionaryHeaders = []string{"ID", "TEMPLATE_ID", "CREATOR_ID", "CREATED"}

func questionaryRow(q *QuestionaryResponse) []string {
	return []string{
		strconv.FormatInt(q.ID, 10),
		strconv.FormatInt(q.TemplateID, 10),
		strconv.FormatInt(q.CreatorID, 10),
		q.CreatedAt,
	}
}

// NewQuestionaryCmd создаёт группу команд для работы с анкетами.
func NewQuestionaryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "questionary",
		Aliases: []string{"qn"},
		Short:   "Fill in questionaries",
	}

	cmd.AddCommand(
		newQuestionaryListCmd(clientFn, outputFn),
		newQuestionaryCreateCmd(clientFn, outputFn),
		newQuestionaryShowCmd(clientFn, outputFn),
		newQuestionaryAnswerCmd(clientFn, outputFn),
	)

	return cmd
}

func newQuestionaryListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var templateID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List questionaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			list, err := client.ListQuestionaries(templateID)
			if err != nil {
				return err
			}

			rows := make([][]string, len(list))
			for i := range list {
				rows[i] = questionaryRow(&list[i])
			}

			out.Print(questionaryHeaders, rows, list)
			return nil
		},
	}

	cmd.Flags().StringVar(&templateID, "template-id", "", "Filter by template ID")

	return cmd
}

func newQuestionaryCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "create TEMPLATE_ID",
		Short: "Start a questionary from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			templateID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid template ID %q", args[0])
			}

			qn, err := client.CreateQuestionary(templateID)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Questionary created: %d", qn.ID))
			out.Print(questionaryHeaders, [][]string{questionaryRow(qn)}, qn)
			return nil
		},
	}
}

func newQuestionaryShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show topics, active questions and answers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ev, err := client.Evaluate(args[0])
			if err != nil {
				return err
			}

			printEvaluation(out, ev)
			return nil
		},
	}
}

func newQuestionaryAnswerCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var clearAnswer bool

	cmd := &cobra.Command{
		Use:   "answer ID QUESTION_ID [VALUE_JSON]",
		Short: "Answer a question, e.g. answer 1 has_samples true",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			value, err := answerValue(args[2:], clearAnswer)
			if err != nil {
				return err
			}

			ev, err := client.Answer(args[0], args[1], value)
			if err != nil {
				return err
			}

			if len(ev.Toggled) > 0 {
				out.Success("Visibility changed: " + strings.Join(ev.Toggled, ", "))
			}
			printEvaluation(out, ev)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clearAnswer, "clear", false, "Clear the stored answer")

	return cmd
}

// answerValue возвращает JSON значения ответа. Значение, которое
// не разбирается как JSON, считается строкой.
func answerValue(args []string, clearAnswer bool) (json.RawMessage, error) {
	switch {
	case clearAnswer && len(args) > 0:
		return nil, fmt.Errorf("--clear does not take a value")
	case clearAnswer:
		return json.RawMessage("null"), nil
	case len(args) == 0:
		return nil, fmt.Errorf("value is required, use --clear to remove the answer")
	}

	if json.Valid([]byte(args[0])) {
		return json.RawMessage(args[0]), nil
	}
	quoted, err := json.Marshal(args[0])
	if err != nil {
		return nil, err
	}
	return quoted, nil
}

func printEvaluation(out *Output, ev *EvaluationResponse) {
	if out.JSONMode() {
		out.JSON(ev)
		return
	}

	var rows [][]string
	for _, topic := range ev.Topics {
		for _, q := range topic.Questions {
			answer := ""
			if len(q.Answer) > 0 && string(q.Answer) != "null" {
				answer = string(q.Answer)
			}
			rows = append(rows, []string{
				topic.Title,
				strconv.FormatBool(topic.IsCompleted),
				q.Field.Question.ID,
				q.Field.Question.DataType,
				strconv.FormatBool(q.IsActive),
				answer,
			})
		}
	}
	out.Table([]string{"TOPIC", "TOPIC_DONE", "QUESTION", "TYPE", "ACTIVE", "ANSWER"}, rows)
	out.Line(fmt.Sprintf("\ncompleted: %t (template %d v%d)", ev.IsCompleted, ev.TemplateID, ev.TemplateVersion))

	for _, d := range ev.Diagnostics {
		out.Error(fmt.Sprintf("%s: %s", d.QuestionID, d.Message))
	}
	if len(ev.Orphaned) > 0 {
		out.Success(fmt.Sprintf("%d answers refer to questions removed from the template", len(ev.Orphaned)))
	}
}
