package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Questionary/internal/engine"
)

var templateHeaders = []string{"ID", "NAME", "CATEGORY", "VERSION", "ARCHIVED", "TOPICS"}

func templateRow(t *TemplateResponse) []string {
	return []string{
		strconv.FormatInt(t.ID, 10),
		t.Name,
		t.Category,
		strconv.Itoa(t.Version),
		strconv.FormatBool(t.IsArchived),
		strconv.Itoa(len(t.Topics)),
	}
}

// NewTemplateCmd создаёт группу команд для управления шаблонами.
func NewTemplateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage questionary templates",
	}

	cmd.AddCommand(
		newTemplateListCmd(clientFn, outputFn),
		newTemplateCreateCmd(clientFn, outputFn),
		newTemplateShowCmd(clientFn, outputFn),
		newTemplateArchiveCmd(clientFn, outputFn),
		newTemplateImportCmd(clientFn, outputFn),
		newTemplateValidateCmd(outputFn),
	)

	return cmd
}

func newTemplateListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListTemplatesOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			templates, err := client.ListTemplates(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(templates))
			for i := range templates {
				rows[i] = templateRow(&templates[i])
			}

			out.Print(templateHeaders, rows, templates)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Archived, "archived", "", "Filter by archived flag (true/false)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Filter by category (PROPOSAL_QUESTIONARY, SAMPLE_DECLARATION)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newTemplateCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var req CreateTemplateRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty template",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			t, err := client.CreateTemplate(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Template created: %d", t.ID))
			out.Print(templateHeaders, [][]string{templateRow(t)}, t)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Template name (required)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Template description")
	cmd.Flags().StringVar(&req.Category, "category", "", "Template category (default PROPOSAL_QUESTIONARY)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newTemplateShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show template topics and fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			t, err := client.GetTemplate(args[0])
			if err != nil {
				return err
			}

			if out.JSONMode() {
				out.JSON(t)
				return nil
			}

			out.Table(templateHeaders, [][]string{templateRow(t)})
			out.Line("")

			var rows [][]string
			for _, topic := range t.Topics {
				for _, f := range topic.Fields {
					depends := ""
					if f.Dependency != nil {
						depends = f.Dependency.DependencyID + " " + string(f.Dependency.Condition)
					}
					rows = append(rows, []string{
						strconv.FormatInt(topic.ID, 10),
						topic.Title,
						strconv.FormatBool(topic.IsEnabled),
						strconv.Itoa(f.SortOrder),
						f.Question.ID,
						f.Question.DataType,
						depends,
					})
				}
			}
			out.Table([]string{"TOPIC", "TITLE", "ENABLED", "ORDER", "QUESTION", "TYPE", "DEPENDS_ON"}, rows)
			return nil
		},
	}
}

func newTemplateArchiveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var restore bool

	cmd := &cobra.Command{
		Use:   "archive ID",
		Short: "Archive a template (or restore it with --restore)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			archived := !restore
			t, err := client.UpdateTemplate(args[0], UpdateTemplateRequest{IsArchived: &archived})
			if err != nil {
				return err
			}

			if archived {
				out.Success(fmt.Sprintf("Template archived: %d", t.ID))
			} else {
				out.Success(fmt.Sprintf("Template restored: %d", t.ID))
			}
			out.Print(templateHeaders, [][]string{templateRow(t)}, t)
			return nil
		},
	}

	cmd.Flags().BoolVar(&restore, "restore", false, "Remove the archived flag")

	return cmd
}

func newTemplateImportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create a template from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := readTemplateFile(args[0])
			if err != nil {
				return err
			}

			t, err := client.ImportTemplate(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Template imported: %d", t.ID))
			out.Print(templateHeaders, [][]string{templateRow(t)}, t)
			return nil
		},
	}
}

func newTemplateValidateCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Validate a template JSON document without the API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read template file: %w", err)
			}

			t, err := engine.ParseTemplate(data)
			if err != nil {
				return err
			}

			g := engine.BuildGraph(t)
			dependent := 0
			for _, f := range t.Fields() {
				if f.Dependency != nil {
					dependent++
				}
			}

			summary := map[string]any{
				"valid":            true,
				"topics":           len(t.Topics),
				"fields":           len(g.Nodes),
				"dependent":        dependent,
				"evaluation_order": g.Order,
			}
			out.Success("Template is valid")
			out.Print(
				[]string{"TOPICS", "FIELDS", "DEPENDENT"},
				[][]string{{strconv.Itoa(len(t.Topics)), strconv.Itoa(len(g.Nodes)), strconv.Itoa(dependent)}},
				summary,
			)
			return nil
		},
	}
}

// readTemplateFile читает документ шаблона и проверяет его локально,
// до обращения к API.
func readTemplateFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}
	if _, err := engine.ParseTemplate(data); err != nil {
		return nil, err
	}
	return data, nil
}
