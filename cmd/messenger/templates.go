package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unclebandit/bulk-messenger/internal/repository"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage message templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := templateService()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tSUBJECT\tUPDATED")
		for _, t := range svc.List() {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name, t.Type, t.Subject, t.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var templatesPreviewCmd = &cobra.Command{
	Use:   "preview <name>",
	Short: "Render a template against the sample contact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := templateService()
		if err != nil {
			return err
		}
		p, err := svc.Preview(args[0], nil)
		if err != nil {
			return err
		}
		return printJSON(cmd, p)
	},
}

var templatesExportCmd = &cobra.Command{
	Use:   "export <file.json>",
	Short: "Write every template to one JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := templateService()
		if err != nil {
			return err
		}
		n, err := svc.Export(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %d templates to %s\n", n, args[0])
		return nil
	},
}

var templatesImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import templates, skipping names that already exist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := templateService()
		if err != nil {
			return err
		}
		res, err := svc.Import(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	},
}

var templatesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default templates in an empty store",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := templateService()
		if err != nil {
			return err
		}
		n, err := svc.SeedDefaults()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %d templates\n", n)
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesListCmd, templatesPreviewCmd, templatesExportCmd, templatesImportCmd, templatesSeedCmd)
}

func templateService() (*service.TemplateService, error) {
	svc := service.NewTemplateService(
		repository.NewTemplateRepository(cfg.Data.TemplatesDir, log),
		service.NewCustomizer(log),
		log,
	)
	if err := svc.Load(); err != nil {
		return nil, err
	}
	return svc, nil
}
