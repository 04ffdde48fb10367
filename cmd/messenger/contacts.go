package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unclebandit/bulk-messenger/internal/repository"
	"github.com/unclebandit/bulk-messenger/internal/service"
)

var (
	keyFlag string
	outFlag string
)

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Inspect and clean contact files",
}

var contactsStatsCmd = &cobra.Command{
	Use:   "stats <file.csv>",
	Short: "Count contacts with usable and invalid email and phone values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contacts, err := contactService().Load(args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, service.Stats(contacts))
	},
}

var contactsValidateCmd = &cobra.Command{
	Use:   "validate <file.csv>",
	Short: "List contacts with problems",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contacts, err := contactService().Load(args[0])
		if err != nil {
			return err
		}
		bad := 0
		for i, c := range contacts {
			if problems := service.Validate(c); len(problems) > 0 {
				bad++
				fmt.Fprintf(cmd.OutOrStdout(), "row %d (%s): %v\n", i+2, c.Label(), problems)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d contacts have problems\n", bad, len(contacts))
		return nil
	},
}

var contactsDedupeCmd = &cobra.Command{
	Use:   "dedupe <file.csv>",
	Short: "Keep the first contact per key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := service.ParseKeyStrategy(keyFlag)
		if err != nil {
			return err
		}
		svc := contactService()
		contacts, err := svc.Load(args[0])
		if err != nil {
			return err
		}
		out := svc.Dedupe(contacts, strategy)
		if err := svc.Save(out, outputPath(args[0]), false); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "kept %d of %d contacts\n", len(out), len(contacts))
		return nil
	},
}

var contactsMergeCmd = &cobra.Command{
	Use:   "merge <primary.csv> <secondary.csv>",
	Short: "Merge two files; the secondary only fills empty fields",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy, err := service.ParseKeyStrategy(keyFlag)
		if err != nil {
			return err
		}
		svc := contactService()
		a, err := svc.Load(args[0])
		if err != nil {
			return err
		}
		b, err := svc.Load(args[1])
		if err != nil {
			return err
		}
		merged := service.Merge(a, b, strategy)
		if err := svc.Save(merged, outputPath(args[0]), false); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "merged %d + %d into %d contacts\n", len(a), len(b), len(merged))
		return nil
	},
}

var contactsSampleCmd = &cobra.Command{
	Use:   "sample <file.csv>",
	Short: "Write sample contacts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return contactService().CreateSample(args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{contactsDedupeCmd, contactsMergeCmd} {
		c.Flags().StringVar(&keyFlag, "by", "email", "key strategy: email, phone or name")
		c.Flags().StringVarP(&outFlag, "out", "o", "", "output file (default: overwrite the first input)")
	}
	contactsCmd.AddCommand(contactsStatsCmd, contactsValidateCmd, contactsDedupeCmd, contactsMergeCmd, contactsSampleCmd)
}

func contactService() *service.ContactService {
	return service.NewContactService(repository.NewContactRepository(cfg.Data.ContactsDir, log), log)
}

func outputPath(input string) string {
	if outFlag != "" {
		return outFlag
	}
	return input
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

