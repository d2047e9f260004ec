package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/scene-tracker/internal/storage"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

const validateConcurrency = 4

func newValidateCmd() *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "validate <schema>...",
		Short: "Validate schema files",
		Long: "Parses and validates each schema file, JSON or YAML by extension, and reports every failure. " +
			"Fields that declare no presence are read as DYNAMIC with a warning, or rejected with --strict.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results := make([]error, len(args))
			fields := make([]int, len(args))
			implicit := make([][]string, len(args))

			var g errgroup.Group
			g.SetLimit(validateConcurrency)
			for i, path := range args {
				g.Go(func() error {
					s, err := storage.LoadSchemaFile(path)
					if err == nil && strict {
						err = s.ValidateStrict()
					}
					if err != nil {
						results[i] = err
						return nil
					}
					fields[i] = len(s.Fields)
					implicit[i] = s.ImplicitPresence()
					return nil
				})
			}
			_ = g.Wait()

			failed := 0
			out := cmd.OutOrStdout()
			for i, path := range args {
				if results[i] != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, results[i])
					continue
				}
				fmt.Fprintf(out, "ok   %s (%d top-level fields)\n", path, fields[i])
				for _, field := range implicit[i] {
					fmt.Fprintf(out, "warn %s: %s declares no presence, read as DYNAMIC\n", path, field)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d schema files are invalid", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "reject fields that declare no presence")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	var (
		output string
		format string
	)
	cmd := &cobra.Command{
		Use:   "migrate <schema>",
		Short: "Rewrite a schema in the current layout",
		Long:  "Reads a schema, replacing legacy isDynamic flags with presence, and writes it back out as JSON or YAML.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := storage.LoadSchemaFile(args[0])
			if err != nil {
				return err
			}
			f, err := tracker.ParseFormat(format)
			if err != nil {
				return err
			}

			var data []byte
			switch f {
			case tracker.FormatJSON:
				raw, err := json.Marshal(s)
				if err != nil {
					return fmt.Errorf("failed to encode schema: %w", err)
				}
				var buf bytes.Buffer
				if err := json.Indent(&buf, raw, "", "  "); err != nil {
					return fmt.Errorf("failed to encode schema: %w", err)
				}
				buf.WriteByte('\n')
				data = buf.Bytes()
			default:
				if data, err = yaml.Marshal(s); err != nil {
					return fmt.Errorf("failed to encode schema: %w", err)
				}
			}

			if output == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write schema: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&format, "format", "json", "output format (json or yaml)")
	return cmd
}

func newExampleCmd() *cobra.Command {
	var (
		index    int
		defaults bool
		include  string
		format   string
		tagged   bool
	)
	cmd := &cobra.Command{
		Use:   "example <schema>",
		Short: "Print a tracker built from example or default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := storage.LoadSchemaFile(args[0])
			if err != nil {
				return err
			}
			inc, err := tracker.ParseInclude(include)
			if err != nil {
				return err
			}
			f, err := tracker.ParseFormat(format)
			if err != nil {
				return err
			}
			if index < 0 {
				return fmt.Errorf("example index cannot be negative, got %d", index)
			}

			mode := tracker.Example(index)
			if defaults {
				mode = tracker.Defaults()
			}
			inst, err := tracker.BuildInstance(s, inc, mode)
			if err != nil {
				return err
			}
			text, err := tracker.Encode(inst, f)
			if err != nil {
				return err
			}
			if tagged {
				text = tracker.Wrap(text)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "example scenario to build")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "use default values instead of examples")
	cmd.Flags().StringVar(&include, "include", "all", "fields to include (dynamic, static or all)")
	cmd.Flags().StringVar(&format, "format", "yaml", "output format (json or yaml)")
	cmd.Flags().BoolVar(&tagged, "tagged", false, "wrap the output in <tracker> tags")
	return cmd
}

func newPromptCmd() *cobra.Command {
	var include string
	cmd := &cobra.Command{
		Use:   "prompt <schema>",
		Short: "Print the field prompt sent to the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := storage.LoadSchemaFile(args[0])
			if err != nil {
				return err
			}
			inc, err := tracker.ParseInclude(include)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tracker.BuildFieldPrompt(s, inc))
			return nil
		},
	}
	cmd.Flags().StringVar(&include, "include", "dynamic", "fields to include (dynamic, static or all)")
	return cmd
}
