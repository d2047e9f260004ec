package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/scene-tracker/internal/storage"
	"github.com/jwebster45206/scene-tracker/pkg/display"
	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

func newRenderCmd() *cobra.Command {
	var (
		templateFile string
		format       string
		printTmpl    bool
	)
	cmd := &cobra.Command{
		Use:   "render <schema> [tracker]",
		Short: "Render a tracker through a display template",
		Long: `Renders a tracker file with a display template. Without --template the
template generated from the schema is used. With --print-template only the
template is printed and no tracker file is needed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := storage.LoadSchemaFile(args[0])
			if err != nil {
				return err
			}

			tmpl := display.TemplateFor(s)
			if templateFile != "" {
				data, err := os.ReadFile(templateFile)
				if err != nil {
					return fmt.Errorf("failed to read template: %w", err)
				}
				tmpl = string(data)
			}
			if printTmpl {
				fmt.Fprintln(cmd.OutOrStdout(), tmpl)
				return nil
			}
			if len(args) < 2 {
				return fmt.Errorf("a tracker file is required unless --print-template is set")
			}

			f, err := formatFor(format, args[1])
			if err != nil {
				return err
			}
			inst, err := readTracker(args[1], f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), display.Render(tmpl, display.FilterGender(inst, s)))
			return nil
		},
	}
	cmd.Flags().StringVar(&templateFile, "template", "", "template file to render with")
	cmd.Flags().StringVar(&format, "format", "", "tracker file format (json or yaml, default by extension)")
	cmd.Flags().BoolVar(&printTmpl, "print-template", false, "print the template instead of rendering")
	return cmd
}

func newCleanCmd() *cobra.Command {
	var (
		include string
		format  string
		output  string
		flatten bool
	)
	cmd := &cobra.Command{
		Use:   "clean <schema> <tracker>",
		Short: "Print a tracker without empty values",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := storage.LoadSchemaFile(args[0])
			if err != nil {
				return err
			}
			in, err := formatFor(format, args[1])
			if err != nil {
				return err
			}
			inst, err := readTracker(args[1], in)
			if err != nil {
				return err
			}
			inc, err := tracker.ParseInclude(include)
			if err != nil {
				return err
			}
			out, err := tracker.ParseFormat(output)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tracker.Clean(inst, s, tracker.CleanOptions{
				Include: inc,
				Format:  out,
				Flatten: flatten,
			}))
			return nil
		},
	}
	cmd.Flags().StringVar(&include, "include", "all", "fields to include (dynamic, static or all)")
	cmd.Flags().StringVar(&format, "format", "", "tracker file format (json or yaml, default by extension)")
	cmd.Flags().StringVar(&output, "output-format", "yaml", "output format (json or yaml)")
	cmd.Flags().BoolVar(&flatten, "flatten", false, "lift the children of object fields to their parent")
	return cmd
}
