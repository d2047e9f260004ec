// Command trackerctl works with tracker schemas and trackers offline, and
// queues generation requests for a running worker.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jwebster45206/scene-tracker/pkg/tracker"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "trackerctl",
		Short:        "Scene tracker schema and tracker tool",
		SilenceUsage: true,
	}
	root.AddCommand(
		newValidateCmd(),
		newMigrateCmd(),
		newExampleCmd(),
		newPromptCmd(),
		newRenderCmd(),
		newCleanCmd(),
		newEnqueueCmd(),
	)
	return root
}

// formatFor picks the tracker format from a flag value, falling back to the
// file extension.
func formatFor(flag, path string) (tracker.Format, error) {
	if flag != "" {
		return tracker.ParseFormat(flag)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return tracker.FormatJSON, nil
	}
	return tracker.FormatYAML, nil
}

// readTracker loads a tracker file, tagged or bare.
func readTracker(path string, format tracker.Format) (*tracker.Object, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tracker file: %w", err)
	}
	if _, ok := tracker.ExtractPayload(string(data)); ok {
		return tracker.Deserialize(string(data), format)
	}
	return tracker.Decode(string(data), format)
}
