package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfrund/relay/internal/events"
	"github.com/nfrund/relay/internal/topicmgr"
)

var topicsOutputFormat string

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Inspect the registered pub/sub topics",
	Long: `List the topics the messaging server communicates over, with their
owning module and documentation.

Examples:
  relay topics                # table format
  relay topics --format json  # machine-readable`,
	Run: topicsHandler,
}

func topicsHandler(cmd *cobra.Command, args []string) {
	if err := events.RegisterTopics(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to register topics: %v\n", err)
		os.Exit(1)
	}

	topics := topicmgr.Default().List()

	if topicsOutputFormat == "json" {
		out := make([]topicmgr.TopicConfig, 0, len(topics))
		for _, t := range topics {
			out = append(out, topicmgr.TopicConfig{
				Name:        t.Name(),
				Module:      t.Module(),
				Scope:       t.Scope(),
				Description: t.Description(),
				Example:     t.Example(),
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to encode topics: %v\n", err)
			os.Exit(1)
		}
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODULE\tSCOPE\tDESCRIPTION")
	for _, t := range topics {
		module := t.Module()
		if module == "" {
			module = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.Name(), module, t.Scope(), t.Description())
	}
	w.Flush()
}

func init() {
	topicsCmd.Flags().StringVar(&topicsOutputFormat, "format", "table", "Output format: table or json")
	rootCmd.AddCommand(topicsCmd)
}
