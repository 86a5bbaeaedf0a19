package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nfrund/chatline/internal/pubsub"
)

var topicsOutputFormat string

// topicsCmd lists the notification topics.
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List the notification topics relayed to clients",
	Long: `List the pub/sub topics the server relays to every connected client.

Output formats:
  table - Human-readable table format (default)
  json  - Machine-readable JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printTopics(cmd.OutOrStdout(), topicsOutputFormat, pubsub.NotificationTopics())
	},
}

type topicInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func printTopics(w io.Writer, format string, topics []pubsub.Topic) error {
	infos := make([]topicInfo, 0, len(topics))
	for _, t := range topics {
		infos = append(infos, topicInfo{Name: t.Name(), Description: t.Description()})
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"topics": infos, "count": len(infos)})
	case "table":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tDESCRIPTION")
		for _, info := range infos {
			fmt.Fprintf(tw, "%s\t%s\n", info.Name, info.Description)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q, use table or json", format)
	}
}

func init() {
	topicsCmd.Flags().StringVarP(&topicsOutputFormat, "format", "f", "table", "output format (table, json)")
	rootCmd.AddCommand(topicsCmd)
}
