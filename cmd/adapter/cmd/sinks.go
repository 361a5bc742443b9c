package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/psantana5/adapter-skeleton/internal/sink"
)

var sinksOutput string

var sinksCmd = &cobra.Command{
	Use:   "sinks",
	Short: "List the available sink kinds",
	Long:  `Shows every sink kind a logger handler can name, its aliases and the parameters it accepts.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSinks(os.Stdout, sink.Builtin(), sinksOutput)
	},
}

func init() {
	rootCmd.AddCommand(sinksCmd)
	sinksCmd.Flags().StringVarP(&sinksOutput, "output", "o", "table", "output format: table or json")
}

type sinkInfo struct {
	Kind        string   `json:"kind"`
	Aliases     []string `json:"aliases"`
	Required    []string `json:"required"`
	Optional    []string `json:"optional"`
	Processors  []string `json:"processors,omitempty"`
	Batch       bool     `json:"batch"`
	Description string   `json:"description"`
}

func printSinks(w io.Writer, r *sink.Registry, format string) error {
	var infos []sinkInfo
	for _, f := range r.Factories() {
		required, optional := f.Describe()
		infos = append(infos, sinkInfo{
			Kind:        string(f.Kind),
			Aliases:     f.Aliases,
			Required:    required,
			Optional:    optional,
			Processors:  f.Processors,
			Batch:       f.Batch,
			Description: f.Description,
		})
	}

	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	case "table", "":
	default:
		return fmt.Errorf("unknown output format %q", format)
	}

	table := tablewriter.NewWriter(w)
	table.Header("Kind", "Aliases", "Required", "Optional", "Batch")
	for _, info := range infos {
		batch := "No"
		if info.Batch {
			batch = "Yes"
		}
		table.Append(
			info.Kind,
			strings.Join(info.Aliases, ", "),
			strings.Join(info.Required, ", "),
			strings.Join(info.Optional, ", "),
			batch,
		)
	}
	table.Render()
	return nil
}
