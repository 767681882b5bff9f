package main

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/usdatahub/usdata-mcp/pkg/catalog"
)

// toolsCmd represents the tools command
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available tools",
	Long:  `Renders the tool catalog grouped by source, with each tool's arguments.`,
	Run: func(cmd *cobra.Command, args []string) {
		system, _, _, err := setup(cmd)
		if err != nil {
			log.Fatalf("Error initializing: %v", err)
		}

		plain, _ := cmd.Flags().GetBool("plain")
		markdown := catalogMarkdown(system.Registry.List())

		if plain {
			fmt.Print(markdown)
			return
		}

		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
		)
		if err != nil {
			fmt.Print(markdown)
			return
		}
		out, err := r.Render(markdown)
		if err != nil {
			fmt.Print(markdown)
			return
		}

		p := termenv.ColorProfile()
		header := termenv.String("usdata-mcp tool catalog").Foreground(p.Color("#818cf8")).Bold()
		fmt.Println()
		fmt.Println(header)
		fmt.Print(out)
	},
}

// catalogMarkdown renders the descriptors as markdown grouped by source.
func catalogMarkdown(descriptors []catalog.Descriptor) string {
	bySource := map[string][]catalog.Descriptor{}
	var sources []string
	for _, d := range descriptors {
		if _, seen := bySource[d.Source]; !seen {
			sources = append(sources, d.Source)
		}
		bySource[d.Source] = append(bySource[d.Source], d)
	}

	var sb strings.Builder
	for _, source := range sources {
		fmt.Fprintf(&sb, "## %s\n\n", source)
		for _, d := range bySource[source] {
			fmt.Fprintf(&sb, "### %s\n\n%s\n\n", d.Name, d.Description)

			fields := make([]string, 0, len(d.Schema))
			for name := range d.Schema {
				fields = append(fields, name)
			}
			sort.Strings(fields)

			for _, name := range fields {
				field := d.Schema[name]
				required := ""
				if field.Required {
					required = " (required)"
				}
				fmt.Fprintf(&sb, "- `%s` %s%s: %s\n", name, field.Type.Name(), required, field.Description)
			}
			if len(fields) > 0 {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}

func init() {
	rootCmd.AddCommand(toolsCmd)

	toolsCmd.Flags().Bool("plain", false, "Print raw markdown without terminal styling")
}
