package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/executor/internal/console"
	"github.com/mattjoyce/executor/internal/module"
	"github.com/mattjoyce/executor/internal/registry"
)

func runModuleNoun(args []string) int {
	if len(args) < 1 {
		printModuleNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printModuleNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: executor module list [--all] [--json]")
			fmt.Println("List menu modules in option order. --all includes modules reachable by id only.")
			return 0
		}
		return runModuleList(actionArgs)
	case "show":
		if hasHelpFlag(actionArgs) {
			fmt.Println("Usage: executor module show <id>")
			return 0
		}
		return runModuleShow(actionArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown module action: %s\n", action)
		return 1
	}
}

func printModuleNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: executor module <action>")
	fmt.Fprintln(w, "Actions: list, show")
}

type moduleRow struct {
	Option      string `json:"option,omitempty"`
	ID          string `json:"id"`
	Filter      string `json:"filter"`
	Async       bool   `json:"async"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
}

func rowFor(d *module.Descriptor) moduleRow {
	row := moduleRow{
		ID:          d.ID(),
		Filter:      d.Filter().String(),
		Async:       d.Async() != nil,
		Enabled:     d.Enabled(),
		Description: d.Description(),
	}
	if opt, ok := d.Option(); ok {
		row.Option = strconv.Itoa(opt)
	}
	return row
}

func runModuleList(args []string) int {
	fs := flag.NewFlagSet("module list", flag.ContinueOnError)
	all := fs.Bool("all", false, "Include modules without an option key, in registration order")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	descriptors := registry.Default.Menu()
	if *all {
		descriptors = registry.Default.List()
	}
	rows := make([]moduleRow, 0, len(descriptors))
	for _, d := range descriptors {
		rows = append(rows, rowFor(d))
	}

	if *jsonOut {
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	renderModuleTable(os.Stdout, rows)
	return 0
}

// renderModuleTable writes rows as aligned columns styled with the console theme.
func renderModuleTable(w io.Writer, rows []moduleRow) {
	theme := console.NewTheme(w)
	idWidth, filterWidth := len("MODULE"), len("FILTER")
	for _, r := range rows {
		idWidth = max(idWidth, len(r.ID))
		filterWidth = max(filterWidth, len(r.Filter))
	}
	idCol := lipgloss.NewStyle().Width(idWidth + 2)
	filterCol := lipgloss.NewStyle().Width(filterWidth + 2)

	header := fmt.Sprintf("%-4s%s%s%s", "#", idCol.Render("MODULE"), filterCol.Render("FILTER"), "NOTES")
	fmt.Fprintln(w, theme.Header.Render(header))

	for _, r := range rows {
		var notes []string
		if r.Async {
			notes = append(notes, "async")
		}
		if !r.Enabled {
			notes = append(notes, "disabled")
		}
		line := fmt.Sprintf("%-4s%s%s%s", r.Option, idCol.Render(r.ID), filterCol.Render(r.Filter), strings.Join(notes, ","))
		if !r.Enabled {
			line = theme.Dim.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

func runModuleShow(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: executor module show <id>")
		return 1
	}
	d, err := registry.Default.Lookup(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	fmt.Printf("ID            : %s\n", d.ID())
	if d.Description() != "" {
		fmt.Printf("Description   : %s\n", d.Description())
	}
	fmt.Printf("Enabled       : %t\n", d.Enabled())
	fmt.Printf("Filter        : %s\n", d.Filter())
	if opt, ok := d.Option(); ok {
		fmt.Printf("Option        : %d\n", opt)
	}
	fmt.Printf("Configuration : %s (required: %t)\n", d.ConfigurationFile(), d.RequiresConfiguration())
	fmt.Printf("Async         : %t\n", d.Async() != nil)
	for _, p := range d.Prompts() {
		fmt.Printf("Prompt        : %s (%s) %s\n", p.Field, p.Kind, p.Message)
	}
	return 0
}
