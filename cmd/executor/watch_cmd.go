package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/executor/internal/tui/watch"
)

func runWatch(args []string) int {
	var configPath, apiURL, token string

	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "Path to configuration file or directory")
	fs.StringVar(&apiURL, "api-url", "", "Server base URL (defaults to http://<api.listen>)")
	fs.StringVar(&token, "token", "", "Bearer token (defaults to api.token)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if apiURL == "" || token == "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Config load error: %v\n", err)
			return 1
		}
		if apiURL == "" {
			apiURL = baseURL(cfg.API.Listen)
		}
		if token == "" {
			token = cfg.API.Token
		}
	}

	p := tea.NewProgram(watch.New(apiURL, token), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Watch failed: %v\n", err)
		return 1
	}
	return 0
}

// baseURL turns a listen address such as ":8080" into a dialable URL.
func baseURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		listen = "localhost" + listen
	}
	return "http://" + listen
}
