package main

import (
	"errors"
	"fmt"

	"hubgraph/demo/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	watchAPI    string
	watchJob    string
	watchHub    string
	watchTarget int
)

// watchCmd renders a job's slots in the terminal
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a job in an interactive terminal view",
	Long: `Connects to a running hubgraph server and draws the hub with its placeholder nodes
as they are filled. Pass --job to follow an existing job or --hub to start one.`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchAPI, "api", "", "hubgraph API URL (default http://localhost:<server.port>)")
	watchCmd.Flags().StringVar(&watchJob, "job", "", "Job id to follow")
	watchCmd.Flags().StringVar(&watchHub, "hub", "", "Hub id to start a job for")
	watchCmd.Flags().IntVarP(&watchTarget, "target", "n", 0, "Number of nodes to wait for when starting a job")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchJob == "" && watchHub == "" {
		return errors.New("either --job or --hub is required")
	}
	apiURL := watchAPI
	if apiURL == "" {
		apiURL = "http://localhost:" + cfg.Server.Port
	}

	m := tui.NewModel(apiURL, watchJob, watchHub, watchTarget)
	program := tea.NewProgram(m, tea.WithContext(cmd.Context()))

	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
