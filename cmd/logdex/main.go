package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dvirtanen/logdex/internal/ui"
)

func main() {
	var (
		cacheFlag      bool
		sliceFlag      string
		timeFlag       string
		consolidateFlag bool
	)

	root := &cobra.Command{
		Use:   "logdex <file> [file...]",
		Short: "Incremental log file viewer",
		Long: "logdex indexes append-only log files into a time-ordered, " +
			"searchable view without loading them fully into memory.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := ui.ModelOptions{
				Filepaths:   args,
				CacheFile:   cacheFlag,
				SliceRange:  sliceFlag,
				GotoTime:    timeFlag,
				Consolidate: consolidateFlag,
			}

			model, err := ui.NewModelWithOptions(opts)
			if err != nil {
				return err
			}
			defer model.Close()

			p := tea.NewProgram(model, tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}

	root.Flags().BoolVarP(&cacheFlag, "cache", "c", false, "cache file locally (useful for network files)")
	root.Flags().StringVarP(&sliceFlag, "slice", "S", "", "slice range on open (e.g. 1000-5000, 100-$, .-500)")
	root.Flags().StringVarP(&timeFlag, "time", "t", "", "go to time on open (e.g. 14:00, 14:30:00)")
	root.Flags().BoolVar(&consolidateFlag, "merge", false, "merge all given files into a single tailed view")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
