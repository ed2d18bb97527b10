package cli

import (
	"github.com/rcliao/docmap/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s := openSession(cmd)
	defer s.Close()

	sum, err := store.Summarize(cmd.Context(), s.cfg.Backend, s.store)
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(sum)
}
