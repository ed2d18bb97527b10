package cli

import (
	"github.com/rcliao/docmap/internal/library"
	"github.com/rcliao/docmap/internal/model"
	"github.com/rcliao/docmap/internal/store"
	"github.com/spf13/cobra"
)

// dump is the export format: collection name to documents.
type dump map[string][]model.Document

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export documents as JSON",
		Long:  "Export raw documents as JSON, keyed by collection. Restrict to one collection with -c.",
		Run:   runExport,
	}

	cmd.Flags().StringP("collection", "c", "", "Only export this collection")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	only, _ := cmd.Flags().GetString("collection")

	s := openSession(cmd)
	defer s.Close()

	names := []string{library.AuthorsCollection, library.BooksCollection}
	if only != "" {
		names = []string{only}
	}

	out := dump{}
	for _, name := range names {
		docs, err := store.Export(cmd.Context(), s.store.Collection(name))
		if err != nil {
			exitErr("export", err)
		}
		if docs == nil {
			docs = []model.Document{}
		}
		out[name] = docs
	}
	printJSON(out)
}
