package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rcliao/docmap/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import documents from JSON",
		Long:  "Import documents from JSON on stdin. Expects the format produced by export. Existing keys are skipped.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	var in dump
	if err := json.Unmarshal(data, &in); err != nil {
		exitErr("parse json", err)
	}

	s := openSession(cmd)
	defer s.Close()

	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)

	imported := 0
	for _, name := range names {
		n, err := store.Import(cmd.Context(), s.store.Collection(name), in[name])
		imported += n
		if err != nil {
			exitErr("import "+name, err)
		}
	}

	fmt.Printf(`{"ok":true,"imported":%d}`+"\n", imported)
}
