package cli

import (
	"fmt"

	"github.com/rcliao/docmap/internal/library"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <authors|books> <key>",
		Short: "Delete an author or a book",
		Long: "Delete an author or a book. Deleting an author leaves its books in place; " +
			"their author_id keeps pointing at the deleted key.",
		Args: cobra.ExactArgs(2),
		Run:  runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	coll, key := args[0], args[1]

	s := openSession(cmd)
	defer s.Close()
	ctx := cmd.Context()

	var err error
	switch coll {
	case library.AuthorsCollection:
		var a *library.Author
		var found bool
		if a, found, err = s.catalog.Authors.ByKey(ctx, key); err == nil && found {
			err = s.catalog.Authors.Delete(ctx, a)
		} else if err == nil {
			err = fmt.Errorf("no author with key %q", key)
		}
	case library.BooksCollection:
		var b *library.Book
		var found bool
		if b, found, err = s.catalog.Books.ByKey(ctx, key); err == nil && found {
			err = s.catalog.Books.Delete(ctx, b)
		} else if err == nil {
			err = fmt.Errorf("no book with key %q", key)
		}
	default:
		err = fmt.Errorf("unknown collection %q (want %s or %s)", coll, library.AuthorsCollection, library.BooksCollection)
	}
	if err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"collection":%q,"key":%q}`+"\n", coll, key)
}
