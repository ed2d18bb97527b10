package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rcliao/docmap/internal/library"
	"github.com/spf13/cobra"
)

type bookView struct {
	*library.Book
	AuthorID   string `json:"author_id,omitempty"`
	AuthorName string `json:"author,omitempty"`
}

func viewBook(ctx context.Context, b *library.Book, resolve bool) (bookView, error) {
	v := bookView{Book: b}
	v.AuthorID, _ = b.Author.Key()
	if !resolve {
		return v, nil
	}
	a, found, err := b.Author.Get(ctx)
	if err != nil {
		return v, err
	}
	if found {
		v.AuthorName = a.Name
	}
	return v, nil
}

func init() {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Manage books",
	}

	put := &cobra.Command{
		Use:   "put",
		Short: "Create a book, or update one with --key",
		Run:   runBookPut,
	}
	put.Flags().StringP("key", "k", "", "Key of an existing book to update")
	put.Flags().String("title", "", "Book title")
	put.Flags().Int("year", 0, "Publication year")
	put.Flags().StringP("author", "a", "", "Author key (empty string clears the author)")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a book with its author and comments",
		Args:  cobra.ExactArgs(1),
		Run:   runBookGet,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List books",
		Run:   runBookList,
	}
	list.Flags().StringP("author", "a", "", "Only books by this author key")
	list.Flags().Bool("keys-only", false, "Only output keys")

	bookCmd.AddCommand(put, get, list)
	RootCmd.AddCommand(bookCmd)
}

func runBookPut(cmd *cobra.Command, args []string) {
	key, _ := cmd.Flags().GetString("key")
	title, _ := cmd.Flags().GetString("title")
	year, _ := cmd.Flags().GetInt("year")
	authorKey, _ := cmd.Flags().GetString("author")

	s := openSession(cmd)
	defer s.Close()
	ctx := cmd.Context()

	b := &library.Book{}
	if key != "" {
		found := false
		var err error
		b, found, err = s.catalog.Books.ByKey(ctx, key)
		if err != nil {
			exitErr("book put", err)
		}
		if !found {
			exitErr("book put", fmt.Errorf("no book with key %q", key))
		}
	}
	if cmd.Flags().Changed("title") {
		b.Title = title
	}
	if cmd.Flags().Changed("year") {
		b.Year = year
	}
	if cmd.Flags().Changed("author") {
		if authorKey == "" {
			b.Author.Clear()
		} else {
			a, found, err := s.catalog.Authors.ByKey(ctx, authorKey)
			if err != nil {
				exitErr("book put", err)
			}
			if !found {
				exitErr("book put", fmt.Errorf("no author with key %q", authorKey))
			}
			b.Author.Set(a)
		}
	}
	if b.Title == "" {
		exitErr("book put", fmt.Errorf("--title is required"))
	}

	if err := s.catalog.Books.Save(ctx, b); err != nil {
		exitErr("book put", err)
	}
	v, err := viewBook(ctx, b, false)
	if err != nil {
		exitErr("book put", err)
	}
	printJSON(v)
}

func runBookGet(cmd *cobra.Command, args []string) {
	s := openSession(cmd)
	defer s.Close()
	ctx := cmd.Context()

	b, found, err := s.catalog.Books.ByKey(ctx, args[0])
	if err != nil {
		exitErr("book get", err)
	}
	if !found {
		exitErr("book get", fmt.Errorf("no book with key %q", args[0]))
	}
	v, err := viewBook(ctx, b, true)
	if err != nil {
		exitErr("book get", err)
	}
	printJSON(v)
}

func runBookList(cmd *cobra.Command, args []string) {
	authorKey, _ := cmd.Flags().GetString("author")
	keysOnly, _ := cmd.Flags().GetBool("keys-only")

	s := openSession(cmd)
	defer s.Close()
	ctx := cmd.Context()

	var (
		books []*library.Book
		err   error
	)
	if authorKey != "" {
		books, err = s.catalog.BooksBy(ctx, authorKey)
	} else {
		books, err = s.catalog.Books.All(ctx)
	}
	if err != nil {
		exitErr("book list", err)
	}

	if keysOnly {
		for _, b := range books {
			fmt.Println(b.GetKey())
		}
		return
	}

	views := make([]bookView, 0, len(books))
	for _, b := range books {
		v, err := viewBook(ctx, b, true)
		if err != nil {
			exitErr("book list", err)
		}
		views = append(views, v)
	}
	printJSON(views)
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
