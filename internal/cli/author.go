package cli

import (
	"fmt"

	"github.com/rcliao/docmap/internal/library"
	"github.com/spf13/cobra"
)

type bookRef struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
}

type authorView struct {
	*library.Author
	Books []bookRef `json:"books,omitempty"`
}

func init() {
	authorCmd := &cobra.Command{
		Use:   "author",
		Short: "Manage authors",
	}

	put := &cobra.Command{
		Use:   "put",
		Short: "Create an author, or update one with --key",
		Run:   runAuthorPut,
	}
	put.Flags().StringP("key", "k", "", "Key of an existing author to update")
	put.Flags().String("name", "", "Author name")
	put.Flags().String("bio", "", "Short biography")

	get := &cobra.Command{
		Use:   "get <key>",
		Short: "Show an author and their books",
		Args:  cobra.ExactArgs(1),
		Run:   runAuthorGet,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List authors",
		Run:   runAuthorList,
	}

	authorCmd.AddCommand(put, get, list)
	RootCmd.AddCommand(authorCmd)
}

func runAuthorPut(cmd *cobra.Command, args []string) {
	key, _ := cmd.Flags().GetString("key")
	name, _ := cmd.Flags().GetString("name")
	bio, _ := cmd.Flags().GetString("bio")

	s := openSession(cmd)
	defer s.Close()
	ctx := cmd.Context()

	a := &library.Author{}
	if key != "" {
		found := false
		var err error
		a, found, err = s.catalog.Authors.ByKey(ctx, key)
		if err != nil {
			exitErr("author put", err)
		}
		if !found {
			exitErr("author put", fmt.Errorf("no author with key %q", key))
		}
	}
	if cmd.Flags().Changed("name") {
		a.Name = name
	}
	if cmd.Flags().Changed("bio") {
		a.Bio = bio
	}

	if err := s.catalog.Authors.Save(ctx, a); err != nil {
		exitErr("author put", err)
	}
	printJSON(a)
}

func runAuthorGet(cmd *cobra.Command, args []string) {
	s := openSession(cmd)
	defer s.Close()
	ctx := cmd.Context()

	a, found, err := s.catalog.Authors.ByKey(ctx, args[0])
	if err != nil {
		exitErr("author get", err)
	}
	if !found {
		exitErr("author get", fmt.Errorf("no author with key %q", args[0]))
	}

	view := authorView{Author: a}
	err = a.Books.Each(ctx, func(b *library.Book) error {
		view.Books = append(view.Books, bookRef{Key: b.GetKey(), Title: b.Title, Year: b.Year})
		return nil
	})
	if err != nil {
		exitErr("author get", err)
	}
	printJSON(view)
}

func runAuthorList(cmd *cobra.Command, args []string) {
	s := openSession(cmd)
	defer s.Close()

	authors, err := s.catalog.Authors.All(cmd.Context())
	if err != nil {
		exitErr("author list", err)
	}
	printJSON(authors)
}
