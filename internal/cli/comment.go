package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rcliao/docmap/internal/library"
	"github.com/spf13/cobra"
)

func init() {
	commentCmd := &cobra.Command{
		Use:   "comment",
		Short: "Manage book comments",
	}

	add := &cobra.Command{
		Use:   "add <book-key> [text]",
		Short: "Add a comment to a book",
		Long:  "Add a comment to a book. Text can be positional args or piped via stdin.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runCommentAdd,
	}
	add.Flags().String("by", "", "Comment author")

	commentCmd.AddCommand(add)
	RootCmd.AddCommand(commentCmd)
}

func runCommentAdd(cmd *cobra.Command, args []string) {
	by, _ := cmd.Flags().GetString("by")

	var body string
	if len(args) > 1 {
		body = strings.Join(args[1:], " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			body = string(b)
		}
	}
	if strings.TrimSpace(body) == "" {
		exitErr("comment add", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	s := openSession(cmd)
	defer s.Close()
	ctx := cmd.Context()

	b, err := s.catalog.AddComment(ctx, args[0], &library.Comment{Body: strings.TrimSpace(body), By: by})
	if err != nil {
		exitErr("comment add", err)
	}
	v, err := viewBook(ctx, b, false)
	if err != nil {
		exitErr("comment add", err)
	}
	printJSON(v)
}
