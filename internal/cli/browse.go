package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/feedsync/internal/control"
	"github.com/vietddude/feedsync/internal/core/domain"
	"github.com/vietddude/feedsync/internal/core/paging"
)

var (
	pages   int
	viewer  string
	refresh bool
)

var postsCmd = &cobra.Command{
	Use:   "posts [creator]",
	Short: "Page through a creator's posts, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		browse(func(app *control.App) control.Collection[domain.Post] {
			return app.Feed().Posts(args[0], viewer)
		}, printPosts)
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments [post_id]",
	Short: "Page through the comments on a post, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseIDArg(args[0])
		browse(func(app *control.App) control.Collection[domain.Comment] {
			return app.Feed().Comments(id)
		}, printComments)
	},
}

var repliesCmd = &cobra.Command{
	Use:   "replies [comment_id]",
	Short: "Page through the replies to a comment, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseIDArg(args[0])
		browse(func(app *control.App) control.Collection[domain.Comment] {
			return app.Feed().Replies(id)
		}, printComments)
	},
}

var likesCmd = &cobra.Command{
	Use:   "likes [wallet...]",
	Short: "Scan likes received on the wallets' posts, newest first",
	Long: `Scan likes received on each wallet's posts. Wallets are visited in order through a
single view, so switching wallets drops the previous wallet's loaded pages. The
checkpoint of every wallet is persisted to the configured cache.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runLikes,
}

func init() {
	for _, c := range []*cobra.Command{postsCmd, commentsCmd, repliesCmd, likesCmd} {
		c.Flags().IntVar(&pages, "pages", 1, "number of pages to load")
		rootCmd.AddCommand(c)
	}
	postsCmd.Flags().StringVar(&viewer, "viewer", "", "wallet whose likes fill liked_by_viewer")
	likesCmd.Flags().BoolVar(&refresh, "refresh", false, "scan blocks newer than the checkpoint first")
}

func parseIDArg(s string) uint64 {
	id, err := control.ParseID(s)
	if err != nil {
		slog.Error("Invalid id", "error", err)
		os.Exit(1)
	}
	return id
}

func browse[T any](build func(app *control.App) control.Collection[T], show func(io.Writer, []T)) {
	ctx := context.Background()
	app := newApp(ctx)
	defer app.Close()

	s, err := loadPages[T](ctx, build(app))
	if err != nil {
		slog.Error("Failed to load page", "error", err)
		os.Exit(1)
	}
	report(s, show)
}

type pager[T any] interface {
	Next(ctx context.Context) (paging.State[T], error)
}

func loadPages[T any](ctx context.Context, c pager[T]) (paging.State[T], error) {
	var s paging.State[T]
	for i := 0; i < max(1, pages); i++ {
		var err error
		s, err = c.Next(ctx)
		if err != nil || s.IsExhausted {
			return s, err
		}
	}
	return s, nil
}

func runLikes(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	app := newApp(ctx)
	defer app.Close()

	view := control.NewView("likes", func(wallet string) (control.Collection[domain.LikeEvent], error) {
		c, err := app.Feed().Likes(wallet)
		if err != nil {
			return nil, err
		}
		return c, nil
	})

	failed := false
	for _, wallet := range args {
		if err := view.Switch(wallet); err != nil {
			slog.Error("Skipping wallet", "wallet", wallet, "error", err)
			failed = true
			continue
		}

		var s paging.State[domain.LikeEvent]
		var err error
		if refresh {
			s, err = view.Refresh(ctx)
		} else {
			s, err = loadPages[domain.LikeEvent](ctx, view)
		}
		if err != nil && !errors.Is(err, control.ErrStaleFilter) {
			slog.Error("Failed to load likes", "wallet", wallet, "error", err)
			failed = true
		}

		fmt.Printf("== %s\n", domain.NormalizeAddress(wallet))
		report(s, printLikes)
	}
	if failed {
		os.Exit(1)
	}
}

func report[T any](s paging.State[T], show func(io.Writer, []T)) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	show(w, s.Items)
	_ = w.Flush()

	total := "unknown"
	if s.TotalKnown {
		total = fmt.Sprint(s.Total)
	}
	fmt.Printf("\nloaded=%d total=%s cursor=%d exhausted=%v\n", len(s.Items), total, s.Cursor, s.IsExhausted)
}

func printPosts(w io.Writer, posts []domain.Post) {
	_, _ = fmt.Fprintln(w, "ID\tCREATOR\tLIKES\tCOMMENTS\tLIKED\tCONTENT")
	for _, p := range posts {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%v\t%s\n",
			p.ID, p.Creator, p.LikeCount, p.CommentCount, p.LikedByViewer, p.ContentCID)
	}
}

func printComments(w io.Writer, comments []domain.Comment) {
	_, _ = fmt.Fprintln(w, "ID\tPOST\tPARENT\tAUTHOR\tLIKES\tTEXT")
	for _, c := range comments {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%d\t%s\n",
			c.ID, c.PostID, c.ParentID, c.Author, c.LikeCount, c.Text)
	}
}

func printLikes(w io.Writer, likes []domain.LikeEvent) {
	_, _ = fmt.Fprintln(w, "BLOCK\tPOST\tLIKER\tTX")
	for _, e := range likes {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", e.Block, e.PostID, e.Liker, e.TxHash)
	}
}
