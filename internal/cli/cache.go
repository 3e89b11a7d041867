package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear persisted like checkpoints",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show [wallet...]",
	Short: "Show the persisted like checkpoint of each wallet",
	Args:  cobra.MinimumNArgs(1),
	Run:   runCacheShow,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [wallet...]",
	Short: "Delete the persisted like checkpoint of each wallet",
	Args:  cobra.MinimumNArgs(1),
	Run:   runCacheClear,
}

func init() {
	cacheCmd.AddCommand(cacheShowCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheShow(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	app := newApp(ctx)
	defer app.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "KEY\tSCANNED THROUGH\tCURSOR\tENTRIES\tNEWEST BLOCK")

	for _, wallet := range args {
		key := app.LikesKey(wallet)
		cp, err := app.LikeCache().Load(ctx, key)
		if err != nil {
			slog.Error("Failed to read checkpoint", "key", key, "error", err)
			continue
		}
		if cp == nil {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t0\t-\n", key)
			continue
		}
		newest := "-"
		if len(cp.Entries) > 0 {
			newest = fmt.Sprint(cp.Entries[0].Block)
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", key, cp.ScannedThrough, cp.Cursor, len(cp.Entries), newest)
	}
	_ = w.Flush()
}

func runCacheClear(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	app := newApp(ctx)
	defer app.Close()

	for _, wallet := range args {
		key := app.LikesKey(wallet)
		if err := app.LikeCache().Delete(ctx, key); err != nil {
			slog.Error("Failed to clear checkpoint", "key", key, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Cleared %s\n", key)
	}
}
