package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"weibocrawl/pkg/config"
	"weibocrawl/pkg/journal"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/storage"
	"weibocrawl/pkg/ui"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the last crawl did",
	Long: `Show the run journal of the output directory: when the last crawl ran,
whether it completed, and the outcome for every account. Also counts the
records stored so far.`,
	Args: cobra.NoArgs,
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory (default: ./weibo)")
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile, map[string]interface{}{"output": outputDir})
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		os.Exit(1)
	}

	if err := printStatus(os.Stdout, cfg.Output.BaseDirectory); err != nil {
		ui.PrintError("Failed to read status", err.Error())
		os.Exit(1)
	}
}

// printStatus writes the journal and stored record counts of baseDir
func printStatus(w io.Writer, baseDir string) error {
	j, err := journal.NewManager(baseDir, logger.GetLogger()).Load()
	if err != nil {
		return err
	}

	store := storage.NewManager()
	profiles, err := store.Count(storage.ProfileTable(baseDir))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Output: %s\n", baseDir)
	fmt.Fprintf(w, "Profiles stored: %d\n", profiles)

	if j == nil {
		fmt.Fprintln(w, "No run journal found")
		return nil
	}

	state := "incomplete"
	if j.Completed {
		state = "completed"
	} else if j.FinishedAt == nil {
		state = "interrupted"
	}
	fmt.Fprintf(w, "Last run: %s (%s)\n", j.StartedAt.Format(time.DateTime), state)
	if j.FinishedAt != nil {
		fmt.Fprintf(w, "Duration: %s\n", j.FinishedAt.Sub(j.StartedAt).Round(time.Second))
	}
	fmt.Fprintln(w)

	for _, id := range j.AccountIDs() {
		a := j.Accounts[id]
		posts, err := store.Count(storage.PostTable(baseDir, id))
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "%s  stored posts: %d\n", id, posts)
		if a.Profile != "" {
			fmt.Fprintf(w, "  profile: %s", a.Profile)
			if a.ProfileError != "" {
				fmt.Fprintf(w, " (%s)", a.ProfileError)
			}
			fmt.Fprintln(w)
		}
		if p := a.Posts; p != nil {
			fmt.Fprintf(w, "  posts: %d saved, %d skipped, %d expanded over %d pages, stopped: %s\n",
				p.Saved, p.Skipped, p.Expanded, p.Pages, p.Stop)
			if p.Error != "" {
				fmt.Fprintf(w, "  error: %s\n", p.Error)
			}
		}
	}
	return nil
}
