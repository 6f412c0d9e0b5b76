package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/samber/lo"
	"weibocrawl/pkg/crawler"
	"weibocrawl/pkg/journal"
)

// SummaryTable renders one row per account with its profile outcome and
// pagination numbers. A phase that did not run shows "-".
func SummaryTable(s crawler.Summary) string {
	profiles := lo.KeyBy(s.Profiles, func(r crawler.ProfileResult) string { return r.AccountID })
	posts := lo.KeyBy(s.Posts, func(p crawler.PostStats) string { return p.AccountID })

	ids := lo.Uniq(append(
		lo.Map(s.Profiles, func(r crawler.ProfileResult, _ int) string { return r.AccountID }),
		lo.Map(s.Posts, func(p crawler.PostStats, _ int) string { return p.AccountID })...,
	))

	rows := lo.Map(ids, func(id string, _ int) []string {
		row := []string{id, "-", "-", "-", "-", "-", "-"}
		if r, ok := profiles[id]; ok {
			row[1] = r.Outcome
		}
		if p, ok := posts[id]; ok {
			row[2] = strconv.Itoa(p.Pages)
			row[3] = strconv.Itoa(p.Saved)
			row[4] = strconv.Itoa(p.Skipped)
			row[5] = strconv.Itoa(p.Expanded)
			row[6] = string(p.Stop)
		}
		return row
	})

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("ACCOUNT", "PROFILE", "PAGES", "SAVED", "SKIPPED", "EXPANDED", "STOP").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(rows) && rows[row][1] == journal.ProfileFailed {
				return failedCellStyle
			}
			return cellStyle
		})

	return t.String()
}

// PrintSummary prints the per-account table and the run totals
func PrintSummary(s crawler.Summary) {
	if IsQuietMode() {
		return
	}

	totals := s.Totals()
	emit(false, SummaryTable(s))
	PrintInfo("Profiles", fmt.Sprintf("%d saved, %d skipped, %d failed",
		totals.ProfilesSaved, totals.ProfilesSkipped, totals.ProfilesFailed))
	PrintInfo("Posts", fmt.Sprintf("%d saved, %d skipped, %d expanded over %d pages",
		totals.PostsSaved, totals.PostsSkipped, totals.PostsExpanded, totals.Pages))
}
