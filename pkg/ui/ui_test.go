package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"weibocrawl/pkg/crawler"
	"weibocrawl/pkg/journal"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		SetQuietMode(false)
	})
	return &buf
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetQuietMode(true)

	PrintLogo()
	PrintInfo("Accounts", "3")
	PrintSuccess("done")
	PrintWarning("careful")
	PrintError("Crawl failed", "disk full")

	assert.NotContains(t, buf.String(), "Accounts")
	assert.NotContains(t, buf.String(), "done")
	assert.Contains(t, buf.String(), "Crawl failed: disk full")
}

func TestPrintInfo(t *testing.T) {
	buf := captureOutput(t)

	PrintInfo("Output", "./weibo")
	PrintWarning("Cookie expired", 403)

	assert.Contains(t, buf.String(), "Output")
	assert.Contains(t, buf.String(), "./weibo")
	assert.Contains(t, buf.String(), "Cookie expired: 403")
}

func TestSummaryTable(t *testing.T) {
	s := crawler.Summary{
		Profiles: []crawler.ProfileResult{
			{AccountID: "111", Outcome: journal.ProfileSaved},
			{AccountID: "222", Outcome: journal.ProfileFailed},
		},
		Posts: []crawler.PostStats{
			{AccountID: "111", Pages: 4, Saved: 37, Skipped: 2, Expanded: 5, Stop: crawler.StopNotOK},
		},
	}

	out := SummaryTable(s)
	for _, want := range []string{"ACCOUNT", "111", "222", "saved", "failed", "37", "not_ok"} {
		assert.Contains(t, out, want)
	}
}

func TestPrintSummaryTotals(t *testing.T) {
	buf := captureOutput(t)

	PrintSummary(crawler.Summary{
		Posts: []crawler.PostStats{
			{AccountID: "1", Pages: 2, Saved: 10, Stop: crawler.StopMaxPages},
			{AccountID: "2", Pages: 1, Saved: 3, Skipped: 4, Stop: crawler.StopEmpty},
		},
	})

	assert.Contains(t, buf.String(), "13 saved, 4 skipped, 0 expanded over 3 pages")
}
