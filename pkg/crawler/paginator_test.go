package crawler

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"weibocrawl/internal/testserver"
	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/models"
	"weibocrawl/pkg/storage"
)

func TestPaginatorExpandsLongText(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPage("123", 1, testserver.JSON(`{"ok":1,"data":{"list":[{"id":5,"mblogid":"abc","isLongText":true,"text_raw":"short","created_at":"t","comments_count":1,"reposts_count":0,"attitudes_count":2}]}}`))
	h.srv.SetLongText("abc", testserver.JSON(`{"ok":1,"data":{"longTextContent":"full text"}}`))

	stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "123")
	require.NoError(t, err)

	rows := readRows(t, storage.PostTable(h.settings.BaseDir, "123").Path)
	require.Len(t, rows, 2)
	assert.Equal(t, models.PostHeader, rows[0])
	assert.Equal(t, []string{"5", "t", "full text", "1", "0", "2"}, rows[1])

	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 1, stats.Saved)
	assert.Equal(t, 1, stats.Expanded)
	assert.Equal(t, StopNotOK, stats.Stop)
	assert.Equal(t, 1, h.waiter.waitsFor(testLongTextDelay))
}

func TestPaginatorStopsOnNotOKFirstPage(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPage("999", 1, testserver.NotOK)
	h.srv.SetPage("999", 2, testserver.JSON(testserver.PageBody(testserver.Item{ID: "1", Text: "never"})))

	stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "999")
	require.NoError(t, err)

	assert.Equal(t, 1, h.srv.ListingCalls("999"))
	assert.Equal(t, 0, h.srv.PageCalls("999", 2))
	assert.Equal(t, StopNotOK, stats.Stop)
	assert.Equal(t, 0, stats.Saved)
	assert.Equal(t, crawlerrors.KindTransientAPI, crawlerrors.KindOf(stats.Err))

	_, statErr := os.Stat(storage.PostTable(h.settings.BaseDir, "999").Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPaginatorHaltsAtFailingPage(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPage("1", 1, testserver.JSON(testserver.PageBody(testserver.Item{ID: "11"}, testserver.Item{ID: "12"})))
	h.srv.SetPage("1", 2, testserver.JSON(testserver.PageBody(testserver.Item{ID: "21"})))
	h.srv.SetPage("1", 3, testserver.JSON(`{"ok":0,"msg":"expired"}`))
	h.srv.SetPage("1", 4, testserver.JSON(testserver.PageBody(testserver.Item{ID: "41"})))

	stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, 1, h.srv.PageCalls("1", 3))
	assert.Equal(t, 0, h.srv.PageCalls("1", 4))
	assert.Equal(t, 2, stats.Pages)
	assert.Equal(t, []string{"11", "12", "21"}, storedIDs(t, storage.PostTable(h.settings.BaseDir, "1").Path))
	assert.True(t, h.log.HasMessage("Listing page not ok, stopping pagination"))
}

func TestPaginatorStopsOnHTTPStatus(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPage("1", 1, testserver.Reply{Status: http.StatusForbidden, Body: testserver.PageBody(testserver.Item{ID: "1"})})

	stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, StopHTTPStatus, stats.Stop)
	assert.Equal(t, http.StatusForbidden, stats.Status)
	assert.Equal(t, 0, stats.Saved)
	assert.Equal(t, 0, h.srv.PageCalls("1", 2))
}

func TestPaginatorSkipsStoredPostsWithoutLongText(t *testing.T) {
	h := newHarness(t)
	table := storage.PostTable(h.settings.BaseDir, "1")
	require.NoError(t, storage.NewManager().Append(table, models.PostRecord{ID: "5", Text: "old"}.Row()))

	h.srv.SetPage("1", 1, testserver.JSON(testserver.PageBody(
		testserver.Item{ID: "5", Text: "short", MblogID: "abc", LongText: true},
		testserver.Item{ID: "6", Text: "new"},
	)))
	h.srv.SetLongText("abc", testserver.JSON(testserver.LongTextBody("full text")))

	stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, 0, h.srv.LongTextCalls("abc"))
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Saved)

	rows := readRows(t, table.Path)
	require.Len(t, rows, 3)
	assert.Equal(t, "old", rows[1][2])
	assert.Equal(t, "6", rows[2][0])
}

func TestPaginatorContinuesPastDuplicatePage(t *testing.T) {
	h := newHarness(t)
	table := storage.PostTable(h.settings.BaseDir, "1")
	require.NoError(t, storage.NewManager().Append(table, models.PostRecord{ID: "5"}.Row()))

	h.srv.SetPage("1", 1, testserver.JSON(testserver.PageBody(testserver.Item{ID: "5"})))
	h.srv.SetPage("1", 2, testserver.JSON(testserver.PageBody(testserver.Item{ID: "4"})))

	stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, 1, h.srv.PageCalls("1", 2))
	assert.Equal(t, []string{"5", "4"}, storedIDs(t, table.Path))
	assert.Equal(t, 2, stats.Pages)
}

func TestPaginatorDeduplicatesWithinRun(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPage("1", 1, testserver.JSON(testserver.PageBody(testserver.Item{ID: "7"}, testserver.Item{ID: "8"})))
	h.srv.SetPage("1", 2, testserver.JSON(testserver.PageBody(testserver.Item{ID: "8"}, testserver.Item{ID: "9"})))

	stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, []string{"7", "8", "9"}, storedIDs(t, storage.PostTable(h.settings.BaseDir, "1").Path))
	assert.Equal(t, 1, stats.Skipped)
}

func TestPaginatorMaxPages(t *testing.T) {
	h := newHarness(t)
	h.settings.MaxPages = 2
	for page := 1; page <= 3; page++ {
		h.srv.SetPage("1", page, testserver.JSON(testserver.PageBody(testserver.Item{ID: strings.Repeat("1", page)})))
	}

	stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
	require.NoError(t, err)

	assert.Equal(t, StopMaxPages, stats.Stop)
	assert.Equal(t, 0, h.srv.PageCalls("1", 3))
	assert.Equal(t, 2, stats.Saved)
}

func TestPaginatorEmptyPage(t *testing.T) {
	tests := []struct {
		name      string
		stopEmpty bool
		wantStop  StopReason
		wantPage2 int
	}{
		{"continues by default", false, StopNotOK, 1},
		{"stops when enabled", true, StopEmpty, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.settings.StopOnEmptyPage = tt.stopEmpty
			h.srv.SetPage("1", 1, testserver.JSON(testserver.PageBody()))
			h.srv.SetPage("1", 2, testserver.NotOK)

			stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
			require.NoError(t, err)

			assert.Equal(t, tt.wantStop, stats.Stop)
			assert.Equal(t, tt.wantPage2, h.srv.PageCalls("1", 2))
		})
	}
}

func TestPaginatorWaitsBeforeEveryPage(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPage("1", 1, testserver.JSON(testserver.PageBody(testserver.Item{ID: "1"})))
	h.srv.SetPage("1", 2, testserver.JSON(testserver.PageBody(testserver.Item{ID: "2"})))

	_, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
	require.NoError(t, err)

	// three page requests, each preceded by a wait
	assert.Equal(t, 3, h.waiter.waitsFor(testPageDelay))
	assert.Equal(t, []int{0, 1, 2}, h.waiter.callsAtWait)
}

func TestPaginatorLongTextFallback(t *testing.T) {
	tests := []struct {
		name     string
		reply    *testserver.Reply
		mblogID  string
		wantCall int
	}{
		{"not ok", &testserver.NotOK, "abc", 1},
		{"server error", &testserver.Reply{Status: http.StatusBadGateway, Body: "bad"}, "abc", 1},
		{"missing content", &testserver.Reply{Status: http.StatusOK, Body: `{"ok":1,"data":{}}`}, "abc", 1},
		{"no mblogid", nil, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.srv.SetPage("1", 1, testserver.JSON(testserver.PageBody(
				testserver.Item{ID: "5", Text: "short", MblogID: tt.mblogID, LongText: true},
			)))
			if tt.reply != nil {
				h.srv.SetLongText(tt.mblogID, *tt.reply)
			}

			stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
			require.NoError(t, err)

			assert.Equal(t, tt.wantCall, h.srv.LongTextCalls(tt.mblogID))
			assert.Equal(t, 0, stats.Expanded)
			rows := readRows(t, storage.PostTable(h.settings.BaseDir, "1").Path)
			require.Len(t, rows, 2)
			assert.Equal(t, "short", rows[1][2])
		})
	}
}

func TestPaginatorSendsAccountHeaders(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPage("42", 1, testserver.JSON(testserver.PageBody(testserver.Item{ID: "1", MblogID: "m", LongText: true})))
	h.srv.SetLongText("m", testserver.JSON(testserver.LongTextBody("long")))

	_, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "42")
	require.NoError(t, err)

	reqs := h.srv.Requests()
	require.Len(t, reqs, 3)
	for _, r := range reqs {
		assert.Equal(t, h.srv.URL()+"/u/42", r.Referer)
		assert.Equal(t, "xsrf-token", r.XSRF)
		assert.Contains(t, r.Cookie, "SUB=sub-cookie")
	}
}

func TestPaginatorStorageFailureAborts(t *testing.T) {
	h := newHarness(t)
	h.deps.Store = failingStore{h.store}
	h.srv.SetPage("1", 1, testserver.JSON(testserver.PageBody(testserver.Item{ID: "1"}, testserver.Item{ID: "2"})))
	h.srv.SetPage("1", 2, testserver.JSON(testserver.PageBody(testserver.Item{ID: "3"})))

	stats, err := NewPostPaginator(h.deps, h.settings).Run(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, crawlerrors.IsFatal(err))
	assert.Equal(t, StopAborted, stats.Stop)
	assert.Equal(t, 0, h.srv.PageCalls("1", 2))
}

func TestPaginatorRejectsAccountIDOutsideOutput(t *testing.T) {
	h := newHarness(t)
	settings := h.settings
	settings.BaseDir = filepath.Join(t.TempDir(), "a", "b")
	h.srv.SetPage("../../escaped", 1, testserver.JSON(testserver.PageBody(testserver.Item{ID: "1", Text: "x"})))

	stats, err := NewPostPaginator(h.deps, settings).Run(context.Background(), "../../escaped")
	require.Error(t, err)
	assert.Equal(t, crawlerrors.KindConfiguration, crawlerrors.KindOf(err))
	assert.Equal(t, StopAborted, stats.Stop)
	assert.Equal(t, 0, h.srv.TotalCalls())

	_, statErr := os.Stat(filepath.Join(settings.BaseDir, "..", "..", "escaped.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPaginatorCancelled(t *testing.T) {
	h := newHarness(t)
	h.srv.SetPage("1", 1, testserver.JSON(testserver.PageBody(testserver.Item{ID: "1"})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := NewPostPaginator(h.deps, h.settings).Run(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StopAborted, stats.Stop)
	assert.Equal(t, 0, h.srv.TotalCalls())
}
