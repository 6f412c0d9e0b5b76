package crawler

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"weibocrawl/internal/testserver"
	crawlerrors "weibocrawl/pkg/errors"
	"weibocrawl/pkg/logger"
	"weibocrawl/pkg/ratelimit"
	"weibocrawl/pkg/storage"
	"weibocrawl/pkg/weibo"
)

// recordingWaiter draws real durations but never sleeps. It notes how many
// requests the server had seen at each wait so tests can check ordering.
type recordingWaiter struct {
	srv    *testserver.Server
	jitter *ratelimit.Jitter

	mu          sync.Mutex
	waits       []ratelimit.Range
	callsAtWait []int
	pauses      []time.Duration
}

func newRecordingWaiter(srv *testserver.Server) *recordingWaiter {
	return &recordingWaiter{
		srv:    srv,
		jitter: ratelimit.NewJitter(ratelimit.WithSleep(ratelimit.NoSleep), ratelimit.WithSeed(7)),
	}
}

func (w *recordingWaiter) Wait(ctx context.Context, r ratelimit.Range) (time.Duration, error) {
	w.mu.Lock()
	w.waits = append(w.waits, r)
	w.callsAtWait = append(w.callsAtWait, w.srv.TotalCalls())
	w.mu.Unlock()
	return w.jitter.Wait(ctx, r)
}

func (w *recordingWaiter) Pause(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.pauses = append(w.pauses, d)
	w.mu.Unlock()
	return w.jitter.Pause(ctx, d)
}

func (w *recordingWaiter) waitsFor(r ratelimit.Range) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, got := range w.waits {
		if got == r {
			n++
		}
	}
	return n
}

// failingStore refuses every append
type failingStore struct {
	*storage.Manager
}

func (f failingStore) Append(t storage.Table, row []string) error {
	return crawlerrors.StorageIO("append row", errors.New("disk full"))
}

type harness struct {
	srv      *testserver.Server
	deps     Deps
	settings Settings
	store    *storage.Manager
	waiter   *recordingWaiter
	log      *logger.TestLogger
}

var (
	testProfileDelay  = ratelimit.Range{Min: 1 * time.Second, Max: 3 * time.Second}
	testPageDelay     = ratelimit.Range{Min: 5 * time.Second, Max: 10 * time.Second}
	testLongTextDelay = ratelimit.Range{Min: 3 * time.Second, Max: 5 * time.Second}
)

func newHarness(t *testing.T) *harness {
	t.Helper()

	srv := testserver.New()
	t.Cleanup(srv.Close)

	log := logger.NewTestLogger()
	client := weibo.NewClient(&weibo.ClientConfig{Timeout: 5 * time.Second, Logger: log})
	t.Cleanup(func() { client.Close() })

	store := storage.NewManager()
	waiter := newRecordingWaiter(srv)

	cookies := map[string]string{"SUB": "sub-cookie", weibo.XSRFCookie: "xsrf-token"}

	return &harness{
		srv:   srv,
		store: store,
		log:   log,
		deps: Deps{
			Client:  client,
			Store:   store,
			Waiter:  waiter,
			Session: weibo.NewSession(cookies, "test-agent", weibo.NewEndpoints(srv.URL())),
			Logger:  log,
		},
		settings: Settings{
			BaseDir:       t.TempDir(),
			MaxPages:      5,
			ProfileDelay:  testProfileDelay,
			PageDelay:     testPageDelay,
			LongTextDelay: testLongTextDelay,
			AccountPause:  10 * time.Second,
		},
		waiter: waiter,
	}
}

// readRows returns every row of a CSV table including the header
func readRows(t *testing.T, path string) [][]string {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

// storedIDs returns the first column of every data row of path
func storedIDs(t *testing.T, path string) []string {
	t.Helper()

	var ids []string
	for _, row := range readRows(t, path)[1:] {
		ids = append(ids, row[0])
	}
	return ids
}
