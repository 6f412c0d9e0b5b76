// Package journal keeps a small JSON record of the last crawl run.
//
// The journal lives at <output>/journal.json and is rewritten atomically
// after every account so that an interrupted run still shows which accounts
// were processed and why pagination stopped for each of them. A stop reason
// of not_ok or http_status on every account usually means the session
// cookies expired.
//
// The journal is diagnostic only. Deduplication is driven by the CSV tables,
// never by the journal.
package journal
