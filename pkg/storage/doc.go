// Package storage persists crawl results as append-only CSV tables.
//
// Each Table is keyed by its first column. The Manager answers "is this key
// already stored" and appends new rows; it never updates or deletes. Files
// are created with a UTF-8 byte order mark and a header row so spreadsheet
// tools open them with the right encoding.
//
// Usage:
//
//	store := storage.NewManager()
//	table := storage.ProfileTable("./weibo")
//
//	exists, err := store.Exists(table, "1669879400")
//	if err != nil {
//	    return err
//	}
//	if !exists {
//	    err = store.Append(table, record.Row())
//	}
//
// Every failure is returned as a storage_io error from pkg/errors.
package storage
