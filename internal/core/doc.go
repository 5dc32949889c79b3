// Package core implements the import-and-query pipeline of the finance
// dashboard.
//
// It has no transport dependencies and is shared by the web server, the
// command line tool and the drop-folder watcher.
//
// # Import
//
// A [Source] goes through three steps:
//
//  1. [ValidateSource] accepts a .csv name or a text/csv media type
//  2. [ReadSource] reads the content asynchronously, dropping a BOM and
//     replacing invalid UTF-8
//  3. [Parse] splits the text into a [RecordCollection]
//
// [Service.Import] then saves the collection through a [Persister] under
// [StorageKey] and swaps it into the [Store]. A failed step leaves the Store
// as it was.
//
// Parsing is lenient: short rows are padded with "", long rows are cut, blank
// lines are skipped. Quoting is not supported.
//
// # Query
//
// [ApplyFilter], [ApplySearch] and [ApplySort] are pure functions over a
// collection. [View] composes them in that order for a [QueryState].
// [ToggleSort] gives the next sort when a column header is selected.
//
// # Presentation
//
// [FormatCurrency] and [FormatDate] render cells for display;
// [CellFormatter] applies them by column name.
//
// # Errors
//
// Failures are classified by sentinel ([ErrInvalidFormat], [ErrRead],
// [ErrPersist]) and mapped to user notifications by [Notify].
package core
