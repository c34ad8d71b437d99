package grid

import (
	"sync"

	"go.uber.org/zap"

	"github.com/refbase-dev/refbase-admin/pkg/schema"
	"github.com/refbase-dev/refbase-admin/pkg/sdk"
)

// Options configures a Grid for one reference-data table.
type Options struct {
	Table   schema.TableDef
	Locales []schema.Locale
	// PageSize defaults to 25.
	PageSize int
	// UnknownLabel is the localized placeholder for unresolvable foreign
	// keys. Defaults to "(unknown)".
	UnknownLabel string
	// ActiveOnly narrows the server-side list to active records. The grid's
	// client-side filters still apply on top.
	ActiveOnly bool
	// AllowConcurrentEdits permits one open edit session per row instead of
	// one per grid.
	AllowConcurrentEdits bool
	Logger               *zap.Logger
}

// RowState is the interaction state of a single row.
type RowState int

const (
	RowViewing RowState = iota
	RowEditing
	RowDeletePending
)

// LocaleWarning reports one locale whose translation propagation failed
// while the primary commit succeeded.
type LocaleWarning struct {
	Locale schema.Locale
	Err    error
}

// CommitResult is the outcome of a successful CommitEdit.
type CommitResult struct {
	Record   schema.Record
	Warnings []LocaleWarning
}

// Grid drives the full cycle for one table: load -> filter -> sort ->
// paginate -> visible rows, and routes edit/create/delete intents to the
// master store, reloading after every successful mutation (the store is the
// source of truth for ids and audit-derived values).
//
// A Grid belongs to a single event loop: its methods are not safe for
// concurrent use, except that the in-flight guard is mutex-backed so a
// mutating call racing an ongoing one fails with ErrBusy instead of
// double-submitting.
type Grid struct {
	store sdk.MasterStore
	rctx  schema.RequestContext
	opts  Options
	log   *zap.Logger

	base    []schema.Record
	lookups map[string]schema.LookupTable

	filters    FilterState
	sort       SortSpec
	page       int
	visible    []schema.Record
	matched    int
	totalPages int

	sessions      map[int64]*EditSession
	pendingDelete int64

	busyMu sync.Mutex
	busy   bool
}

// New builds a Grid over store for the table described in opts.
func New(store sdk.MasterStore, rctx schema.RequestContext, opts Options) *Grid {
	if opts.PageSize <= 0 {
		opts.PageSize = 25
	}
	if opts.UnknownLabel == "" {
		opts.UnknownLabel = "(unknown)"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Grid{
		store:    store,
		rctx:     rctx,
		opts:     opts,
		log:      opts.Logger.With(zap.String("table", opts.Table.Name)),
		lookups:  make(map[string]schema.LookupTable),
		filters:  make(FilterState),
		page:     1,
		sessions: make(map[int64]*EditSession),
	}
}

// lookupTables returns the distinct reference tables the columns depend on.
func (g *Grid) lookupTables() []string {
	seen := make(map[string]bool)
	var out []string
	for _, col := range g.opts.Table.Columns {
		if col.Kind == schema.KindID && col.Lookup != "" && !seen[col.Lookup] {
			seen[col.Lookup] = true
			out = append(out, col.Lookup)
		}
	}
	return out
}

// Load fetches the record collection and every lookup table it depends on
// concurrently. A failed record fetch keeps the last-known-good rows and
// returns the error. Failed lookups degrade to empty tables (labels render
// as the unknown placeholder) and are reported through a *PartialLoadError
// after the grid state is updated.
func (g *Grid) Load() error {
	tables := g.lookupTables()

	var (
		wg      sync.WaitGroup
		records []schema.Record
		recErr  error
		fetched = make([]schema.LookupTable, len(tables))
		lkErrs  = make([]error, len(tables))
	)
	wg.Add(1 + len(tables))
	go func() {
		defer wg.Done()
		records, recErr = g.store.List(g.rctx, g.opts.Table.Name, schema.ListParams{ActiveOnly: g.opts.ActiveOnly})
	}()
	for i, table := range tables {
		go func(i int, table string) {
			defer wg.Done()
			fetched[i], lkErrs[i] = g.store.ResolveLookup(g.rctx, table)
		}(i, table)
	}
	wg.Wait()

	if recErr != nil {
		g.log.Error("record load failed", zap.Error(recErr))
		return recErr
	}

	failed := make(map[string]error)
	lookups := make(map[string]schema.LookupTable, len(tables))
	for i, table := range tables {
		if lkErrs[i] != nil {
			g.log.Warn("lookup load failed", zap.String("lookup", table), zap.Error(lkErrs[i]))
			failed[table] = lkErrs[i]
			lookups[table] = nil
			continue
		}
		lookups[table] = fetched[i]
	}

	g.base = records
	g.lookups = lookups
	g.recompute()
	g.log.Debug("loaded", zap.Int("records", len(records)), zap.Int("lookups", len(tables)-len(failed)))

	if len(failed) > 0 {
		return &PartialLoadError{Failed: failed}
	}
	return nil
}

// recompute reruns the synchronous pipeline from the raw collection. It
// never touches the network.
func (g *Grid) recompute() {
	filtered := g.filters.Apply(g.base, g.opts.Table, g.lookups, g.opts.UnknownLabel)
	sorted := SortRecords(filtered, g.sort, g.opts.Table, g.lookups, g.opts.UnknownLabel)
	g.matched = len(sorted)
	vis, totalPages := Window(sorted, g.page, g.opts.PageSize)
	if clamped := ClampPage(g.page, totalPages); clamped != g.page {
		g.page = clamped
		vis, _ = Window(sorted, g.page, g.opts.PageSize)
	}
	g.visible = vis
	g.totalPages = totalPages
}

// SetFilter replaces the predicate for one column and recomputes.
func (g *Grid) SetFilter(column string, f Filter) {
	if f.empty() {
		delete(g.filters, column)
	} else {
		g.filters[column] = f
	}
	g.recompute()
}

// ClearFilters drops every predicate.
func (g *Grid) ClearFilters() {
	g.filters = make(FilterState)
	g.recompute()
}

// ToggleSort advances the tri-state sort for a column click.
func (g *Grid) ToggleSort(column string) {
	if col, ok := g.opts.Table.Column(column); !ok || !col.Sortable {
		return
	}
	g.sort = g.sort.Toggle(column)
	g.recompute()
}

// SetPage moves to a page, clamped to the current page count.
func (g *Grid) SetPage(page int) {
	g.page = ClampPage(page, g.totalPages)
	g.recompute()
}

// VisibleRows returns the current visible slice. Callers must treat it as
// read-only.
func (g *Grid) VisibleRows() []schema.Record { return g.visible }

// PageInfo returns the pagination metadata for the filtered collection.
func (g *Grid) PageInfo() PageInfo {
	return PageInfo{Page: g.page, PageSize: g.opts.PageSize, Total: g.matched, TotalPages: g.totalPages}
}

// Filters returns the active filter state.
func (g *Grid) Filters() FilterState { return g.filters }

// Sort returns the active sort spec.
func (g *Grid) Sort() SortSpec { return g.sort }

// Label resolves a foreign-key column value of rec to its display label.
func (g *Grid) Label(rec schema.Record, column string) string {
	col, ok := g.opts.Table.Column(column)
	if !ok || col.Kind != schema.KindID {
		return schema.AsText(rec.Field(column))
	}
	return g.lookups[col.Lookup].Label(schema.AsID(rec.Field(column)), g.opts.UnknownLabel)
}

// RowState reports the interaction state of one row.
func (g *Grid) RowState(id int64) RowState {
	if g.pendingDelete == id && id != 0 {
		return RowDeletePending
	}
	if _, ok := g.sessions[id]; ok {
		return RowEditing
	}
	return RowViewing
}

// --- Edit lifecycle ---

// StartEdit opens an edit session for a loaded record. Unless concurrent
// edits are allowed, a second StartEdit while a session is open fails with
// ErrEditInProgress; the first session must be committed or cancelled first.
func (g *Grid) StartEdit(id int64) (*EditSession, error) {
	rec, ok := g.record(id)
	if !ok {
		return nil, ErrNotLoaded
	}
	if s, ok := g.sessions[id]; ok {
		return s, nil
	}
	if !g.opts.AllowConcurrentEdits && len(g.sessions) > 0 {
		return nil, ErrEditInProgress
	}
	s := NewEditSession(rec, g.opts.Table)
	g.sessions[id] = s
	return s, nil
}

// Session returns the open session for a record, if any.
func (g *Grid) Session(id int64) (*EditSession, bool) {
	s, ok := g.sessions[id]
	return s, ok
}

// UpdateDraftField routes a draft edit to the record's open session.
func (g *Grid) UpdateDraftField(id int64, field string, value any) error {
	s, ok := g.sessions[id]
	if !ok {
		return ErrNoSession
	}
	return s.Update(field, value)
}

// CancelEdit discards the record's draft. No payload is produced and no
// store call occurs.
func (g *Grid) CancelEdit(id int64) {
	delete(g.sessions, id)
}

// CommitEdit validates the draft, sends the diff payload to the store and
// reloads on success. Validation failures and store rejections leave the
// session and its draft intact so no typed input is lost. When the session
// requested locale propagation and the translatable field changed, one
// translation upsert per supported locale runs best-effort after the
// primary commit; per-locale failures are returned as warnings, never as
// commit failure. The returned error, when the result carries a record, is
// a reload error (e.g. *PartialLoadError), not a commit failure.
func (g *Grid) CommitEdit(id int64) (CommitResult, error) {
	s, ok := g.sessions[id]
	if !ok {
		return CommitResult{}, ErrNoSession
	}
	diff, err := s.Commit(g.rctx.LocaleID)
	if err != nil {
		return CommitResult{}, err
	}
	if !g.beginMutation() {
		return CommitResult{}, ErrBusy
	}
	defer g.endMutation()

	rec, err := g.store.Update(g.rctx, g.opts.Table.Name, id, diff)
	if err != nil {
		g.log.Error("update failed", zap.Int64("id", id), zap.Error(err))
		return CommitResult{}, err
	}

	result := CommitResult{Record: rec}
	if col, changed := s.TranslatableChanged(); changed && s.PropagateAllLocales {
		text := schema.AsText(s.Draft[col.Key])
		for _, loc := range g.opts.Locales {
			if terr := g.store.Translate(g.rctx, g.opts.Table.Name, id, loc.ID, text); terr != nil {
				g.log.Warn("translation propagation failed",
					zap.Int64("id", id), zap.String("locale", loc.Code), zap.Error(terr))
				result.Warnings = append(result.Warnings, LocaleWarning{Locale: loc, Err: terr})
			}
		}
	}

	delete(g.sessions, id)
	return result, g.Load()
}

// Create validates the field set locally, asks the store to create the
// record and reloads on success. The store assigns the id and audit fields;
// the grid never appends locally.
func (g *Grid) Create(parentID int64, fields map[string]any) (schema.Record, error) {
	if verr := ValidateFields(g.opts.Table, fields); verr != nil {
		return schema.Record{}, verr
	}
	if !g.beginMutation() {
		return schema.Record{}, ErrBusy
	}
	defer g.endMutation()

	rec, err := g.store.Create(g.rctx, g.opts.Table.Name, parentID, fields)
	if err != nil {
		g.log.Error("create failed", zap.Error(err))
		return schema.Record{}, err
	}
	return rec, g.Load()
}

// RequestDelete moves a row into the delete-pending state.
func (g *Grid) RequestDelete(id int64) error {
	if _, ok := g.record(id); !ok {
		return ErrNotLoaded
	}
	g.pendingDelete = id
	return nil
}

// CancelDelete returns a delete-pending row to viewing.
func (g *Grid) CancelDelete() { g.pendingDelete = 0 }

// ConfirmDelete performs the soft delete for the pending row. A referential
// rejection is a normal outcome: the row stays active and visible, and the
// caller can tell "still referenced" apart from generic failure through the
// tagged outcome. Only a Deleted outcome triggers a reload.
func (g *Grid) ConfirmDelete() (schema.DeleteOutcome, error) {
	id := g.pendingDelete
	if id == 0 {
		return schema.DeleteOutcome{}, ErrNoDeletePending
	}
	if !g.beginMutation() {
		return schema.DeleteOutcome{}, ErrBusy
	}
	defer g.endMutation()
	g.pendingDelete = 0

	outcome, err := g.store.Delete(g.rctx, g.opts.Table.Name, id)
	if err != nil {
		g.log.Error("delete failed", zap.Int64("id", id), zap.Error(err))
		return outcome, err
	}
	if outcome.Status != schema.Deleted {
		g.log.Warn("delete rejected", zap.Int64("id", id), zap.String("reason", outcome.Reason))
		return outcome, nil
	}
	return outcome, g.Load()
}

func (g *Grid) record(id int64) (schema.Record, bool) {
	for _, rec := range g.base {
		if rec.ID == id {
			return rec, true
		}
	}
	return schema.Record{}, false
}

func (g *Grid) beginMutation() bool {
	g.busyMu.Lock()
	defer g.busyMu.Unlock()
	if g.busy {
		return false
	}
	g.busy = true
	return true
}

func (g *Grid) endMutation() {
	g.busyMu.Lock()
	g.busy = false
	g.busyMu.Unlock()
}
