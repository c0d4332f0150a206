// Package store provides a generic repository over a single relational
// entity type, with filtered queries, pagination, optional soft-delete, and
// optional audit timestamps. All persistence failures are translated into
// the shared httperr vocabulary so that every layer reports errors the same
// way.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/forgeline/keel/httperr"
)

// Entity is implemented by persistable types. Columns lists the insertable
// columns in a stable order; values bind through sqlx db struct tags.
type Entity interface {
	TableName() string
	Columns() []string
}

// Auditable is implemented by entities that carry audit timestamps. The
// repository stamps them on create and update when audit mode is enabled.
type Auditable interface {
	StampCreated(t time.Time)
	StampUpdated(t time.Time)
}

// Filters maps column names to required values. A nil value matches SQL
// NULL. Keys are applied in sorted order so generated SQL is deterministic.
type Filters map[string]any

// Options configures repository policies.
type Options struct {
	// SoftDelete appends "deleted_at IS NULL" to every read and turns
	// DeleteByID into a tombstone-timestamp update.
	SoftDelete bool
	// Audit stamps created_at/updated_at on mutations for Auditable
	// entities.
	Audit bool
}

// Repository is a generic data-access service for one entity type.
type Repository[T Entity] struct {
	runner   sqlx.ExtContext
	db       *sqlx.DB
	resource string
	opts     Options
}

// NewRepository creates a repository for entity type T. The resource name
// appears in not-found messages ("user not found").
func NewRepository[T Entity](db *sqlx.DB, resource string, opts Options) *Repository[T] {
	return &Repository[T]{runner: db, db: db, resource: resource, opts: opts}
}

// WithTx returns a repository bound to an open transaction. The original
// repository is unchanged.
func (r *Repository[T]) WithTx(tx *sqlx.Tx) *Repository[T] {
	clone := *r
	clone.runner = tx
	return &clone
}

// InTransaction runs work inside a transaction, committing on nil and
// rolling back on error or panic.
func (r *Repository[T]) InTransaction(ctx context.Context, work func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return httperr.Database(err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := work(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return httperr.Database(err)
	}
	return nil
}

// Create inserts the entity and reloads it, returning the stored row.
// The entity is passed by pointer so audit stamping mutates the caller's
// value as well as the stored row.
func (r *Repository[T]) Create(ctx context.Context, entity *T) (T, error) {
	var zero T

	if r.opts.Audit {
		if a, ok := any(entity).(Auditable); ok {
			now := time.Now().UTC()
			a.StampCreated(now)
			a.StampUpdated(now)
		}
	}

	cols := zero.Columns()
	placeholders := make([]string, len(cols))
	for i, col := range cols {
		placeholders[i] = ":" + col
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		zero.TableName(), strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	rows, err := sqlx.NamedQueryContext(ctx, r.runner, query, entity)
	if err != nil {
		return zero, httperr.Normalize(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return zero, httperr.Database(sql.ErrNoRows)
	}
	var stored T
	if err := rows.StructScan(&stored); err != nil {
		return zero, httperr.Database(err)
	}
	return stored, nil
}

// FindByID returns the entity with the given id, honoring soft-delete.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (T, error) {
	return r.FindOne(ctx, Filters{"id": id})
}

// FindOne returns the first entity matching the filters.
func (r *Repository[T]) FindOne(ctx context.Context, filters Filters) (T, error) {
	var entity T
	where, args := r.buildWhere(filters)
	query := r.rebind(fmt.Sprintf("SELECT * FROM %s%s LIMIT 1", entity.TableName(), where))

	if err := sqlx.GetContext(ctx, r.runner, &entity, query, args...); err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, httperr.NotFound(r.resource)
		}
		return zero, httperr.Normalize(err)
	}
	return entity, nil
}

// FindMany returns entities matching the filters with pagination metadata.
// orderBy must be a known column expression supplied by the calling
// service, never raw client input.
func (r *Repository[T]) FindMany(ctx context.Context, filters Filters, page Page, orderBy string) ([]T, PageInfo, error) {
	var probe T
	table := probe.TableName()
	where, args := r.buildWhere(filters)
	norm := page.Normalize()

	total, err := r.Count(ctx, filters)
	if err != nil {
		return nil, PageInfo{}, err
	}

	if orderBy == "" {
		orderBy = "created_at DESC"
	}
	query := r.rebind(fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s LIMIT %d OFFSET %d",
		table, where, orderBy, norm.Limit, norm.Offset()))

	entities := make([]T, 0, norm.Limit)
	if err := sqlx.SelectContext(ctx, r.runner, &entities, query, args...); err != nil {
		return nil, PageInfo{}, httperr.Normalize(err)
	}
	return entities, NewPageInfo(norm, total), nil
}

// Count returns the number of entities matching the filters.
func (r *Repository[T]) Count(ctx context.Context, filters Filters) (int64, error) {
	var probe T
	where, args := r.buildWhere(filters)
	query := r.rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s%s", probe.TableName(), where))

	var total int64
	if err := sqlx.GetContext(ctx, r.runner, &total, query, args...); err != nil {
		return 0, httperr.Normalize(err)
	}
	return total, nil
}

// Exists reports whether any entity matches the filters.
func (r *Repository[T]) Exists(ctx context.Context, filters Filters) (bool, error) {
	total, err := r.Count(ctx, filters)
	if err != nil {
		return false, err
	}
	return total > 0, nil
}

// UpdateByID applies the given column changes and returns the updated row.
// In audit mode updated_at is stamped automatically.
func (r *Repository[T]) UpdateByID(ctx context.Context, id string, changes map[string]any) (T, error) {
	var zero T
	if len(changes) == 0 {
		return r.FindByID(ctx, id)
	}

	if r.opts.Audit {
		changes["updated_at"] = time.Now().UTC()
	}

	cols := make([]string, 0, len(changes))
	for col := range changes {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = ?", col)
		args = append(args, changes[col])
	}
	args = append(args, id)

	where := " WHERE id = ?"
	if r.opts.SoftDelete {
		where += " AND deleted_at IS NULL"
	}

	query := r.rebind(fmt.Sprintf("UPDATE %s SET %s%s RETURNING *",
		zero.TableName(), strings.Join(sets, ", "), where))

	var updated T
	if err := sqlx.GetContext(ctx, r.runner, &updated, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, httperr.NotFound(r.resource)
		}
		return zero, httperr.Normalize(err)
	}
	return updated, nil
}

// DeleteByID removes the entity. With soft-delete enabled the row is
// tombstoned with the deletion timestamp; otherwise it is deleted outright.
func (r *Repository[T]) DeleteByID(ctx context.Context, id string) error {
	var probe T
	var query string
	var args []any

	if r.opts.SoftDelete {
		query = r.rebind(fmt.Sprintf(
			"UPDATE %s SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL", probe.TableName()))
		args = []any{time.Now().UTC(), id}
	} else {
		query = r.rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", probe.TableName()))
		args = []any{id}
	}

	res, err := r.runner.ExecContext(ctx, query, args...)
	if err != nil {
		return httperr.Normalize(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return httperr.Database(err)
	}
	if affected == 0 {
		return httperr.NotFound(r.resource)
	}
	return nil
}

// PurgeDeletedBefore permanently removes soft-deleted rows whose tombstone
// is older than the cutoff. It is a no-op for hard-delete repositories.
func (r *Repository[T]) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if !r.opts.SoftDelete {
		return 0, nil
	}
	var probe T
	query := r.rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE deleted_at IS NOT NULL AND deleted_at < ?", probe.TableName()))
	res, err := r.runner.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, httperr.Normalize(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, httperr.Database(err)
	}
	return affected, nil
}

// buildWhere renders the filter map (plus the soft-delete predicate) into a
// WHERE clause with ?-style bindvars, iterating keys in sorted order for
// deterministic SQL.
func (r *Repository[T]) buildWhere(filters Filters) (string, []any) {
	clauses := make([]string, 0, len(filters)+1)
	args := make([]any, 0, len(filters))

	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if filters[key] == nil {
			clauses = append(clauses, fmt.Sprintf("%s IS NULL", key))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, filters[key])
	}

	if r.opts.SoftDelete {
		clauses = append(clauses, "deleted_at IS NULL")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (r *Repository[T]) rebind(query string) string {
	return r.db.Rebind(query)
}
