// Package record_repo stores records of every registered model in PostgreSQL,
// one table per model, one column per stored field.
package record_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgerrcode"

	"bread/internal/core/apperror"
	"bread/internal/core/id"
	"bread/internal/domain"
	"bread/internal/infrastructure/storage/postgres"
	"bread/internal/metadata"
)

var _ domain.Store = (*Repo)(nil)

// Repo implements domain.Store. Statements run in the transaction carried
// by the context, or directly on the pool.
type Repo struct {
	reg       *metadata.Registry
	txManager *postgres.TxManager
}

// NewRepo creates a record repository.
func NewRepo(reg *metadata.Registry, txManager *postgres.TxManager) *Repo {
	return &Repo{reg: reg, txManager: txManager}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *Repo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// storedFields lists the fields backed by a column, primary key first.
func storedFields(m *metadata.Model) []*metadata.Field {
	out := make([]*metadata.Field, 0, len(m.Fields))
	for i := range m.Fields {
		f := &m.Fields[i]
		switch f.Kind {
		case metadata.KindScalar, metadata.KindRelationToOne, metadata.KindFile:
			out = append(out, f)
		}
	}
	return out
}

func (r *Repo) baseSelect(m *metadata.Model) squirrel.SelectBuilder {
	fields := storedFields(m)
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		cols = append(cols, column(rootAlias, f))
	}
	return r.Builder().Select(cols...).From(from(m, rootAlias))
}

// Get retrieves a record by ID, soft-deleted or not.
func (r *Repo) Get(ctx context.Context, m *metadata.Model, recordID id.ID) (*domain.Record, error) {
	q := r.baseSelect(m).
		Where(squirrel.Eq{rootAlias + "." + postgres.Ident(metadata.PrimaryKey): recordID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []map[string]any
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("get %s: %w", m.Key(), err)
	}
	if len(rows) == 0 {
		return nil, apperror.NewNotFound(m.Label, recordID.String())
	}
	return toRecord(m, rows[0])
}

// where collects the conditions shared by the count and the page query.
func (r *Repo) where(m *metadata.Model, q domain.Query) (squirrel.And, error) {
	var conds squirrel.And
	if q.IDs != nil {
		conds = append(conds, squirrel.Eq{rootAlias + "." + postgres.Ident(metadata.PrimaryKey): q.IDs})
	}
	if !q.IncludeDeleted && m.SoftDeleteField != "" {
		f, _ := m.Field(m.SoftDeleteField)
		conds = append(conds, squirrel.Expr("NOT COALESCE("+column(rootAlias, f)+", FALSE)"))
	}
	cond, err := ToSqlizer(r.reg, m, q.Filter)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		conds = append(conds, cond)
	}
	return conds, nil
}

// List retrieves records with filtering, ordering and pagination.
func (r *Repo) List(ctx context.Context, m *metadata.Model, q domain.Query) (domain.ListResult, error) {
	result := domain.ListResult{Limit: q.Limit, Offset: q.Offset}

	sel, count, err := r.listQueries(m, q)
	if err != nil {
		return result, err
	}
	querier := r.txManager.GetQuerier(ctx)

	countSQL, countArgs, err := count.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count %s: %w", m.Key(), err)
	}

	sql, args, err := sel.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	var rows []map[string]any
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return result, fmt.Errorf("list %s: %w", m.Key(), err)
	}

	result.Items = make([]*domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := toRecord(m, row)
		if err != nil {
			return result, err
		}
		result.Items = append(result.Items, rec)
	}
	return result, nil
}

// listQueries builds the page query and its count query.
func (r *Repo) listQueries(m *metadata.Model, q domain.Query) (squirrel.SelectBuilder, squirrel.SelectBuilder, error) {
	conds, err := r.where(m, q)
	if err != nil {
		return squirrel.SelectBuilder{}, squirrel.SelectBuilder{}, err
	}

	sel := r.baseSelect(m)
	count := r.Builder().Select("COUNT(*)").From(from(m, rootAlias))
	if len(conds) > 0 {
		sel = sel.Where(conds)
		count = count.Where(conds)
	}

	c := newCompiler(r.reg)
	c.aliases = 100 // keep ordering aliases apart from filter aliases
	for _, key := range q.OrderBy {
		expr, err := c.orderBy(m, key)
		if err != nil {
			return squirrel.SelectBuilder{}, squirrel.SelectBuilder{}, err
		}
		sel = sel.OrderBy(expr)
	}
	sel = sel.OrderBy(rootAlias + "." + postgres.Ident(metadata.PrimaryKey))

	if q.Limit > 0 {
		sel = sel.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		sel = sel.Offset(uint64(q.Offset))
	}
	return sel, count, nil
}

// Create inserts a new record.
func (r *Repo) Create(ctx context.Context, m *metadata.Model, rec *domain.Record) error {
	data := columnValues(m, rec)
	data[postgres.Ident(metadata.PrimaryKey)] = rec.ID

	sql, args, err := r.Builder().Insert(postgres.Ident(m.Table)).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return r.mapWriteError(m, rec.ID, err)
	}
	return nil
}

// Update replaces the stored values of an existing record.
func (r *Repo) Update(ctx context.Context, m *metadata.Model, rec *domain.Record) error {
	q := r.Builder().
		Update(postgres.Ident(m.Table)).
		SetMap(columnValues(m, rec)).
		Where(squirrel.Eq{postgres.Ident(metadata.PrimaryKey): rec.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return r.mapWriteError(m, rec.ID, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(m.Label, rec.ID.String())
	}
	return nil
}

// Delete physically removes a record.
func (r *Repo) Delete(ctx context.Context, m *metadata.Model, recordID id.ID) error {
	q := r.Builder().
		Delete(postgres.Ident(m.Table)).
		Where(squirrel.Eq{postgres.Ident(metadata.PrimaryKey): recordID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return r.mapWriteError(m, recordID, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(m.Label, recordID.String())
	}
	return nil
}

func (r *Repo) mapWriteError(m *metadata.Model, recordID id.ID, err error) error {
	switch postgres.ErrorCode(err) {
	case pgerrcode.ForeignKeyViolation:
		return apperror.NewConflict(fmt.Sprintf("%s is referenced by other records", m.Label)).
			WithDetail("model", m.Key()).
			WithDetail("id", recordID.String()).
			WithCause(err)
	case pgerrcode.UniqueViolation:
		return apperror.NewConflict(fmt.Sprintf("%s already exists", m.Label)).
			WithDetail("model", m.Key()).
			WithDetail("id", recordID.String()).
			WithCause(err)
	}
	return fmt.Errorf("write %s: %w", m.Key(), err)
}

// columnValues maps every stored non-key field of rec to its quoted column.
func columnValues(m *metadata.Model, rec *domain.Record) map[string]any {
	data := make(map[string]any, len(m.Fields))
	for _, f := range storedFields(m) {
		if f.Name == metadata.PrimaryKey {
			continue
		}
		data[postgres.Ident(f.Column)] = rec.Get(f.Name)
	}
	return data
}

// toRecord converts a scanned row, keyed by column name, to canonical values.
func toRecord(m *metadata.Model, row map[string]any) (*domain.Record, error) {
	rec := &domain.Record{Values: make(map[string]any, len(row))}
	for _, f := range storedFields(m) {
		v, err := metadata.Coerce(f, row[f.Column])
		if err != nil {
			return nil, fmt.Errorf("read %s.%s: %w", m.Key(), f.Name, err)
		}
		if f.Name == metadata.PrimaryKey {
			recordID, ok := v.(id.ID)
			if !ok {
				return nil, fmt.Errorf("read %s: row has no id", m.Key())
			}
			rec.ID = recordID
			continue
		}
		rec.Set(f.Name, v)
	}
	return rec, nil
}
