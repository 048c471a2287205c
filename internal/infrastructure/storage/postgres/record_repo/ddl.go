package record_repo

import (
	"context"
	"fmt"
	"strings"

	"bread/internal/core/apperror"
	"bread/internal/infrastructure/storage/postgres"
	"bread/internal/metadata"
)

// DDL returns CREATE TABLE IF NOT EXISTS statements for every model, with
// referenced tables first. It bootstraps an empty database; it does not
// alter existing tables.
func DDL(reg *metadata.Registry) ([]string, error) {
	ordered, err := dependencyOrder(reg)
	if err != nil {
		return nil, err
	}
	stmts := make([]string, 0, len(ordered))
	for _, m := range ordered {
		stmt, err := createTable(reg, m)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// EnsureSchema runs DDL in one transaction.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	stmts, err := DDL(r.reg)
	if err != nil {
		return err
	}
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, stmt := range stmts {
			if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, stmt); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		return nil
	})
}

func createTable(reg *metadata.Registry, m *metadata.Model) (string, error) {
	defs := make([]string, 0, len(m.Fields))
	for _, f := range storedFields(m) {
		def, err := columnDef(reg, f)
		if err != nil {
			return "", err
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", postgres.Ident(m.Table), strings.Join(defs, ",\n\t")), nil
}

func columnDef(reg *metadata.Registry, f *metadata.Field) (string, error) {
	name := postgres.Ident(f.Column)
	if f.Name == metadata.PrimaryKey {
		return name + " uuid PRIMARY KEY", nil
	}
	switch f.Kind {
	case metadata.KindRelationToOne:
		target, err := reg.Model(f.Target)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s uuid REFERENCES %s (%s)", name, postgres.Ident(target.Table), postgres.Ident(metadata.PrimaryKey)), nil
	case metadata.KindFile:
		return name + " text", nil
	}

	switch f.Type {
	case metadata.TypeString, metadata.TypeEmail, metadata.TypeURL:
		if f.MaxLength > 0 {
			return fmt.Sprintf("%s varchar(%d)", name, f.MaxLength), nil
		}
		return name + " text", nil
	case metadata.TypeText, metadata.TypeEnum:
		return name + " text", nil
	case metadata.TypeInteger:
		return name + " bigint", nil
	case metadata.TypeDecimal:
		return name + " numeric", nil
	case metadata.TypeBoolean:
		return name + " boolean", nil
	case metadata.TypeDate:
		return name + " date", nil
	case metadata.TypeDateTime:
		return name + " timestamptz", nil
	}
	return "", apperror.NewModelConfiguration(fmt.Sprintf("no column type for %s (%s)", f.Name, f.Type))
}

// dependencyOrder sorts models so that every to-one target precedes the
// models pointing at it. Registration order breaks ties.
func dependencyOrder(reg *metadata.Registry) ([]*metadata.Model, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int)
	var ordered []*metadata.Model

	var visit func(m *metadata.Model) error
	visit = func(m *metadata.Model) error {
		switch state[m.Key()] {
		case done:
			return nil
		case visiting:
			return apperror.NewModelConfiguration(fmt.Sprintf("relation cycle through %s", m.Key()))
		}
		state[m.Key()] = visiting
		for i := range m.Fields {
			f := &m.Fields[i]
			if f.Kind != metadata.KindRelationToOne || f.Target == m.Key() {
				continue
			}
			target, err := reg.Model(f.Target)
			if err != nil {
				return err
			}
			if err := visit(target); err != nil {
				return err
			}
		}
		state[m.Key()] = done
		ordered = append(ordered, m)
		return nil
	}

	for _, m := range reg.Models() {
		if err := visit(m); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
