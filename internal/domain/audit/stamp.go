package audit

import (
	"context"

	appctx "bread/internal/core/context"
	"bread/internal/domain"
	"bread/internal/metadata"
)

// Fields stamped with the signed-in user's email when a model declares them.
const (
	CreatedByField = "created_by"
	UpdatedByField = "updated_by"
)

// AttachStamps registers before-hooks that fill CreatedByField and
// UpdatedByField. Models without those fields, and anonymous calls, are left alone.
func AttachStamps(hooks *domain.HookRegistry[domain.Change]) {
	hooks.On(domain.BeforeCreate, func(ctx context.Context, c domain.Change) error {
		stamp(ctx, c, CreatedByField, UpdatedByField)
		return nil
	})
	hooks.On(domain.BeforeUpdate, func(ctx context.Context, c domain.Change) error {
		stamp(ctx, c, UpdatedByField)
		return nil
	})
}

func stamp(ctx context.Context, c domain.Change, names ...string) {
	user := appctx.GetUser(ctx)
	if user == nil {
		return
	}
	for _, name := range names {
		if f, ok := c.Model.Field(name); ok && f.Kind == metadata.KindScalar && f.Type.TextLike() {
			c.Record.Set(name, user.Email)
		}
	}
}
