package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bread/internal/core/apperror"
	"bread/internal/domain/auth"
	"bread/internal/infrastructure/storage/memory"
)

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	s := memory.NewUserStore()
	u := auth.NewUser("Ann@Example.com", "hash")
	u.Permissions = []string{"crm.view_customer"}
	require.NoError(t, s.Create(ctx, u))

	err := s.Create(ctx, auth.NewUser("ann@example.com", "hash"))
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	got, err := s.GetByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	got.Permissions[0] = "mutated"

	again, err := s.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"crm.view_customer"}, again.Permissions)

	exists, err := s.Exists(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}
