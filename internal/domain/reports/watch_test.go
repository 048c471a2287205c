package reports_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bread/internal/domain/reports"
)

func TestWatch_ReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reports:\n  - {slug: first, model: crm.customer}\n"), 0o600))

	f, err := os.Open(path)
	require.NoError(t, err)
	defs, err := reports.LoadYAML(f)
	f.Close()
	require.NoError(t, err)

	svc := reports.NewService(nil, defs)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Watch(ctx, path))

	require.NoError(t, os.WriteFile(path, []byte("reports: [\n"), 0o600))
	require.NoError(t, os.WriteFile(path, []byte("reports:\n  - {slug: second, model: crm.customer}\n"), 0o600))

	require.Eventually(t, func() bool {
		_, err := svc.Get("second")
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	_, err = svc.Get("first")
	assert.Error(t, err)
	assert.Len(t, svc.List(), 1)
}
