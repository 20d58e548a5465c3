package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-notice-api/internal/models"
	"github.com/noah-isme/campus-notice-api/pkg/jobs"
	"github.com/noah-isme/campus-notice-api/pkg/storage"
)

func newLocalBackendForTest(t *testing.T) (*storage.LocalBackend, string, string) {
	t.Helper()
	baseDir := t.TempDir()
	archiveDir := filepath.Join(baseDir, "archive")
	backend, err := storage.NewLocalBackend(baseDir, archiveDir)
	require.NoError(t, err)
	return backend, baseDir, archiveDir
}

func TestReclaimServiceDeletesArchivedPriorAttachments(t *testing.T) {
	backend, _, archiveDir := newLocalBackendForTest(t)
	ctx := context.Background()

	// An update replaced k1 with k2: the prior lives in the archive under
	// its own key, the replacement is the primary file.
	first, err := backend.Store(ctx, "k1.pdf", strings.NewReader("v1"))
	require.NoError(t, err)
	require.NoError(t, backend.Archive(ctx, first))
	second, err := backend.Store(ctx, "k2.pdf", strings.NewReader("v2"))
	require.NoError(t, err)

	svc := NewReclaimService(backend, nil, jobs.QueueConfig{})
	err = svc.handle(ctx, jobs.Job[models.PurgedNotice]{
		ID:   "attachment.reclaim-n1",
		Type: "attachment.reclaim",
		Payload: models.PurgedNotice{
			ID:               "n1",
			FileKey:          "k2.pdf",
			FileLocator:      second.Locator,
			ArchivedFileKeys: pq.StringArray{"k1.pdf"},
		},
	})
	require.NoError(t, err)

	_, err = os.Stat(second.Locator)
	assert.True(t, os.IsNotExist(err), "primary attachment should be removed")
	_, err = os.Stat(filepath.Join(archiveDir, "k1.pdf"))
	assert.True(t, os.IsNotExist(err), "archived prior attachment should be removed")
}

func TestReclaimServiceProcessesQueuedPurges(t *testing.T) {
	backend, _, _ := newLocalBackendForTest(t)
	ctx := context.Background()

	d, err := backend.Store(ctx, "k1.pdf", strings.NewReader("content"))
	require.NoError(t, err)

	svc := NewReclaimService(backend, nil, jobs.QueueConfig{Workers: 1})
	svc.Start(ctx)
	defer svc.Stop()

	svc.Reclaim([]models.PurgedNotice{{ID: "n1", FileKey: "k1.pdf", FileLocator: d.Locator}})

	assert.Eventually(t, func() bool {
		_, err := os.Stat(d.Locator)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}
