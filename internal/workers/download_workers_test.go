package workers

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/hideshare/hideshare/internal/models"
	"github.com/hideshare/hideshare/internal/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDownloadWorkersPersistEvents(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Download{}))

	repo := repository.NewDownloadRepository(db)

	events := make(chan models.DownloadEvent, 8)
	StartDownloadWorkers(2, events, repo)

	for i := 0; i < 5; i++ {
		events <- models.DownloadEvent{
			FileLinkID: "link-1",
			Timestamp:  time.Now(),
			UserAgent:  "test-agent",
			IPAddress:  "127.0.0.1",
		}
	}
	close(events)

	require.Eventually(t, func() bool {
		count, err := repo.CountDownloadsByLinkID("link-1")
		return err == nil && count == 5
	}, 5*time.Second, 10*time.Millisecond, "all queued events should be persisted")
}
