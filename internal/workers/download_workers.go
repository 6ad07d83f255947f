package workers

import (
	"log"

	"github.com/hideshare/hideshare/internal/models"
	"github.com/hideshare/hideshare/internal/repository"
)

// StartDownloadWorkers launches a pool of worker goroutines to persist
// download events asynchronously. Recording is best-effort: it must never
// block or fail a download that the access controller already allowed.
// Parameters:
//   - workerCount: number of concurrent workers to spawn
//   - downloadEventsChan: channel that receives download events to be processed
//   - downloadRepo: repository interface for persisting downloads to database
func StartDownloadWorkers(workerCount int, downloadEventsChan <-chan models.DownloadEvent, downloadRepo repository.DownloadRepository) {
	log.Printf("Starting %d download worker(s)...", workerCount)

	// Each worker listens on the same channel and processes events
	// concurrently.
	for i := 0; i < workerCount; i++ {
		go downloadWorker(downloadEventsChan, downloadRepo)
	}
}

// downloadWorker is the function executed by each worker goroutine.
// It continuously listens for download events on the channel and persists
// them. When the channel is closed, the worker exits gracefully.
func downloadWorker(downloadEventsChan <-chan models.DownloadEvent, downloadRepo repository.DownloadRepository) {
	for event := range downloadEventsChan {
		download := &models.Download{
			FileLinkID: event.FileLinkID,
			Timestamp:  event.Timestamp,
			UserAgent:  event.UserAgent,
			IPAddress:  event.IPAddress,
		}

		if err := downloadRepo.CreateDownload(download); err != nil {
			// Log and keep going; losing an event is acceptable, stalling
			// the pool is not.
			log.Printf("ERROR: Failed to save download for link %s (UserAgent: %s, IP: %s): %v",
				event.FileLinkID, event.UserAgent, event.IPAddress, err)
		}
	}
}
