// Package reaper implements the background sweep that removes expired
// links and reconciles the object store with the link records.
package reaper

import (
	"log"
	"time"

	"github.com/hideshare/hideshare/internal/repository"
	"github.com/hideshare/hideshare/internal/storage"
)

// Reaper periodically deletes link records past their expiry together with
// their backing objects, and cleans up orphans on either side. It receives
// its store handles at construction: if it exists, it can sweep — there is
// no separate "connected" state to poll.
//
// Quota-triggered reclamation is not its job; the access controller
// removes the bytes inline when the last download is charged, leaving at
// most a record tombstone for the sweep below to pick up.
type Reaper struct {
	links    repository.FileLinkRepository
	objects  storage.ObjectStore
	interval time.Duration

	// now is the clock used for expiry decisions; swapped in tests.
	now func() time.Time
}

// New creates and returns a new Reaper sweeping at the given interval.
func New(links repository.FileLinkRepository, objects storage.ObjectStore, interval time.Duration) *Reaper {
	return &Reaper{
		links:    links,
		objects:  objects,
		interval: interval,
		now:      time.Now,
	}
}

// Start launches the periodic sweep loop.
// This is a blocking function that runs until the program stops.
func (r *Reaper) Start() {
	log.Printf("[REAPER] Starting reaper with interval of %v...", r.interval)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Execute an immediate sweep on startup before waiting for the first tick
	r.Sweep()

	for range ticker.C {
		r.Sweep()
	}
}

// Sweep runs one reaper cycle: expired records first, then orphans.
// A single record's failure never aborts the cycle; it is logged and the
// record is retried on the next pass.
func (r *Reaper) Sweep() {
	links, err := r.links.GetAll()
	if err != nil {
		log.Printf("[REAPER] ERROR retrieving links for sweep: %v", err)
		return
	}

	now := r.now()
	live := make(map[string]bool, len(links))
	removed := 0

	for _, link := range links {
		if !link.ExpiredAt(now) {
			// Drop records whose object vanished (crash leftovers); a live
			// record with bytes on disk stays untouched. Links without an
			// expiry are only ever removed by quota or explicit deletion.
			exists, err := r.objects.Exists(link.ID)
			if err != nil {
				log.Printf("[REAPER] ERROR checking object %s: %v", link.ID, err)
				live[link.ID] = true
				continue
			}
			if exists {
				live[link.ID] = true
				continue
			}
			if err := r.links.Delete(link.ID); err != nil {
				log.Printf("[REAPER] ERROR deleting orphaned record %s: %v", link.ID, err)
			} else {
				log.Printf("[REAPER] Deleted orphaned record %s (object missing)", link.ID)
			}
			continue
		}

		// Object first, record second: if the object delete fails the
		// record stays and the pair is retried next cycle. A record that
		// disappeared since the scan counts as done.
		if err := r.objects.Delete(link.ID); err != nil {
			log.Printf("[REAPER] ERROR deleting object %s: %v", link.ID, err)
			live[link.ID] = true
			continue
		}
		if err := r.links.Delete(link.ID); err != nil {
			log.Printf("[REAPER] ERROR deleting record %s: %v", link.ID, err)
			continue
		}
		removed++
	}

	orphans := r.sweepOrphanObjects(live, now)

	if removed > 0 || orphans > 0 {
		log.Printf("[REAPER] Sweep done: %d expired link(s), %d orphaned object(s) removed", removed, orphans)
	}
}

// sweepOrphanObjects deletes objects that have no corresponding record,
// e.g. left over from a crash between the object write and the record
// write. Objects younger than one interval are skipped so the sweep cannot
// race an upload that is between its two phases.
func (r *Reaper) sweepOrphanObjects(live map[string]bool, now time.Time) int {
	objects, err := r.objects.List()
	if err != nil {
		log.Printf("[REAPER] ERROR listing objects for orphan sweep: %v", err)
		return 0
	}

	removed := 0
	for _, obj := range objects {
		if live[obj.ID] {
			continue
		}
		if now.Sub(obj.ModTime) < r.interval {
			continue
		}
		if err := r.objects.Delete(obj.ID); err != nil {
			log.Printf("[REAPER] ERROR deleting orphaned object %s: %v", obj.ID, err)
			continue
		}
		log.Printf("[REAPER] Deleted orphaned object %s", obj.ID)
		removed++
	}
	return removed
}
