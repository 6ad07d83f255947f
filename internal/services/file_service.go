// Package services contains the business logic layer for the file sharing
// service: link creation, the download access controller, and metadata
// queries.
package services

import (
	"errors"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/hideshare/hideshare/internal/errors"
	"github.com/hideshare/hideshare/internal/models"
	"github.com/hideshare/hideshare/internal/repository"
	"github.com/hideshare/hideshare/internal/storage"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ttlDurations maps the accepted expiry tokens to their durations.
// "permanent" is accepted too and means no time-based expiry.
var ttlDurations = map[string]time.Duration{
	"10m": 10 * time.Minute,
	"20m": 20 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
}

// DefaultTTL is applied when the uploader does not pick an expiry.
const DefaultTTL = "10m"

// ParseTTL resolves an expiry token into a duration. A nil duration means
// the link never expires by time. Unknown tokens are rejected.
func ParseTTL(token string) (*time.Duration, error) {
	if token == "permanent" {
		return nil, nil
	}
	d, ok := ttlDurations[token]
	if !ok {
		return nil, apperrors.ErrInvalidTTL
	}
	return &d, nil
}

// Metadata is what a client may learn about a link without being charged a
// download and without supplying a password.
type Metadata struct {
	ID                 string
	OriginalName       string
	SizeBytes          int64
	ExpiresAt          *time.Time // nil: never expires
	DownloadQuota      *int64     // nil: unlimited
	DownloadsRemaining *int64     // nil: unlimited
	PasswordProtected  bool
	CreatedAt          time.Time
}

// FileService provides business logic methods for managing shared file
// links. It is the single authoritative decision point for whether a
// download may proceed.
type FileService struct {
	links   repository.FileLinkRepository
	objects storage.ObjectStore

	// now is the clock used for expiry decisions; swapped in tests.
	now func() time.Time
}

// NewFileService creates and returns a new instance of FileService.
func NewFileService(links repository.FileLinkRepository, objects storage.ObjectStore) *FileService {
	return &FileService{
		links:   links,
		objects: objects,
		now:     time.Now,
	}
}

// CreateFileLink stores the object bytes and persists a new link record.
//
// The write is two-phase: object first, record second. If the record write
// fails the just-written object is removed again, so the store never keeps
// bytes without metadata longer than a reaper interval.
func (s *FileService) CreateFileLink(r io.Reader, originalName, password, ttl string, quota *int64) (*models.FileLink, error) {
	duration, err := ParseTTL(ttl)
	if err != nil {
		return nil, err
	}

	var passwordHash *string
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, &apperrors.StorageError{Op: "hash password", Err: err}
		}
		h := string(hash)
		passwordHash = &h
	}

	var expiresAt *time.Time
	if duration != nil {
		t := s.now().Add(*duration)
		expiresAt = &t
	}

	// UUIDs give us globally unique ids with no reuse after deletion, so a
	// purged link can never be resurrected by a later upload.
	id := uuid.NewString()

	size, err := s.objects.Save(id, r)
	if err != nil {
		return nil, err
	}

	link := &models.FileLink{
		ID:            id,
		OriginalName:  originalName,
		SizeBytes:     size,
		PasswordHash:  passwordHash,
		ExpiresAt:     expiresAt,
		DownloadQuota: quota,
		CreatedAt:     s.now(),
	}

	if err := s.links.Create(link); err != nil {
		// Compensate: without a record the object is unreachable, remove it
		// now instead of waiting for the orphan sweep.
		if delErr := s.objects.Delete(id); delErr != nil {
			log.Printf("ERROR: failed to clean up object %s after record write failure: %v", id, delErr)
		}
		return nil, &apperrors.StorageError{Op: "create file link", Err: err}
	}

	return link, nil
}

// Authorize decides whether a download of the given link may proceed and,
// if so, charges it. On success it returns the link record as it stands
// after the charge plus a reader over the object bytes; the caller owns the
// reader and must close it.
//
// Checks run in a fixed order: not-found, expired, quota, password, object
// presence. Expiry and quota come before the password so a dead link looks
// the same with or without a correct credential, and so we never burn
// bcrypt time on links that can no longer be served.
func (s *FileService) Authorize(id, suppliedPassword string) (*models.FileLink, io.ReadCloser, error) {
	link, err := s.links.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.ErrFileNotFound
		}
		return nil, nil, &apperrors.StorageError{Op: "lookup file link", Err: err}
	}

	if link.ExpiredAt(s.now()) {
		return nil, nil, apperrors.ErrLinkExpired
	}

	if link.QuotaExhausted() {
		return nil, nil, apperrors.ErrQuotaExhausted
	}

	if link.PasswordHash != nil {
		if suppliedPassword == "" {
			return nil, nil, apperrors.ErrPasswordRequired
		}
		if err := bcrypt.CompareHashAndPassword([]byte(*link.PasswordHash), []byte(suppliedPassword)); err != nil {
			return nil, nil, apperrors.ErrIncorrectPassword
		}
	}

	// Open the object before charging the download. Holding the handle also
	// keeps the bytes readable even if the record is deleted right after the
	// charge (single-use links reclaim eagerly below).
	reader, err := s.objects.Open(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrFileNotFound) {
			// Orphaned metadata: the object vanished under the record.
			// Self-heal by dropping the record so the id stops resolving.
			if delErr := s.links.Delete(id); delErr != nil {
				log.Printf("ERROR: failed to delete orphaned record %s: %v", id, delErr)
			}
			return nil, nil, apperrors.ErrFileNotFound
		}
		return nil, nil, err
	}

	// The quota check and counter increment are one atomic guarded update
	// in the repository; a concurrent download racing us on the last slot
	// comes back as ErrQuotaExhausted here.
	updated, err := s.links.ConsumeDownload(id)
	if err != nil {
		reader.Close()
		return nil, nil, err
	}

	// An exhausted link reclaims its bytes immediately: a used-up
	// single-use link cannot be retried even within the same second. The
	// record stays behind as a tombstone so a retry is told "used up"
	// rather than "never existed"; metadata lookups and the reaper remove
	// the tombstone.
	if updated.QuotaExhausted() {
		if err := s.objects.Delete(id); err != nil {
			log.Printf("ERROR: failed to delete exhausted object %s: %v", id, err)
		}
	}

	return updated, reader, nil
}

// GetMetadata returns display information for a link without charging a
// download and without requiring a password. Calling it any number of
// times never changes the download counter.
func (s *FileService) GetMetadata(id string) (*Metadata, error) {
	link, err := s.links.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrFileNotFound
		}
		return nil, &apperrors.StorageError{Op: "lookup file link", Err: err}
	}

	if link.ExpiredAt(s.now()) {
		return nil, apperrors.ErrLinkExpired
	}

	// A record whose object is gone must not resolve; same self-heal as the
	// download path.
	exists, err := s.objects.Exists(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		if delErr := s.links.Delete(id); delErr != nil {
			log.Printf("ERROR: failed to delete orphaned record %s: %v", id, delErr)
		}
		return nil, apperrors.ErrFileNotFound
	}

	return &Metadata{
		ID:                 link.ID,
		OriginalName:       link.OriginalName,
		SizeBytes:          link.SizeBytes,
		ExpiresAt:          link.ExpiresAt,
		DownloadQuota:      link.DownloadQuota,
		DownloadsRemaining: link.DownloadsRemaining(),
		PasswordProtected:  link.PasswordHash != nil,
		CreatedAt:          link.CreatedAt,
	}, nil
}
