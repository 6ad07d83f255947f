package models

import "time"

// FileLink represents a shared file record in the database.
// Its ID doubles as the public link token and as the object store key
// for the stored bytes.
type FileLink struct {
	// ID is a UUID primary key. IDs are generated fresh for every upload
	// and are never reused after deletion.
	ID string `gorm:"primaryKey;size:36"`

	// OriginalName is the display name shown to the downloader.
	OriginalName string `gorm:"size:255;not null"`

	// SizeBytes is the byte length of the stored object.
	SizeBytes int64 `gorm:"not null"`

	// PasswordHash holds the bcrypt hash of the link password.
	// nil means the link is not password protected.
	PasswordHash *string `gorm:"size:60"`

	// ExpiresAt is the moment the link stops working.
	// nil means the link never expires by time. Immutable after creation.
	ExpiresAt *time.Time `gorm:"index"`

	// DownloadQuota is the maximum number of successful downloads.
	// nil means unlimited.
	DownloadQuota *int64

	// DownloadsConsumed counts successful downloads so far.
	// It only ever goes up, and stays <= DownloadQuota when a quota is set.
	DownloadsConsumed int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// ExpiredAt reports whether the link's time window has passed at the
// given instant. Links without an expiry never expire.
func (f *FileLink) ExpiredAt(now time.Time) bool {
	return f.ExpiresAt != nil && !now.Before(*f.ExpiresAt)
}

// QuotaExhausted reports whether the download quota has been used up.
// Links without a quota are never exhausted.
func (f *FileLink) QuotaExhausted() bool {
	return f.DownloadQuota != nil && f.DownloadsConsumed >= *f.DownloadQuota
}

// DownloadsRemaining returns how many successful downloads are left,
// or nil when the link has no quota.
func (f *FileLink) DownloadsRemaining() *int64 {
	if f.DownloadQuota == nil {
		return nil
	}
	remaining := *f.DownloadQuota - f.DownloadsConsumed
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}
