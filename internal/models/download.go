package models

import "time"

// Download represents a successful download recorded in the database.
// This model tracks link usage for the 'info' command and diagnostics.
type Download struct {
	// ID is the primary key with auto-increment functionality
	ID uint `gorm:"primaryKey"`

	// FileLinkID references the link that was downloaded.
	// Indexed so counting downloads per link stays cheap. There is no
	// foreign key constraint: links are deleted eagerly while their
	// download history is kept for diagnostics.
	FileLinkID string `gorm:"index;size:36"`

	// Timestamp records the moment the download was authorized
	Timestamp time.Time

	// UserAgent stores the browser/client information from the HTTP request
	UserAgent string `gorm:"size:255"`

	// IPAddress stores the IP address of the downloader
	IPAddress string `gorm:"size:50"`
}

// DownloadEvent represents a raw download event intended to be passed
// through channels. This lightweight struct is used for asynchronous
// processing between goroutines; a worker turns it into a Download row.
type DownloadEvent struct {
	FileLinkID string    // The ID of the link that was downloaded
	Timestamp  time.Time // When the download was authorized
	UserAgent  string    // Browser/client information
	IPAddress  string    // Downloader's IP address
}
