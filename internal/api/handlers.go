package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	apperrors "github.com/hideshare/hideshare/internal/errors"
	"github.com/hideshare/hideshare/internal/models"
	"github.com/hideshare/hideshare/internal/services"
	qrcode "github.com/skip2/go-qrcode"
)

// UnlimitedDownloadsSentinel is the wire-level value meaning "no download
// limit". It exists only at this boundary; inside the core an unlimited
// quota is a nil pointer, never a magic number.
const UnlimitedDownloadsSentinel = 9999

// DownloadEventsChannel is the global channel used to send download events.
// It enables asynchronous recording of downloads without blocking the
// byte stream to the client.
var DownloadEventsChannel chan models.DownloadEvent

// SetupRoutes configures all Gin API routes and injects necessary dependencies.
// Parameters:
//   - router: Gin engine instance to configure routes on
//   - fileService: business logic service for link operations
//   - validator: upload intake validation
//   - baseURL: public base URL used when rendering download links
//   - bufferSize: size of the download events channel buffer
func SetupRoutes(router *gin.Engine, fileService *services.FileService, validator *services.UploadValidator, baseURL string, bufferSize int) {
	if DownloadEventsChannel == nil {
		DownloadEventsChannel = make(chan models.DownloadEvent, bufferSize)
	}

	// The browser frontend is served from another origin.
	router.Use(cors.Default())

	// Health Check Route - used for monitoring service availability
	router.GET("/health", HealthCheckHandler)

	router.POST("/upload", UploadHandler(fileService, validator, baseURL))
	router.GET("/file-info/:id", FileInfoHandler(fileService))
	router.GET("/download/:id", DownloadHandler(fileService))
	router.GET("/qr/:id", QRCodeHandler(fileService, baseURL))
}

// HealthCheckHandler handles the /health route to verify service status.
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseMaxDownloads normalizes the optional max_downloads form value into a
// quota pointer. Absent, non-positive, or sentinel values mean unlimited.
func parseMaxDownloads(raw string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("max_downloads must be an integer: %w", err)
	}
	if n <= 0 || n == UnlimitedDownloadsSentinel {
		return nil, nil
	}
	return &n, nil
}

// UploadHandler handles multipart file uploads and returns the share link.
// Form fields: file (required), password (optional), expiry (optional TTL
// token, default 10m), max_downloads (optional, 9999 means unlimited).
func UploadHandler(fileService *services.FileService, validator *services.UploadValidator, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
			return
		}

		expiry := c.PostForm("expiry")
		if expiry == "" {
			expiry = services.DefaultTTL
		}

		quota, err := parseMaxDownloads(c.PostForm("max_downloads"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		src, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
			return
		}
		defer src.Close()

		// Read the sniffing window, validate, then hand the full stream
		// (head + rest) to the service untouched.
		head := make([]byte, services.SniffSize)
		n, err := io.ReadFull(src, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read uploaded file"})
			return
		}
		head = head[:n]

		declaredType := header.Header.Get("Content-Type")
		if err := validator.Validate(header.Filename, declaredType, header.Size, head); err != nil {
			switch {
			case errors.Is(err, apperrors.ErrFileTooLarge):
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File exceeds maximum allowed size"})
			case errors.Is(err, apperrors.ErrFileTypeNotAllowed):
				c.JSON(http.StatusBadRequest, gin.H{"error": "File type not allowed"})
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			}
			return
		}

		body := io.MultiReader(bytes.NewReader(head), src)
		link, err := fileService.CreateFileLink(body, header.Filename, c.PostForm("password"), expiry, quota)
		if err != nil {
			if errors.Is(err, apperrors.ErrInvalidTTL) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expiry value"})
				return
			}
			log.Printf("Error creating file link: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error saving file"})
			return
		}

		resp := gin.H{
			"message":            "File uploaded successfully",
			"id":                 link.ID,
			"download_link":      downloadLink(baseURL, link.ID),
			"password_protected": link.PasswordHash != nil,
		}
		if link.ExpiresAt != nil {
			resp["expires_at"] = link.ExpiresAt.Format(time.RFC3339)
		}
		if remaining := link.DownloadsRemaining(); remaining != nil {
			resp["downloads_remaining"] = *remaining
		}
		c.JSON(http.StatusCreated, resp)
	}
}

// FileInfoHandler returns link metadata so a client can render state before
// committing to a password-gated download. Polling it never charges a
// download.
func FileInfoHandler(fileService *services.FileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		meta, err := fileService.GetMetadata(c.Param("id"))
		if err != nil {
			respondDeny(c, err)
			return
		}

		resp := gin.H{
			"original_name":      meta.OriginalName,
			"size":               meta.SizeBytes,
			"password_protected": meta.PasswordProtected,
		}
		if meta.ExpiresAt != nil {
			resp["expires_at"] = meta.ExpiresAt.Format(time.RFC3339)
		}
		if meta.DownloadsRemaining != nil {
			resp["downloads_remaining"] = *meta.DownloadsRemaining
		}
		c.JSON(http.StatusOK, resp)
	}
}

// DownloadHandler streams the file once the access controller allows it.
// The password travels as a query parameter, matching the original client.
func DownloadHandler(fileService *services.FileService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		link, reader, err := fileService.Authorize(id, c.Query("password"))
		if err != nil {
			respondDeny(c, err)
			return
		}
		defer reader.Close()

		// The download is considered consumed once authorized; an aborted
		// stream is not refunded.
		event := models.DownloadEvent{
			FileLinkID: link.ID,
			Timestamp:  time.Now(),
			UserAgent:  c.GetHeader("User-Agent"),
			IPAddress:  c.ClientIP(),
		}
		select {
		case DownloadEventsChannel <- event:
		default:
			// Buffer full: drop the event rather than delay the stream.
			log.Printf("WARNING: DownloadEventsChannel is full, dropping event for %s", link.ID)
		}

		extraHeaders := map[string]string{
			"Content-Disposition": fmt.Sprintf("attachment; filename=%q", link.OriginalName),
		}
		c.DataFromReader(http.StatusOK, link.SizeBytes, "application/octet-stream", reader, extraHeaders)
	}
}

// QRCodeHandler renders the download link for a live file as a QR code PNG.
func QRCodeHandler(fileService *services.FileService, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")

		// Same visibility rules as metadata: dead links get no QR code.
		if _, err := fileService.GetMetadata(id); err != nil {
			respondDeny(c, err)
			return
		}

		png, err := qrcode.Encode(downloadLink(baseURL, id), qrcode.Medium, 256)
		if err != nil {
			log.Printf("Error encoding QR code for %s: %v", id, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate QR code"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	}
}

// respondDeny maps a decision error to its stable HTTP status so clients
// can branch without parsing free text.
func respondDeny(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrFileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
	case errors.Is(err, apperrors.ErrLinkExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Link expired", "reason": "expired"})
	case errors.Is(err, apperrors.ErrQuotaExhausted):
		c.JSON(http.StatusGone, gin.H{"error": "Link used up", "reason": "quota_exhausted"})
	case errors.Is(err, apperrors.ErrPasswordRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Password required"})
	case errors.Is(err, apperrors.ErrIncorrectPassword):
		c.JSON(http.StatusForbidden, gin.H{"error": "Incorrect password"})
	default:
		// StorageError and anything unexpected: log server-side, keep the
		// body generic.
		log.Printf("Error handling request for %s: %v", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func downloadLink(baseURL, id string) string {
	return fmt.Sprintf("%s/download/%s", baseURL, id)
}
