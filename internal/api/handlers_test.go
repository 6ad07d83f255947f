package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/hideshare/hideshare/internal/models"
	"github.com/hideshare/hideshare/internal/repository"
	"github.com/hideshare/hideshare/internal/services"
	"github.com/hideshare/hideshare/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testBaseURL = "http://share.test"

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.FileLink{}, &models.Download{}))

	store, err := storage.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	fileService := services.NewFileService(repository.NewFileLinkRepository(db), store)
	validator := services.NewUploadValidator(1024 * 1024)

	// Fresh channel per test so events from one test never leak into another.
	DownloadEventsChannel = make(chan models.DownloadEvent, 16)

	router := gin.New()
	SetupRoutes(router, fileService, validator, testBaseURL, 16)
	return router
}

// uploadFile posts a multipart upload and returns the response recorder.
func uploadFile(t *testing.T, router *gin.Engine, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// uploadedID extracts the link id from a successful upload response.
func uploadedID(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	require.Equal(t, http.StatusCreated, w.Code, "upload failed: %s", w.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id, _ := resp["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	router := newTestRouter(t)

	content := []byte("round trip payload")
	w := uploadFile(t, router, "payload.txt", content, map[string]string{"expiry": "1h"})
	id := uploadedID(t, w)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testBaseURL+"/download/"+id, resp["download_link"])
	assert.Equal(t, false, resp["password_protected"])
	assert.NotEmpty(t, resp["expires_at"])

	dw := httptest.NewRecorder()
	router.ServeHTTP(dw, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	require.Equal(t, http.StatusOK, dw.Code)
	assert.Equal(t, content, dw.Body.Bytes())
	assert.Contains(t, dw.Header().Get("Content-Disposition"), "payload.txt")
}

func TestUpload_RejectsDisallowedType(t *testing.T) {
	router := newTestRouter(t)

	w := uploadFile(t, router, "malware.exe", []byte("MZ..."), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_RejectsOversizedFile(t *testing.T) {
	router := newTestRouter(t)

	// The test router's ceiling is 1 MiB.
	big := bytes.Repeat([]byte("a"), 1024*1024+1)
	w := uploadFile(t, router, "big.txt", big, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestUpload_RejectsInvalidExpiry(t *testing.T) {
	router := newTestRouter(t)

	w := uploadFile(t, router, "a.txt", []byte("hello"), map[string]string{"expiry": "2h"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownload_PasswordFlow(t *testing.T) {
	router := newTestRouter(t)

	w := uploadFile(t, router, "secret.txt", []byte("classified"), map[string]string{"password": "abc123"})
	id := uploadedID(t, w)

	// No credential: the client should prompt for a password.
	dw := httptest.NewRecorder()
	router.ServeHTTP(dw, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	assert.Equal(t, http.StatusUnauthorized, dw.Code)

	// Wrong credential.
	dw = httptest.NewRecorder()
	router.ServeHTTP(dw, httptest.NewRequest(http.MethodGet, "/download/"+id+"?password=wrong", nil))
	assert.Equal(t, http.StatusForbidden, dw.Code)

	// Correct credential streams the file.
	dw = httptest.NewRecorder()
	router.ServeHTTP(dw, httptest.NewRequest(http.MethodGet, "/download/"+id+"?password=abc123", nil))
	require.Equal(t, http.StatusOK, dw.Code)
	assert.Equal(t, "classified", dw.Body.String())
}

func TestDownload_SingleUseLinkBecomesGone(t *testing.T) {
	router := newTestRouter(t)

	w := uploadFile(t, router, "once.txt", []byte("one shot"), map[string]string{
		"expiry":        "permanent",
		"max_downloads": "1",
	})
	id := uploadedID(t, w)

	dw := httptest.NewRecorder()
	router.ServeHTTP(dw, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	require.Equal(t, http.StatusOK, dw.Code)

	dw = httptest.NewRecorder()
	router.ServeHTTP(dw, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	require.Equal(t, http.StatusGone, dw.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(dw.Body.Bytes(), &resp))
	assert.Equal(t, "quota_exhausted", resp["reason"])
}

func TestUpload_SentinelMeansUnlimited(t *testing.T) {
	router := newTestRouter(t)

	w := uploadFile(t, router, "free.txt", []byte("no limits"), map[string]string{
		"expiry":        "permanent",
		"max_downloads": "9999",
	})
	id := uploadedID(t, w)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	_, hasRemaining := resp["downloads_remaining"]
	assert.False(t, hasRemaining, "sentinel uploads must have no download limit")

	// Well past any small quota.
	for i := 0; i < 5; i++ {
		dw := httptest.NewRecorder()
		router.ServeHTTP(dw, httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
		require.Equal(t, http.StatusOK, dw.Code)
	}
}

func TestFileInfo_ReportsStateWithoutCharging(t *testing.T) {
	router := newTestRouter(t)

	w := uploadFile(t, router, "info.txt", []byte("observable"), map[string]string{
		"password":      "abc123",
		"max_downloads": "3",
	})
	id := uploadedID(t, w)

	for i := 0; i < 4; i++ {
		iw := httptest.NewRecorder()
		router.ServeHTTP(iw, httptest.NewRequest(http.MethodGet, "/file-info/"+id, nil))
		require.Equal(t, http.StatusOK, iw.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(iw.Body.Bytes(), &resp))
		assert.Equal(t, "info.txt", resp["original_name"])
		assert.Equal(t, float64(len("observable")), resp["size"])
		assert.Equal(t, true, resp["password_protected"])
		// Polling metadata never consumes a download.
		assert.Equal(t, float64(3), resp["downloads_remaining"])
	}
}

func TestFileInfo_UnknownID(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/file-info/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQRCode_ForLiveLink(t *testing.T) {
	router := newTestRouter(t)

	w := uploadFile(t, router, "qr.txt", []byte("scan me"), nil)
	id := uploadedID(t, w)

	qw := httptest.NewRecorder()
	router.ServeHTTP(qw, httptest.NewRequest(http.MethodGet, "/qr/"+id, nil))
	require.Equal(t, http.StatusOK, qw.Code)
	assert.Equal(t, "image/png", qw.Header().Get("Content-Type"))
	// PNG magic bytes.
	assert.True(t, bytes.HasPrefix(qw.Body.Bytes(), []byte{0x89, 'P', 'N', 'G'}))

	qw = httptest.NewRecorder()
	router.ServeHTTP(qw, httptest.NewRequest(http.MethodGet, "/qr/unknown", nil))
	assert.Equal(t, http.StatusNotFound, qw.Code)
}

func TestDownload_QueuesDownloadEvent(t *testing.T) {
	router := newTestRouter(t)

	w := uploadFile(t, router, "tracked.txt", []byte("tracked"), nil)
	id := uploadedID(t, w)

	req := httptest.NewRequest(http.MethodGet, "/download/"+id, nil)
	req.Header.Set("User-Agent", "test-agent")
	dw := httptest.NewRecorder()
	router.ServeHTTP(dw, req)
	require.Equal(t, http.StatusOK, dw.Code)

	select {
	case event := <-DownloadEventsChannel:
		assert.Equal(t, id, event.FileLinkID)
		assert.Equal(t, "test-agent", event.UserAgent)
	default:
		t.Fatal("expected a download event to be queued")
	}
}
