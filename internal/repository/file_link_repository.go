package repository

import (
	"errors"
	"fmt"

	apperrors "github.com/hideshare/hideshare/internal/errors"
	"github.com/hideshare/hideshare/internal/models"
	"gorm.io/gorm"
)

// FileLinkRepository est une interface qui définit les méthodes d'accès aux données
type FileLinkRepository interface {
	Create(link *models.FileLink) error
	GetByID(id string) (*models.FileLink, error)
	GetAll() ([]models.FileLink, error)
	ConsumeDownload(id string) (*models.FileLink, error)
	Delete(id string) error
}

// GormFileLinkRepository est l'implémentation de FileLinkRepository utilisant GORM.
type GormFileLinkRepository struct {
	db *gorm.DB
}

// NewFileLinkRepository crée et retourne une nouvelle instance de GormFileLinkRepository.
func NewFileLinkRepository(db *gorm.DB) *GormFileLinkRepository {
	return &GormFileLinkRepository{db: db}
}

// Create insère un nouvel enregistrement de lien dans la base de données.
func (r *GormFileLinkRepository) Create(link *models.FileLink) error {
	if err := r.db.Create(link).Error; err != nil {
		return fmt.Errorf("failed to create file link: %w", err)
	}
	return nil
}

// GetByID récupère un lien de la base de données en utilisant son id public.
func (r *GormFileLinkRepository) GetByID(id string) (*models.FileLink, error) {
	var link models.FileLink
	if err := r.db.Where("id = ?", id).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

// GetAll récupère tous les liens de la base de données.
func (r *GormFileLinkRepository) GetAll() ([]models.FileLink, error) {
	var links []models.FileLink
	if err := r.db.Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve all file links: %w", err)
	}
	return links, nil
}

// ConsumeDownload atomically charges one download against the record.
//
// The quota check and the counter increment are a single guarded UPDATE, so
// two concurrent calls against a quota of 1 can never both succeed: the
// database applies the statements one at a time and the WHERE clause re-reads
// the counter each time. Zero rows affected means the caller lost the race
// (or the record vanished meanwhile).
//
// Returns the record as it stands after the increment, ErrQuotaExhausted when
// the quota was already used up, or ErrFileNotFound when the record is gone.
func (r *GormFileLinkRepository) ConsumeDownload(id string) (*models.FileLink, error) {
	res := r.db.Model(&models.FileLink{}).
		Where("id = ? AND (download_quota IS NULL OR downloads_consumed < download_quota)", id).
		UpdateColumn("downloads_consumed", gorm.Expr("downloads_consumed + 1"))
	if res.Error != nil {
		return nil, &apperrors.StorageError{Op: "consume download", Err: res.Error}
	}

	if res.RowsAffected == 0 {
		// Either the quota guard rejected the update or the record is gone.
		// Re-read to tell the two apart.
		var link models.FileLink
		if err := r.db.Where("id = ?", id).First(&link).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrFileNotFound
			}
			return nil, &apperrors.StorageError{Op: "consume download", Err: err}
		}
		return nil, apperrors.ErrQuotaExhausted
	}

	var link models.FileLink
	if err := r.db.Where("id = ?", id).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Deleted between the increment and the re-read (reaper race).
			return nil, apperrors.ErrFileNotFound
		}
		return nil, &apperrors.StorageError{Op: "consume download", Err: err}
	}
	return &link, nil
}

// Delete supprime un enregistrement de lien. Deleting an id that is already
// gone is not an error, so the reaper and the quota path can race safely.
func (r *GormFileLinkRepository) Delete(id string) error {
	if err := r.db.Where("id = ?", id).Delete(&models.FileLink{}).Error; err != nil {
		return fmt.Errorf("failed to delete file link %s: %w", id, err)
	}
	return nil
}
