package repository

import (
	"fmt"

	"github.com/hideshare/hideshare/internal/models"
	"gorm.io/gorm"
)

// DownloadRepository est une interface qui définit les méthodes d'accès aux données
type DownloadRepository interface {
	CreateDownload(download *models.Download) error
	CountDownloadsByLinkID(linkID string) (int, error)
}

// GormDownloadRepository est l'implémentation de l'interface DownloadRepository utilisant GORM.
type GormDownloadRepository struct {
	db *gorm.DB
}

// NewDownloadRepository crée et retourne une nouvelle instance de GormDownloadRepository.
func NewDownloadRepository(db *gorm.DB) *GormDownloadRepository {
	return &GormDownloadRepository{db: db}
}

// CreateDownload insère un nouvel enregistrement de téléchargement dans la base de données.
func (r *GormDownloadRepository) CreateDownload(download *models.Download) error {
	if err := r.db.Create(download).Error; err != nil {
		return fmt.Errorf("failed to create download: %w", err)
	}
	return nil
}

// CountDownloadsByLinkID compte le nombre total de téléchargements pour un lien donné.
func (r *GormDownloadRepository) CountDownloadsByLinkID(linkID string) (int, error) {
	var count int64
	if err := r.db.Model(&models.Download{}).Where("file_link_id = ?", linkID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count downloads for link %s: %w", linkID, err)
	}
	return int(count), nil
}
