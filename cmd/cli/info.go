package cli

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/hideshare/hideshare/cmd"
	"github.com/hideshare/hideshare/internal/config"
	apperrors "github.com/hideshare/hideshare/internal/errors"
	"github.com/hideshare/hideshare/internal/repository"
	"github.com/hideshare/hideshare/internal/services"
	"github.com/hideshare/hideshare/internal/storage"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// InfoCmd représente la commande 'info'
var InfoCmd = &cobra.Command{
	Use:   "info [link-id]",
	Short: "Get information about a shared file link",
	Long:  `Get metadata and download statistics for the provided link id.`,
	Args:  cobra.ExactArgs(1),
	Run:   runInfo,
}

func init() {
	cmd.RootCmd.AddCommand(InfoCmd)
}

// runInfo exécute la logique pour la commande info
func runInfo(cmd *cobra.Command, args []string) {
	id := args[0]

	if id == "" {
		fmt.Println("Error: link id is required")
		os.Exit(1)
	}

	// Charger la configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Échec du chargement de la configuration : %v", err)
	}

	// Initialiser la base de données
	db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
	if err != nil {
		log.Fatalf("Échec de la connexion à la base de données : %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("FATAL: Échec de l'obtention de la base de données SQL sous-jacente: %v", err)
	}
	defer sqlDB.Close()

	objectStore, err := storage.NewDiskStore(cfg.Storage.Directory)
	if err != nil {
		log.Fatalf("Échec de l'initialisation du stockage objet : %v", err)
	}

	// Initialiser les repositories et services nécessaires
	linkRepo := repository.NewFileLinkRepository(db)
	downloadRepo := repository.NewDownloadRepository(db)
	fileService := services.NewFileService(linkRepo, objectStore)

	meta, err := fileService.GetMetadata(id)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrFileNotFound):
			fmt.Printf("Error: link '%s' not found\n", id)
		case errors.Is(err, apperrors.ErrLinkExpired):
			fmt.Printf("Error: link '%s' has expired\n", id)
		default:
			fmt.Printf("Error retrieving link info: %v\n", err)
		}
		os.Exit(1)
	}

	totalDownloads, err := downloadRepo.CountDownloadsByLinkID(id)
	if err != nil {
		fmt.Printf("Error retrieving download statistics: %v\n", err)
		os.Exit(1)
	}

	// Afficher les résultats
	fmt.Printf("Informations pour le lien: %s\n", id)
	fmt.Printf("Nom du fichier: %s\n", meta.OriginalName)
	fmt.Printf("Taille: %d octets\n", meta.SizeBytes)
	fmt.Printf("Protégé par mot de passe: %t\n", meta.PasswordProtected)
	if meta.ExpiresAt != nil {
		fmt.Printf("Expire le: %s\n", meta.ExpiresAt.Format(time.RFC3339))
	} else {
		fmt.Println("Expire le: jamais")
	}
	if meta.DownloadsRemaining != nil {
		fmt.Printf("Téléchargements restants: %d\n", *meta.DownloadsRemaining)
	} else {
		fmt.Println("Téléchargements restants: illimités")
	}
	fmt.Printf("Total de téléchargements: %d\n", totalDownloads)
	fmt.Printf("Date de création: %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05"))
}
