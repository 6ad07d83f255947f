package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/hideshare/hideshare/cmd"
	"github.com/hideshare/hideshare/internal/config"
	"github.com/hideshare/hideshare/internal/repository"
	"github.com/hideshare/hideshare/internal/services"
	"github.com/hideshare/hideshare/internal/storage"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	uploadFileFlag         string
	uploadPasswordFlag     string
	uploadExpiryFlag       string
	uploadMaxDownloadsFlag int64
)

// UploadCmd représente la commande 'upload'
var UploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Partage un fichier local et affiche le lien de téléchargement.",
	Long: `Cette commande valide un fichier local, le stocke et affiche le lien
de partage généré.

Exemple:
  hideshare upload --file=./photo.png --expiry=1h --password=abc123 --max-downloads=1`,
	Run: func(cmd *cobra.Command, args []string) {
		if uploadFileFlag == "" {
			fmt.Println("Error: --file flag is required")
			os.Exit(1)
		}

		f, err := os.Open(uploadFileFlag)
		if err != nil {
			fmt.Printf("Error: cannot open file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			fmt.Printf("Error: cannot stat file: %v\n", err)
			os.Exit(1)
		}

		// Charger la configuration
		cfg, err := config.LoadConfig()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		db, err := gorm.Open(sqlite.Open(cfg.Database.Name), &gorm.Config{})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("FATAL: Échec de l'obtention de la base de données SQL sous-jacente: %v", err)
		}
		defer sqlDB.Close()

		objectStore, err := storage.NewDiskStore(cfg.Storage.Directory)
		if err != nil {
			log.Fatalf("Failed to initialize object store: %v", err)
		}

		// Initialiser les repositories et services nécessaires
		linkRepo := repository.NewFileLinkRepository(db)
		fileService := services.NewFileService(linkRepo, objectStore)
		validator := services.NewUploadValidator(cfg.Upload.MaxSizeBytes)

		// Valider le fichier avant toute écriture (taille, extension, contenu).
		head := make([]byte, services.SniffSize)
		n, err := io.ReadFull(f, head)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			fmt.Printf("Error: cannot read file: %v\n", err)
			os.Exit(1)
		}
		if err := validator.Validate(info.Name(), "", info.Size(), head[:n]); err != nil {
			fmt.Printf("Error: file rejected: %v\n", err)
			os.Exit(1)
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			fmt.Printf("Error: cannot rewind file: %v\n", err)
			os.Exit(1)
		}

		// Normaliser le quota : 0 ou négatif signifie illimité.
		var quota *int64
		if uploadMaxDownloadsFlag > 0 {
			quota = &uploadMaxDownloadsFlag
		}

		link, err := fileService.CreateFileLink(f, info.Name(), uploadPasswordFlag, uploadExpiryFlag, quota)
		if err != nil {
			log.Fatalf("Failed to create file link: %v", err)
		}

		fmt.Printf("Fichier partagé avec succès:\n")
		fmt.Printf("ID: %s\n", link.ID)
		fmt.Printf("Lien: %s/download/%s\n", cfg.Server.BaseURL, link.ID)
		if link.ExpiresAt != nil {
			fmt.Printf("Expire le: %s\n", link.ExpiresAt.Format(time.RFC3339))
		} else {
			fmt.Println("Expire le: jamais")
		}
		if link.DownloadQuota != nil {
			fmt.Printf("Téléchargements max: %d\n", *link.DownloadQuota)
		}
	},
}

func init() {
	UploadCmd.Flags().StringVar(&uploadFileFlag, "file", "", "Path of the local file to share")
	UploadCmd.Flags().StringVar(&uploadPasswordFlag, "password", "", "Optional download password")
	UploadCmd.Flags().StringVar(&uploadExpiryFlag, "expiry", services.DefaultTTL, "Expiry: 10m, 20m, 30m, 1h or permanent")
	UploadCmd.Flags().Int64Var(&uploadMaxDownloadsFlag, "max-downloads", 0, "Maximum number of downloads (0 = unlimited)")

	UploadCmd.MarkFlagRequired("file")

	cmd.RootCmd.AddCommand(UploadCmd)
}
