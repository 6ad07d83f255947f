package server

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/hideshare/hideshare/cmd"
	"github.com/hideshare/hideshare/internal/api"
	"github.com/hideshare/hideshare/internal/config"
	"github.com/hideshare/hideshare/internal/models"
	"github.com/hideshare/hideshare/internal/reaper"
	"github.com/hideshare/hideshare/internal/repository"
	"github.com/hideshare/hideshare/internal/services"
	"github.com/hideshare/hideshare/internal/storage"
	"github.com/hideshare/hideshare/internal/workers"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// RunServerCmd représente la commande 'run-server' de Cobra.
// C'est le point d'entrée pour lancer le serveur de l'application.
var RunServerCmd = &cobra.Command{
	Use:   "run-server",
	Short: "Lance le serveur API de partage de fichiers et les processus de fond.",
	Long: `Cette commande initialise la base de données et le stockage objet,
démarre les workers asynchrones de téléchargements et le reaper d'expiration,
puis lance le serveur HTTP.`,
	Run: func(cmd *cobra.Command, args []string) {
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

		// SQLite only supports a single writer; serialize connections so
		// concurrent downloads queue instead of failing with SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatalf("Échec de l'obtention de la base de données SQL sous-jacente : %v", err)
		}
		sqlDB.SetMaxOpenConns(1)

		// Migration automatique des modèles
		if err := db.AutoMigrate(&models.FileLink{}, &models.Download{}); err != nil {
			log.Fatalf("Échec de la migration de la base de données : %v", err)
		}

		// Initialiser le stockage objet sur disque
		objectStore, err := storage.NewDiskStore(cfg.Storage.Directory)
		if err != nil {
			log.Fatalf("Échec de l'initialisation du stockage objet : %v", err)
		}

		// Initialiser les repositories
		linkRepo := repository.NewFileLinkRepository(db)
		downloadRepo := repository.NewDownloadRepository(db)

		log.Println("Repositories initialisés.")

		// Initialiser les services métiers
		fileService := services.NewFileService(linkRepo, objectStore)
		validator := services.NewUploadValidator(cfg.Upload.MaxSizeBytes)

		log.Println("Services métiers initialisés.")

		// Initialiser le channel des événements de téléchargement et lancer les workers.
		downloadEventsChan := make(chan models.DownloadEvent, cfg.Events.BufferSize)
		api.DownloadEventsChannel = downloadEventsChan // Set the global channel
		workers.StartDownloadWorkers(cfg.Events.WorkerCount, downloadEventsChan, downloadRepo)

		log.Printf("Channel d'événements de téléchargement initialisé avec un buffer de %d. %d worker(s) démarré(s).",
			cfg.Events.BufferSize, cfg.Events.WorkerCount)

		// Initialiser et lancer le reaper d'expiration.
		reaperInterval := time.Duration(cfg.Reaper.IntervalSeconds) * time.Second
		expiryReaper := reaper.New(linkRepo, objectStore, reaperInterval)
		go expiryReaper.Start()
		log.Printf("Reaper démarré avec un intervalle de %v.", reaperInterval)

		// Configurer le routeur Gin et les handlers API.
		router := gin.Default()
		api.SetupRoutes(router, fileService, validator, cfg.Server.BaseURL, cfg.Events.BufferSize)

		log.Println("Routes API configurées.")

		// Créer le serveur HTTP Gin
		serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
		srv := &http.Server{
			Addr:    serverAddr,
			Handler: router,
		}

		// Démarrer le serveur Gin dans une goroutine anonyme pour ne pas bloquer.
		go func() {
			log.Printf("Démarrage du serveur sur %s", serverAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Échec du démarrage du serveur : %v", err)
			}
		}()

		// Gérer l'arrêt propre du serveur (graceful shutdown).
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM) // Attendre Ctrl+C ou signal d'arrêt

		// Bloquer jusqu'à ce qu'un signal d'arrêt soit reçu.
		<-quit
		log.Println("Signal d'arrêt reçu. Arrêt du serveur...")

		// Arrêt propre du serveur HTTP avec un timeout.
		log.Println("Arrêt en cours... Donnez un peu de temps aux workers pour finir.")
		time.Sleep(5 * time.Second)

		log.Println("Serveur arrêté proprement.")
	},
}

func init() {
	cmd.RootCmd.AddCommand(RunServerCmd)
}
