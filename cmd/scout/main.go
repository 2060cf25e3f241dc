package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/jvaldes/scout-tui/internal/backend"
	"github.com/jvaldes/scout-tui/internal/bus"
	"github.com/jvaldes/scout-tui/internal/cache"
	"github.com/jvaldes/scout-tui/internal/config"
	"github.com/jvaldes/scout-tui/internal/gmailer"
	"github.com/jvaldes/scout-tui/internal/services"
	"github.com/jvaldes/scout-tui/internal/store"
	"github.com/jvaldes/scout-tui/internal/stream"
	"github.com/jvaldes/scout-tui/internal/tui"
	"github.com/jvaldes/scout-tui/internal/version"
	"github.com/jvaldes/scout-tui/pkg/auth"
)

func main() {
	configPathFlag := flag.String("config", "", "Path to JSON configuration file (default: ~/.config/scout/config.json)")
	userFlag := flag.String("user", "", "User id for the remote document store (default: $SCOUT_USER)")
	localFlag := flag.Bool("local", false, "Run against the local cache only, without the remote store")
	versionFlag := flag.Bool("version", false, "Show version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n\n", version.GetVersionString())
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "  %s                        # Run with default configuration\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --local                # Run without the remote document store\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --config custom.json   # Use custom configuration\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  BACKEND_URL                Outreach backend base URL\n")
		fmt.Fprintf(os.Stderr, "  SCOUT_USER                 Default user id\n")
		fmt.Fprintf(os.Stderr, "  SCOUT_CONFIG               Override default config file path\n")
		fmt.Fprintf(os.Stderr, "  SCOUT_API_TOKEN            Bearer token for the backend\n")
		fmt.Fprintf(os.Stderr, "  FIREBASE_CREDENTIALS_PATH  Service-account JSON for the document store\n")
		fmt.Fprintf(os.Stderr, "  FIRESTORE_PROJECT_ID       Firebase project id\n")
	}

	flag.Parse()

	if *versionFlag {
		fmt.Println(version.GetDetailedVersionString())
		return
	}

	configPath := *configPathFlag
	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("Warning: could not load configuration: %v", err)
		cfg = config.DefaultConfig()
	}

	logger := setupLogger(cfg)

	userID := *userFlag
	if userID == "" {
		userID = os.Getenv("SCOUT_USER")
	}
	if userID == "" {
		log.Fatal("A user id is required. Provide it via --user or SCOUT_USER.")
	}

	ctx := context.Background()

	cachePath := cfg.CachePath
	if cachePath == "" {
		cachePath = config.DefaultCachePath()
	}
	localStore, err := cache.Open(ctx, cachePath)
	if err != nil {
		log.Fatalf("Could not open local cache at %s: %v", cachePath, err)
	}
	defer localStore.Close()

	// The gateway is remote when configured, with the local cache always
	// available as the write-failure fallback.
	var gateway store.Gateway = localStore
	if !*localFlag && cfg.Firestore.ProjectID != "" {
		fsGateway, err := store.NewFirestoreGateway(ctx, cfg.Firestore.CredentialsPath, cfg.Firestore.ProjectID)
		if err != nil {
			log.Fatalf("Could not connect to the document store: %v", err)
		}
		defer fsGateway.Close()
		fsGateway.Debug = cfg.Firestore.Debug
		fsGateway.SetLogger(logger)
		gateway = fsGateway
	} else if !*localFlag {
		log.Println("No document store configured; running against the local cache only.")
	}

	var tokens backend.TokenProvider
	if p := auth.NewEnvTokenProvider(); p != nil {
		tokens = p
	} else if cfg.Gmail.Enabled {
		credPath, tokenPath := credentialPaths(cfg)
		tokens = auth.NewOAuthTokenProvider(auth.NewOAuth2Config(credPath, tokenPath,
			"https://www.googleapis.com/auth/userinfo.email"))
	}

	client := backend.NewClient(cfg.Backend.URL, cfg.GetBackendTimeout(), tokens)
	client.SetLogger(logger)

	eventBus := bus.New()

	contactSvc := services.NewContactService(gateway, localStore, eventBus)
	contactSvc.SetLogger(logger)
	draftSvc := services.NewDraftService(gateway, localStore)
	draftSvc.SetLogger(logger)
	historySvc := services.NewHistoryService(gateway)
	historySvc.SetLogger(logger)
	templateSvc := services.NewTemplateService(gateway)
	templateSvc.SetLogger(logger)
	undoSvc := services.NewUndoService(contactSvc)
	undoSvc.SetLogger(logger)

	// First sign-in against a remote store lifts any pre-existing local
	// data into the document.
	if _, isRemote := gateway.(*store.FirestoreGateway); isRemote {
		migrationSvc := services.NewMigrationService(gateway, localStore)
		migrationSvc.SetLogger(logger)
		if migrated, err := migrationSvc.MigrateLocalData(ctx, userID); err != nil {
			log.Printf("Warning: local data migration failed: %v", err)
		} else if migrated {
			log.Println("Migrated local data into the document store.")
		}
	}

	// Mail goes out through the user's own mailbox when Gmail is
	// enabled, otherwise through the backend's mail service.
	var mailer tui.Mailer = &backendMailer{client: client}
	if cfg.Gmail.Enabled {
		credPath, tokenPath := credentialPaths(cfg)
		gm, err := gmailer.Connect(ctx, credPath, tokenPath)
		if err != nil {
			log.Printf("Warning: Gmail connection failed, using backend mail: %v", err)
		} else {
			gm.SetLogger(logger)
			mailer = gm
		}
	}

	chatCtl := stream.NewChatController(client, eventBus)
	chatCtl.SetLogger(logger)
	draftCtl := stream.NewDraftController(client)
	draftCtl.SetLogger(logger)

	app := tui.NewApp(userID, tui.Services{
		Contacts:  contactSvc,
		Drafts:    draftSvc,
		History:   historySvc,
		Templates: templateSvc,
		Undo:      undoSvc,
		Chat:      chatCtl,
		Draft:     draftCtl,
		Mailer:    mailer,
	}, eventBus)
	app.SetLogger(logger)

	if err := app.Run(ctx); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

// setupLogger returns a file logger when configured, nil otherwise. A
// nil logger keeps the TUI quiet; services treat it as a no-op.
func setupLogger(cfg *config.Config) *log.Logger {
	if cfg.LogFile == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0755); err != nil {
		log.Printf("Warning: could not create log directory: %v", err)
		return nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("Warning: could not open log file: %v", err)
		return nil
	}
	return log.New(f, "", log.LstdFlags|log.Lshortfile)
}

// backendMailer routes sends through the backend mail endpoint.
type backendMailer struct {
	client *backend.Client
}

func (m *backendMailer) SendMessage(ctx context.Context, to, subject, body string) (string, error) {
	err := m.client.SendEmail(ctx, backend.EmailMessage{To: to, Subject: subject, Body: body})
	return "", err
}

func credentialPaths(cfg *config.Config) (string, string) {
	credPath, tokenPath := config.DefaultCredentialPaths()
	if cfg.Gmail.CredentialsPath != "" {
		credPath = cfg.Gmail.CredentialsPath
	}
	if cfg.Gmail.TokenPath != "" {
		tokenPath = cfg.Gmail.TokenPath
	}
	return credPath, tokenPath
}
