package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/R4255/news-portal/internal/auth"
	"github.com/R4255/news-portal/internal/config"
	"github.com/R4255/news-portal/internal/imageproxy"
	"github.com/R4255/news-portal/internal/logger"
	"github.com/R4255/news-portal/internal/news"
	"github.com/R4255/news-portal/internal/newsapi"
	"github.com/R4255/news-portal/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	log        = zap.NewNop()
)

func main() {
	err := rootCmd.Execute()
	logger.Sync(log)
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsportal",
	Short:   "Top headlines portal",
	Long:    "newsportal serves NewsAPI top headlines by category, with search, an image proxy and user accounts.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		log, err = logger.New(cfg.Logging.Env, level)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		if path != "" {
			log.Debug("loaded config", zap.String("path", path))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(headlinesCmd)
	rootCmd.AddCommand(usersCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsportal", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsportal/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Set NEWSAPI_KEY and SECRET_KEY in the environment before running 'newsportal serve'.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and user database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		stats, err := store.GetStats(ctx)
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Configuration:")
		fmt.Printf("  Listen address: %s\n", cfg.Addr())
		fmt.Printf("  Database: %s\n", redactURL(cfg.DatabaseURL()))
		fmt.Printf("  NewsAPI key: %s\n", setOrMissing(cfg.APIKey()))
		fmt.Printf("  Session secret: %s\n", setOrMissing(cfg.SessionSecret()))
		fmt.Printf("  Login required: %t\n", cfg.Server.RequireLogin)
		fmt.Println("\nUsers:")
		fmt.Printf("  Total: %d\n", stats.TotalUsers)
		fmt.Printf("  Active (30 days): %d\n", stats.ActiveUsers)
		if stats.LastSignupAt != nil {
			fmt.Printf("  Last signup: %s\n", stats.LastSignupAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

// --- serve command ---

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serveHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = servePort
		}

		ctx := cmd.Context()
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		client := newsClient()
		if !client.IsConfigured() {
			log.Warn("no NewsAPI key configured, pages will be empty", zap.String("env", cfg.News.APIKeyEnv))
		}

		srv, err := server.New(server.Options{
			News: newsService(client),
			Images: imageproxy.New(imageproxy.Options{
				Timeout:              cfg.Images.Timeout,
				TTL:                  cfg.Images.CacheTTL,
				MaxEntries:           cfg.Images.CacheMaxEntries,
				MaxBytes:             cfg.Images.MaxBytes,
				AllowPrivateNetworks: cfg.Images.AllowPrivateNetworks,
				Logger:               log,
			}),
			Auth: auth.NewManager(store, auth.Options{
				Secret: cfg.SessionSecret(),
				Secure: cfg.Server.SecureCookies,
				Logger: log,
			}),
			Store:        store,
			RequireLogin: cfg.Server.RequireLogin,
			SiteURL:      "http://" + cfg.Addr(),
			Logger:       log,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Starting server at http://%s\n", cfg.Addr())
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, cfg.Addr())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Interface to listen on")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 5000, "Port to run server on")
}

// --- headlines command ---

var (
	headlinesPage  int
	headlinesQuery string
	headlinesJSON  bool
)

var headlinesCmd = &cobra.Command{
	Use:   "headlines [category]",
	Short: "Print a page of top headlines",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newsClient()
		if !client.IsConfigured() {
			return fmt.Errorf("no NewsAPI key: set %s", cfg.News.APIKeyEnv)
		}

		category := ""
		if len(args) > 0 {
			category = args[0]
		}
		q := news.NewQuery(category, headlinesPage, headlinesQuery)
		result := newsService(client).Page(cmd.Context(), q)

		if headlinesJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Articles)
		}

		fmt.Printf("%s headlines, page %d of %d (%d results)\n\n",
			q.Category.Title(), q.Page, result.TotalPages, result.TotalResults)
		if len(result.Articles) == 0 {
			fmt.Println("No headlines available.")
			return nil
		}
		for i, a := range result.Articles {
			fmt.Printf("%2d. %s\n", (q.Page-1)*news.PageSize+i+1, a.Title)
			fmt.Printf("    %s | %s\n", a.SourceName, a.PublishedDate)
			fmt.Printf("    %s\n", a.URL)
		}
		return nil
	},
}

func init() {
	headlinesCmd.Flags().IntVarP(&headlinesPage, "page", "p", 1, "Page number (1-5)")
	headlinesCmd.Flags().StringVarP(&headlinesQuery, "query", "q", "", "Search keywords")
	headlinesCmd.Flags().BoolVar(&headlinesJSON, "json", false, "Print articles as JSON")
}

func newsClient() *newsapi.Client {
	return newsapi.NewClient(newsapi.Options{
		APIKey:  cfg.APIKey(),
		BaseURL: cfg.News.BaseURL,
		Timeout: cfg.News.Timeout,
		Retries: cfg.News.Retries,
		Logger:  log,
	})
}

func newsService(client *newsapi.Client) *news.Service {
	return news.NewService(client, news.Options{
		Language:   cfg.News.Language,
		TTL:        cfg.News.CacheTTL,
		MaxEntries: cfg.News.CacheMaxEntries,
		Timeout:    cfg.News.Timeout,
		Logger:     log,
	})
}

func setOrMissing(v string) string {
	if v == "" {
		return "missing"
	}
	return "set"
}

// redactURL hides the password of a database URL.
func redactURL(u string) string {
	scheme, rest, ok := strings.Cut(u, "://")
	if !ok {
		return u
	}
	creds, host, ok := strings.Cut(rest, "@")
	if !ok {
		return u
	}
	user, _, hasPassword := strings.Cut(creds, ":")
	if !hasPassword {
		return u
	}
	return scheme + "://" + user + ":***@" + host
}
