package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/paulosouza-ec/Avotech/internal/api"
	"github.com/paulosouza-ec/Avotech/internal/correlator"
	"github.com/paulosouza-ec/Avotech/internal/dialogue"
	"github.com/paulosouza-ec/Avotech/internal/dispatch"
	"github.com/paulosouza-ec/Avotech/internal/genai"
	"github.com/paulosouza-ec/Avotech/internal/geo"
	"github.com/paulosouza-ec/Avotech/internal/liveinfo"
	"github.com/paulosouza-ec/Avotech/internal/lockfile"
	"github.com/paulosouza-ec/Avotech/internal/messaging"
	"github.com/paulosouza-ec/Avotech/internal/metrics"
	"github.com/paulosouza-ec/Avotech/internal/models"
	"github.com/paulosouza-ec/Avotech/internal/pharmacy"
	"github.com/paulosouza-ec/Avotech/internal/scheduler"
	"github.com/paulosouza-ec/Avotech/internal/session"
	"github.com/paulosouza-ec/Avotech/internal/store"
	"github.com/paulosouza-ec/Avotech/internal/twiliowhatsapp"
	"github.com/paulosouza-ec/Avotech/internal/util"
	"github.com/paulosouza-ec/Avotech/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for Avotech state data
	DefaultStateDir = "/var/lib/avotech"
	// DefaultWhatsAppDBFileName is the whatsmeow device database filename
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultAppDBFileName is the audit log database filename
	DefaultAppDBFileName = "avotech.db"

	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	if err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], &config); err != nil {
		slog.Error("Failed to parse command line flags", "error", err)
		os.Exit(2)
	}
	if err := config.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Bootstrapping Avotech", "transport", config.Transport, "state_dir", config.StateDir, "api_addr", config.APIAddr)
	if err := run(ctx, config); err != nil {
		slog.Error("Avotech failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("Avotech exited successfully")
}

// Config holds the process configuration after env and flag overrides.
type Config struct {
	StateDir    string
	WhatsAppDSN string
	DatabaseURL string
	Transport   string
	APIAddr     string

	QROutput    string
	NumericCode bool

	OpenAIKey          string
	TranscribeModel    string
	TranscribeLanguage string
	TranscribeDebug    bool

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	SerpAPIKey      string
	BrowserFallback bool
	ChromePath      string
	PhonePattern    string

	NominatimURL string
	OverpassURL  string
	GeoUserAgent string
	SearchRadius int
	CountryCode  string
	IdleTTL      time.Duration
	PendingTTL   time.Duration
	Maintenance  string

	GeocodeTimeout    time.Duration
	NearbyTimeout     time.Duration
	TranscribeTimeout time.Duration
	LookupTimeout     time.Duration
	BrowserTimeout    time.Duration
	DispatchTimeout   time.Duration
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:    os.Getenv("AVOTECH_STATE_DIR"),
		WhatsAppDSN: os.Getenv("WHATSAPP_DB_DSN"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Transport:   strings.ToLower(strings.TrimSpace(os.Getenv("MESSAGING_TRANSPORT"))),
		APIAddr:     os.Getenv("API_ADDR"),

		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		TranscribeModel:    os.Getenv("TRANSCRIBE_MODEL"),
		TranscribeLanguage: os.Getenv("TRANSCRIBE_LANGUAGE"),
		TranscribeDebug:    util.ParseBoolEnv("TRANSCRIBE_DEBUG", false),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:       os.Getenv("TWILIO_FROM_NUMBER"),

		SerpAPIKey:      os.Getenv("SERPAPI_KEY"),
		BrowserFallback: util.ParseBoolEnv("BROWSER_FALLBACK", true),
		ChromePath:      os.Getenv("CHROME_PATH"),
		PhonePattern:    os.Getenv("PHONE_PATTERN"),

		NominatimURL: os.Getenv("NOMINATIM_URL"),
		OverpassURL:  os.Getenv("OVERPASS_URL"),
		GeoUserAgent: os.Getenv("GEO_USER_AGENT"),
		SearchRadius: util.ParseIntEnv("SEARCH_RADIUS_METERS", pharmacy.DefaultRadiusMeters),
		CountryCode:  os.Getenv("COUNTRY_CODE"),
		IdleTTL:      util.ParseDurationEnv("SESSION_IDLE_TTL", scheduler.DefaultIdleTTL),
		PendingTTL:   util.ParseDurationEnv("PENDING_ORDER_TTL", scheduler.DefaultPendingTTL),
		Maintenance:  os.Getenv("MAINTENANCE_SCHEDULE"),

		GeocodeTimeout:    util.ParseDurationEnv("GEOCODE_TIMEOUT", pharmacy.DefaultGeocodeTimeout),
		NearbyTimeout:     util.ParseDurationEnv("NEARBY_TIMEOUT", pharmacy.DefaultNearbyTimeout),
		TranscribeTimeout: util.ParseDurationEnv("TRANSCRIBE_TIMEOUT", genai.DefaultTimeout),
		LookupTimeout:     util.ParseDurationEnv("LOOKUP_TIMEOUT", liveinfo.DefaultPrimaryTimeout),
		BrowserTimeout:    util.ParseDurationEnv("BROWSER_TIMEOUT", liveinfo.DefaultFallbackTimeout),
		DispatchTimeout:   util.ParseDurationEnv("DISPATCH_TIMEOUT", dispatch.DefaultTimeout),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No AVOTECH_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Transport == "" {
		config.Transport = TransportWhatsApp
	}
	if config.CountryCode == "" {
		config.CountryCode = dispatch.DefaultCountryCode
	}
	if config.PhonePattern == "" {
		config.PhonePattern = liveinfo.DefaultPhonePattern
	}
	if config.Maintenance == "" {
		config.Maintenance = scheduler.DefaultMaintenanceSpec
	}
	config.applyStateDirDefaults()

	slog.Debug("environment variables loaded",
		"AVOTECH_STATE_DIR", config.StateDir,
		"WHATSAPP_DB_DSN_SET", os.Getenv("WHATSAPP_DB_DSN") != "",
		"DATABASE_URL_SET", os.Getenv("DATABASE_URL") != "",
		"MESSAGING_TRANSPORT", config.Transport,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"SERPAPI_KEY_SET", config.SerpAPIKey != "",
		"BROWSER_FALLBACK", config.BrowserFallback,
		"API_ADDR", config.APIAddr)

	return config
}

// applyStateDirDefaults places both databases under StateDir when no DSN is given.
func (c *Config) applyStateDirDefaults() {
	if c.WhatsAppDSN == "" {
		c.WhatsAppDSN = "file:" + filepath.Join(c.StateDir, DefaultWhatsAppDBFileName) + "?_foreign_keys=on"
		slog.Debug("No WhatsApp database DSN provided, defaulting to SQLite", "dsn", c.WhatsAppDSN)
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = filepath.Join(c.StateDir, DefaultAppDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", c.DatabaseURL)
	}
}

// parseCommandLineFlags overrides config with command line arguments.
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config *Config) error {
	envWhatsAppDSN := os.Getenv("WHATSAPP_DB_DSN")
	envDatabaseURL := os.Getenv("DATABASE_URL")
	prevStateDir := config.StateDir

	fs.StringVar(&config.QROutput, "qr-output", config.QROutput, "path to write login QR code")
	fs.BoolVar(&config.NumericCode, "numeric-code", config.NumericCode, "use numeric login code instead of QR code")
	fs.StringVar(&config.StateDir, "state-dir", config.StateDir, "state directory for Avotech data (overrides $AVOTECH_STATE_DIR)")
	fs.StringVar(&config.Transport, "transport", config.Transport, "messaging transport: whatsapp or twilio (overrides $MESSAGING_TRANSPORT)")
	fs.StringVar(&config.DatabaseURL, "db-dsn", config.DatabaseURL, "audit log database DSN (overrides $DATABASE_URL)")
	fs.StringVar(&config.WhatsAppDSN, "whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&config.OpenAIKey, "openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)")
	fs.StringVar(&config.APIAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.BoolVar(&config.BrowserFallback, "browser-fallback", config.BrowserFallback, "scrape Google Maps when the lookup API has no phone (overrides $BROWSER_FALLBACK)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// Re-derive state-dir based defaults when only -state-dir was given.
	if config.StateDir != prevStateDir {
		if envWhatsAppDSN == "" && config.WhatsAppDSN == "file:"+filepath.Join(prevStateDir, DefaultWhatsAppDBFileName)+"?_foreign_keys=on" {
			config.WhatsAppDSN = ""
		}
		if envDatabaseURL == "" && config.DatabaseURL == filepath.Join(prevStateDir, DefaultAppDBFileName) {
			config.DatabaseURL = ""
		}
		config.applyStateDirDefaults()
		slog.Debug("Updated database DSNs based on state directory", "old_state_dir", prevStateDir, "new_state_dir", config.StateDir)
	}
	config.Transport = strings.ToLower(strings.TrimSpace(config.Transport))

	slog.Debug("flags parsed",
		"qrOutput", config.QROutput,
		"numeric", config.NumericCode,
		"stateDir", config.StateDir,
		"transport", config.Transport,
		"openaiKeySet", config.OpenAIKey != "",
		"apiAddr", config.APIAddr)
	return nil
}

// Validate reports configuration problems that must stop the process before
// it accepts any input.
func (c Config) Validate() error {
	var errs []error
	if c.OpenAIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required for voice transcription"))
	}
	switch c.Transport {
	case TransportWhatsApp:
	case TransportTwilio:
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioFrom == "" {
			errs = append(errs, errors.New("twilio transport requires TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MESSAGING_TRANSPORT %q (want %q or %q)", c.Transport, TransportWhatsApp, TransportTwilio))
	}
	if _, err := regexp.Compile(c.PhonePattern); err != nil {
		errs = append(errs, fmt.Errorf("invalid PHONE_PATTERN: %w", err))
	}
	return errors.Join(errs...)
}

// ensureDirectoriesExist creates the state directory used by file-based storage
func ensureDirectoriesExist(stateDir string) error {
	slog.Debug("Creating state directory", "state_dir", stateDir)
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}
	return nil
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(c Config) []whatsapp.Option {
	var waOpts []whatsapp.Option
	if c.QROutput != "" {
		waOpts = append(waOpts, whatsapp.WithQRCodeOutput(c.QROutput))
	}
	if c.NumericCode {
		waOpts = append(waOpts, whatsapp.WithNumericCode())
	}
	if c.WhatsAppDSN != "" {
		waOpts = append(waOpts, whatsapp.WithDBDSN(c.WhatsAppDSN))
	}
	return waOpts
}

// buildTwilioOptions constructs Twilio configuration options
func buildTwilioOptions(c Config) []twiliowhatsapp.Option {
	return []twiliowhatsapp.Option{
		twiliowhatsapp.WithAccountSID(c.TwilioAccountSID),
		twiliowhatsapp.WithAuthToken(c.TwilioAuthToken),
		twiliowhatsapp.WithFromWhats(c.TwilioFrom),
	}
}

// buildGenAIOptions constructs transcription configuration options
func buildGenAIOptions(c Config) []genai.Option {
	genaiOpts := []genai.Option{genai.WithTimeout(c.TranscribeTimeout)}
	if c.OpenAIKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(c.OpenAIKey))
	}
	if c.TranscribeModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(c.TranscribeModel))
	}
	if c.TranscribeLanguage != "" {
		genaiOpts = append(genaiOpts, genai.WithLanguage(c.TranscribeLanguage))
	}
	if c.TranscribeDebug {
		genaiOpts = append(genaiOpts, genai.WithDebugMode(true, c.StateDir))
	}
	return genaiOpts
}

// buildGeoOptions constructs the options shared by the geocoder and the nearby searcher.
func buildGeoOptions(c Config, baseURL string) []geo.Option {
	var geoOpts []geo.Option
	if baseURL != "" {
		geoOpts = append(geoOpts, geo.WithBaseURL(baseURL))
	}
	if c.GeoUserAgent != "" {
		geoOpts = append(geoOpts, geo.WithUserAgent(c.GeoUserAgent))
	}
	return geoOpts
}

// buildEnricher wires the lookup API and the optional browser fallback.
func buildEnricher(c Config, m *metrics.Metrics) (*liveinfo.Enricher, error) {
	phoneRe, err := regexp.Compile(c.PhonePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid phone pattern: %w", err)
	}

	var primary liveinfo.Lookup
	if c.SerpAPIKey != "" {
		primary = liveinfo.NewSerpAPIClient(c.SerpAPIKey)
	} else {
		slog.Warn("No SERPAPI_KEY set, business lookups will rely on the browser fallback only")
	}

	var fallback liveinfo.Scraper
	if c.BrowserFallback {
		browserOpts := []liveinfo.BrowserOption{liveinfo.WithPhonePattern(phoneRe)}
		if c.ChromePath != "" {
			browserOpts = append(browserOpts, liveinfo.WithExecPath(c.ChromePath))
		}
		fallback = liveinfo.NewBrowserScraper(browserOpts...)
	}

	return liveinfo.NewEnricher(primary, fallback,
		liveinfo.WithTimeouts(c.LookupTimeout, c.BrowserTimeout),
		liveinfo.WithMetrics(m),
	), nil
}

// newMessagingService connects the configured transport. The returned
// function releases the transport connection.
func newMessagingService(ctx context.Context, c Config) (messaging.Service, func(), error) {
	switch c.Transport {
	case TransportTwilio:
		client, err := twiliowhatsapp.NewClient(buildTwilioOptions(c)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return messaging.NewTwilioService(client), func() {}, nil
	default:
		client, err := whatsapp.NewClient(ctx, buildWhatsAppOptions(c)...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(client), client.Disconnect, nil
	}
}

// drainReceipts writes delivery receipts to the audit store until the channel closes.
func drainReceipts(ctx context.Context, receipts <-chan models.Receipt, st store.Store) {
	for {
		select {
		case r, ok := <-receipts:
			if !ok {
				return
			}
			if err := st.AddReceipt(r); err != nil {
				slog.Error("Failed to record receipt", "error", err, "to", r.To, "status", r.Status)
			}
		case <-ctx.Done():
			return
		}
	}
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context, c Config) error {
	if err := ensureDirectoriesExist(c.StateDir); err != nil {
		return err
	}

	lock, err := lockfile.AcquireLock(c.StateDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("Failed to release lock", "error", err)
		}
	}()

	st, err := store.New(c.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	transcriber, err := genai.NewClient(buildGenAIOptions(c)...)
	if err != nil {
		return fmt.Errorf("failed to create transcription client: %w", err)
	}

	enricher, err := buildEnricher(c, m)
	if err != nil {
		return err
	}

	msgService, disconnect, err := newMessagingService(ctx, c)
	if err != nil {
		return err
	}
	defer disconnect()

	resolver := pharmacy.NewResolver(
		geo.NewNominatimClient(buildGeoOptions(c, c.NominatimURL)...),
		geo.NewOverpassClient(buildGeoOptions(c, c.OverpassURL)...),
		pharmacy.WithRadius(c.SearchRadius),
		pharmacy.WithTimeouts(c.GeocodeTimeout, c.NearbyTimeout),
	)
	dispatcher := dispatch.NewDispatcher(msgService,
		dispatch.WithCountryCode(c.CountryCode),
		dispatch.WithTimeout(c.DispatchTimeout),
		dispatch.WithRecorder(st),
		dispatch.WithMetrics(m),
	)

	sessions := session.NewMemoryStore()
	locker := session.NewLocker()
	machine := dialogue.NewMachine(sessions, locker, resolver, enricher, dispatcher, dialogue.WithMetrics(m))
	corr := correlator.New(sessions, locker, msgService,
		correlator.WithCountryCode(c.CountryCode),
		correlator.WithMetrics(m),
	)

	if err := msgService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}

	respHandler := messaging.NewResponseHandler(msgService, machine,
		messaging.WithReplyWatcher(corr),
		messaging.WithTranscriber(transcriber),
		messaging.WithResponseRecorder(st),
		messaging.WithHandlerMetrics(m),
	)
	respHandler.Start(ctx)
	go drainReceipts(ctx, msgService.Receipts(), st)

	sched := scheduler.NewScheduler()
	maintenance := scheduler.NewMaintenance(sessions, locker, msgService,
		scheduler.WithIdleTTL(c.IdleTTL),
		scheduler.WithPendingTTL(c.PendingTTL),
		scheduler.WithMetrics(m),
	)
	if err := maintenance.Schedule(ctx, sched, c.Maintenance); err != nil {
		sched.Stop()
		_ = msgService.Stop()
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}

	server := api.NewServer(msgService, st,
		api.WithGatherer(reg),
		api.WithSessionCounter(sessions),
	)
	slog.Info("Avotech ready", "transport", c.Transport)
	serveErr := api.Run(ctx, c.APIAddr, server.Handler())

	slog.Info("Avotech shutting down")
	sched.Stop()
	if err := msgService.Stop(); err != nil {
		slog.Warn("Failed to stop messaging service", "error", err)
	}
	respHandler.Wait()
	corr.Wait()
	return serveErr
}
