package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Gfacello/ute-energy-cost/pkg/dispatch"
	"github.com/Gfacello/ute-energy-cost/pkg/log"
	"github.com/Gfacello/ute-energy-cost/pkg/meter"
	"github.com/Gfacello/ute-energy-cost/pkg/source"
	"github.com/Gfacello/ute-energy-cost/pkg/storage"
	"github.com/Gfacello/ute-energy-cost/pkg/types"
	"github.com/NYTimes/gziphandler"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// tokenVerifier validates a bearer ID token.
type tokenVerifier func(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)

// Server hosts the HTTP API and the background refresh loop. It owns the
// accumulator for the lifetime of the process; the storage snapshot is only
// read once at startup and written after every update.
type Server struct {
	source   source.Source
	storage  storage.Database
	acc      *meter.Accumulator
	dispatch dispatch.Target

	opts         types.Options
	listenAddr   string
	pollInterval time.Duration
	httpServer   *http.Server
	serverName   string

	updateEmail  string
	oidcVerifier tokenVerifier
	oidcAudience string
}

// Configured initializes the Server with dependencies.
// It uses lflag to register command-line flags for configuration.
func Configured(src source.Source, db storage.Database) *Server {
	srv := &Server{
		source:     src,
		storage:    db,
		serverName: "utemeter",
	}
	revision := os.Getenv("K_REVISION")
	if revision != "" {
		srv.serverName = revision
	}

	// get the port from PORT when running in cloud run
	port := os.Getenv("PORT")
	if port == "" {
		// otherwise default to 8080
		port = "8080"
	}

	listenAddr := lflag.String("http-listen", ":"+port, "HTTP server listen address")
	pollInterval := lflag.Duration("poll-interval", 30*time.Second, "Interval between meter reads")
	tariffName := lflag.String("tariff", string(types.TariffTRS), "UTE tariff plan (TRS, TRD or TRT)")
	priceMode := lflag.String("price-mode", string(types.PriceModeMarginal), "Headline price mode (marginal, average or bill_like)")
	timezone := lflag.String("timezone", types.DefaultTimezone, "IANA timezone for billing calendar boundaries")
	peakWindow := lflag.String("peak-window", types.DefaultPeakWindow.String(), "Peak window for TRD/TRT ("+strings.Join(types.PeakWindowStrings(), ", ")+")")
	holidaysEnabled := lflag.Bool("holidays-enabled", true, "Treat configured holidays as non-business days")
	var holidays []string
	lflag.JSON(&holidays, "holidays", types.DefaultHolidays2026, "JSON list of YYYY-MM-DD holiday dates")
	includeFixed := lflag.Bool("include-fixed-charge", false, "Include the monthly fixed charge in the effective price")
	includePower := lflag.Bool("include-power-charge", false, "Include the contracted power charge in the effective price")
	contractedPower := lflag.String("contracted-power-kw", "0", "Contracted power in kW for the power charge")
	includeVAT := lflag.Bool("include-vat", false, "Apply VAT to the effective price")
	vatRate := lflag.String("vat-rate", "0.22", "VAT rate as a fraction")
	vatOnFixed := lflag.Bool("vat-on-fixed", false, "Apply VAT to fixed and power charges too")
	maxDelta := lflag.String("max-delta-kwh", "", "Largest plausible kWh delta between reads; larger deltas resync the baseline")
	pricesFile := lflag.String("prices-file", "", "YAML file overriding the built-in price table")
	dispatchURL := lflag.String("dispatch-url", "", "Default URL for pushed values")
	updateEmail := lflag.String("update-specific-email", "", "email to validate for POST endpoints")
	updateAudience := lflag.String("update-specific-audience", "", "OIDC audience to validate for POST endpoints")

	lflag.Do(func() {
		srv.listenAddr = *listenAddr
		srv.pollInterval = *pollInterval
		srv.updateEmail = *updateEmail

		srv.opts = types.Options{
			Tariff:     types.TariffKind(strings.ToUpper(*tariffName)),
			Mode:       types.PriceMode(*priceMode),
			Timezone:   *timezone,
			PeakWindow: types.ParsePeakWindow(*peakWindow),
			Holidays: types.HolidayPolicy{
				Enabled: *holidaysEnabled,
				Dates:   holidays,
			},
			IncludeFixed:    *includeFixed,
			IncludePower:    *includePower,
			IncludeVAT:      *includeVAT,
			ApplyVATToFixed: *vatOnFixed,
			Prices:          types.DefaultPriceTable(),
		}
		if !srv.opts.Tariff.Valid() {
			log.Ctx(context.Background()).Error("invalid tariff", slog.String("tariff", *tariffName))
			os.Exit(1)
		}
		kw, err := strconv.ParseFloat(*contractedPower, 64)
		if err != nil {
			log.Ctx(context.Background()).Error("invalid contracted-power-kw", slog.Any("error", err))
			os.Exit(1)
		}
		srv.opts.ContractedPowerKW = kw
		rate, err := strconv.ParseFloat(*vatRate, 64)
		if err != nil {
			log.Ctx(context.Background()).Error("invalid vat-rate", slog.Any("error", err))
			os.Exit(1)
		}
		srv.opts.VATRate = rate
		if *maxDelta != "" {
			md, err := strconv.ParseFloat(*maxDelta, 64)
			if err != nil || md <= 0 {
				log.Ctx(context.Background()).Error("invalid max-delta-kwh", slog.Any("error", err))
				os.Exit(1)
			}
			srv.opts.MaxDeltaKWH = md
		}

		if *pricesFile != "" {
			raw, err := os.ReadFile(*pricesFile)
			if err != nil {
				log.Ctx(context.Background()).Error("failed to read prices file", slog.Any("error", err))
				os.Exit(1)
			}
			table, err := types.DecodePriceTable(raw)
			if err != nil {
				// keep running on the built-in table rather than dying on a
				// stale override
				log.Ctx(context.Background()).Warn("invalid prices file, using built-in table", slog.Any("error", err))
			} else {
				srv.opts.Prices = table
			}
		}

		if *dispatchURL != "" {
			target, err := dispatch.NewHTTPTarget(*dispatchURL)
			if err != nil {
				log.Ctx(context.Background()).Error("invalid dispatch-url", slog.Any("error", err))
				os.Exit(1)
			}
			srv.dispatch = target
		}

		if *updateAudience != "" {
			provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
			if err != nil {
				log.Ctx(context.Background()).Error("failed to initialize Google OIDC provider", slog.Any("error", err))
				os.Exit(1)
			}
			srv.oidcVerifier = provider.Verifier(&oidc.Config{ClientID: *updateAudience}).Verify
			srv.oidcAudience = *updateAudience
		}
	})

	return srv
}

// Options returns the resolved configuration. It is fixed after lflag.Do runs.
func (s *Server) Options() types.Options {
	return s.opts
}

func (s *Server) setupHandler() http.Handler {
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/state", s.handleState)
	apiMux.HandleFunc("GET /api/prices", s.handlePrices)
	apiMux.HandleFunc("GET /api/period", s.handlePeriod)
	apiMux.HandleFunc("GET /api/breakdown", s.handleBreakdown)
	apiMux.HandleFunc("GET /api/history", s.handleHistory)
	apiMux.Handle("POST /api/update", s.requireAuth(http.HandlerFunc(s.handleUpdate)))
	apiMux.Handle("POST /api/dispatch", s.requireAuth(http.HandlerFunc(s.handleDispatch)))

	mux := http.NewServeMux()
	mux.Handle("/api/", apiMux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return s.revisionMiddleware(gziphandler.GzipHandler(s.securityHeadersMiddleware(mux)))
}

// Run loads the persisted snapshot, starts the refresh loop and the HTTP
// server, and blocks until the context is canceled or the server fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.loadState(ctx); err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:         s.listenAddr,
		Handler:      s.setupHandler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	// use a channel to capturing server errors
	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", s.listenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	go s.pollLoop(ctx)

	select {
	case <-ctx.Done():
		// Context canceled, shut down gracefully
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) loadState(ctx context.Context) error {
	state, version, err := s.storage.GetState(ctx)
	if errors.Is(err, storage.ErrNoState) {
		log.Ctx(ctx).InfoContext(ctx, "no stored snapshot, starting fresh")
		s.acc = meter.New()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	log.Ctx(ctx).InfoContext(ctx, "restored snapshot",
		slog.Int("version", version),
		slog.Time("lastUpdate", state.LastUpdateTS),
	)
	s.acc = meter.NewFromState(state)
	return nil
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("ok")); err != nil {
		panic(http.ErrAbortHandler)
	}
}

func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Strict-Transport-Security: max-age=2 years
		w.Header().Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")

		// Prevent MIME-sniffing
		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		w.Header().Set("X-Frame-Options", "DENY")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) revisionMiddleware(next http.Handler) http.Handler {
	if s.serverName == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", s.serverName)
		next.ServeHTTP(w, r)
	})
}
