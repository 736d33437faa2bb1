package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/sensevis/internal/api"
	"github.com/banshee-data/sensevis/internal/config"
	"github.com/banshee-data/sensevis/internal/db"
	"github.com/banshee-data/sensevis/internal/exchange"
	"github.com/banshee-data/sensevis/internal/fsutil"
	"github.com/banshee-data/sensevis/internal/pipeline"
	"github.com/banshee-data/sensevis/internal/security"
	"github.com/banshee-data/sensevis/internal/sense"
	"github.com/banshee-data/sensevis/internal/version"
)

// openStore opens the history database when one is configured.
func openStore(cfg *config.RenderConfig) (*db.DB, error) {
	path := cfg.GetDBPath()
	if path == "" {
		return nil, nil
	}
	store, err := db.NewDB(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open render history: %w", err)
	}
	return store, nil
}

func newPipeline(cfg *config.RenderConfig, store *db.DB) *pipeline.Pipeline {
	var rec pipeline.Recorder
	if store != nil {
		rec = store
	}
	return pipeline.New(cfg, fsutil.OSFileSystem{}, rec)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printOutcome(w io.Writer, out *pipeline.Outcome) {
	if out.Result.Blank {
		fmt.Fprintf(w, "Saved blank %s\n", out.WorkingPath)
	} else {
		fmt.Fprintf(w, "Saved %s (%d detections, %d bright cells)\n",
			out.WorkingPath, out.Result.Detections, len(out.Result.Bright))
	}
	fmt.Fprintf(w, "Saved upscaled %s\n", out.UpscaledPath)
	if out.PlotPath != "" {
		fmt.Fprintf(w, "Saved plot %s\n", out.PlotPath)
	}
	if out.RunID != "" {
		fmt.Fprintf(w, "Run %s\n", out.RunID)
	}
}

func runRender(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	exchangePath := fs.String("exchange", config.DefaultExchangePath, "Detection exchange file")
	sensor := fs.String("sensor", config.DefaultSensorName, "Sensor name, used as the default label")
	label := fs.String("label", "", "Output file name without extension (defaults to the sensor name)")
	clearAfter := fs.Bool("clear", false, "Truncate the exchange file after rendering")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if isSet(fs, "exchange") {
		cfg.ExchangePath = config.PtrString(*exchangePath)
	}
	if isSet(fs, "sensor") {
		cfg.SensorName = config.PtrString(*sensor)
	}
	if *label == "" {
		*label = security.SanitizeFilename(cfg.GetSensorName())
	}

	osfs := fsutil.OSFileSystem{}
	dets, err := exchange.Read(osfs, cfg.GetExchangePath())
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signalContext()
	defer stop()
	out, err := newPipeline(cfg, store).Live(ctx, *label, dets)
	if err != nil {
		return err
	}
	printOutcome(stdout, out)

	if *clearAfter {
		return exchange.Clear(osfs, cfg.GetExchangePath())
	}
	return nil
}

func runBatch(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	csvPath := fs.String("csv", config.DefaultCSVPath, "Centroid CSV file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if isSet(fs, "csv") {
		cfg.CSVPath = config.PtrString(*csvPath)
	}

	f, err := os.Open(cfg.GetCSVPath())
	if err != nil {
		return fmt.Errorf("open centroid CSV: %w", err)
	}
	defer f.Close()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	ctx, stop := signalContext()
	defer stop()
	rep, err := newPipeline(cfg, store).Batch(ctx, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "rows=%d rendered=%d skipped=%d\n", rep.Rows, rep.Rendered, rep.Skipped)
	return nil
}

func runFetch(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	sensor := fs.String("sensor", config.DefaultSensorName, "Sensor name")
	exchangePath := fs.String("exchange", config.DefaultExchangePath, "Detection exchange file")
	apiURL := fs.String("api", config.DefaultAPIBaseURL, "Sense API base URL")
	wsURL := fs.String("ws", config.DefaultWSBaseURL, "Sense websocket base URL")
	wait := fs.Duration("wait", 30*time.Second, "How long to wait for the sensor to answer")
	render := fs.Bool("render", false, "Render the detections once received")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if isSet(fs, "sensor") {
		cfg.SensorName = config.PtrString(*sensor)
	}
	if isSet(fs, "exchange") {
		cfg.ExchangePath = config.PtrString(*exchangePath)
	}
	if isSet(fs, "api") {
		cfg.APIBaseURL = config.PtrString(*apiURL)
	}
	if isSet(fs, "ws") {
		cfg.WSBaseURL = config.PtrString(*wsURL)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()

	name := cfg.GetSensorName()
	dets, err := sense.NewClient(cfg, nil).Fetch(ctx, name)
	if err != nil {
		return err
	}
	osfs := fsutil.OSFileSystem{}
	if err := exchange.Write(osfs, cfg.GetExchangePath(), dets); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %d detections from %s to %s\n", len(dets), name, cfg.GetExchangePath())

	if !*render {
		return nil
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}
	out, err := newPipeline(cfg, store).Live(ctx, security.SanitizeFilename(name), dets)
	if err != nil {
		return err
	}
	printOutcome(stdout, out)
	return nil
}

func runServe(args []string, _ io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var common commonFlags
	common.register(fs)
	listen := fs.String("listen", config.DefaultListen, "Listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := common.load(fs)
	if err != nil {
		return err
	}
	if isSet(fs, "listen") {
		cfg.Listen = config.PtrString(*listen)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	var runs api.RunStore
	if store != nil {
		defer store.Close()
		runs = store
	}

	srv := api.NewServer(newPipeline(cfg, store), runs)
	mux := srv.ServeMux()
	var debug *tsweb.DebugHandler
	if store != nil {
		debug = store.AttachAdminRoutes(mux)
	} else {
		debug = tsweb.Debugger(mux)
	}
	srv.AttachDebugRoutes(debug)

	ctx, stop := signalContext()
	defer stop()

	server := &http.Server{
		Addr:              cfg.GetListen(),
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	errc := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	wg.Wait()

	select {
	case err := <-errc:
		return fmt.Errorf("failed to start server: %w", err)
	default:
	}
	log.Printf("Graceful shutdown complete")
	return nil
}

func runMigrate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to a JSON config file")
	dbPath := fs.String("db", "", "Render history database")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := *dbPath
	if path == "" && *configPath != "" {
		cfg, err := config.LoadRenderConfig(*configPath)
		if err != nil {
			return err
		}
		path = cfg.GetDBPath()
	}
	if path == "" {
		return errors.New("a database is required: pass -db or set db_path in -config")
	}
	return db.RunMigrateCommand(stdout, fs.Args(), path)
}

func runVersion(_ []string, stdout io.Writer) error {
	fmt.Fprintln(stdout, version.String())
	return nil
}
