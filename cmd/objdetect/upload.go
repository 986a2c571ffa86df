package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/config"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/credentials"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/database"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/detect"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/export"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/media"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/model"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/pipeline"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/render"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/report"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/transport"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/upload"
)

// errNoReadableFiles is returned when every selected file was skipped.
var errNoReadableFiles = errors.New("no readable files to upload")

// NewUploadCmd creates the upload command.
func NewUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload [file or pattern...]",
		Short: "Upload images and run object detection on them",
		Long: `Upload sends every selected image through three stages:

  1. GET presigned POST credentials from the credential endpoint
  2. POST the image to S3 as multipart/form-data
  3. POST {bucket, key, fileName} to the detection endpoint

All files run concurrently. Each file renders either its detections or the
error of the stage that failed; a failing file never affects the others.
The elapsed time is shown while the batch runs, followed by the total.

Arguments are file paths or doublestar patterns ('photos/**/*.jpg').

Examples:
  # Upload two images
  objdetect upload cat.jpg dog.jpg

  # Upload a whole tree, four files at a time
  objdetect upload -n 4 'photos/**/*.{jpg,png}'

  # Watch results in the browser while the batch runs
  objdetect upload --live 127.0.0.1:8000 *.jpg

  # Write a Markdown report and the rendered page
  objdetect upload -m -o report.md --html results.html *.jpg

  # Store detections in DynamoDB as well
  objdetect upload --dynamodb-table detections *.jpg`,
		Args: cobra.ArbitraryArgs,
		RunE: runUploadCmd,
	}

	// Endpoints
	cmd.Flags().String("credentials-url", config.DefaultCredentialsEndpoint,
		"Endpoint issuing presigned POST credentials")
	cmd.Flags().String("detect-url", config.DefaultDetectionEndpoint,
		"Object detection endpoint")
	cmd.Flags().StringP("bucket", "b", config.DefaultBucket,
		"Bucket named in detection requests")

	// Request behaviour
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum files in flight (0 = all at once)")
	cmd.Flags().IntP("retries", "r", config.DefaultRetries,
		"Extra attempts for transport errors and 5xx/429 responses")
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().String("max-size", media.FormatSize(config.DefaultMaxFileSize),
		"Skip files larger than this (e.g. 10MB)")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .objdetect in current or home directory)")

	// Reports
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().String("html", "",
		"Write the rendered result page to this file")
	cmd.Flags().String("live", "",
		"Serve the live result page at this address (e.g. 127.0.0.1:8000)")
	cmd.Flags().String("metrics-file", "",
		"Write stage metrics in Prometheus text format to this file")

	// Persistence
	cmd.Flags().String("dynamodb-table", "",
		"Export successful detections to this DynamoDB table")
	cmd.Flags().String("region", config.DefaultRegion,
		"AWS region for DynamoDB export")
	cmd.Flags().Bool("no-history", false,
		"Do not record the batch in the local history database")
	addDBDirFlag(cmd)

	return cmd
}

func runUploadCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runUpload(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// buildConfig layers defaults, the config file and the flags the user set.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	if path := config.FindConfigFile(configPath); path != "" {
		f, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg.ApplyFile(f)
		cfg.ConfigFilePath = path
	} else if configPath != "" {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	// Flags only override what the user actually passed, so values from the
	// file survive flag defaults.
	strs := map[string]*string{
		"credentials-url": &cfg.CredentialsEndpoint,
		"detect-url":      &cfg.DetectionEndpoint,
		"bucket":          &cfg.Bucket,
		"proxy":           &cfg.ProxyAddress,
		"dynamodb-table":  &cfg.DynamoDBTable,
		"region":          &cfg.Region,
	}
	for name, dst := range strs {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetString(name); err != nil {
			return nil, err
		}
	}

	ints := map[string]*int{
		"concurrency": &cfg.Concurrency,
		"retries":     &cfg.Retries,
	}
	for name, dst := range ints {
		if !flags.Changed(name) {
			continue
		}
		if *dst, err = flags.GetInt(name); err != nil {
			return nil, err
		}
	}

	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}

	if flags.Changed("max-size") {
		raw, err := flags.GetString("max-size")
		if err != nil {
			return nil, err
		}
		if cfg.MaxFileSize, err = media.ParseSize(raw); err != nil {
			return nil, fmt.Errorf("invalid --max-size %q: %w", raw, err)
		}
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.HTMLFile, err = flags.GetString("html"); err != nil {
		return nil, err
	}
	if cfg.LiveAddress, err = flags.GetString("live"); err != nil {
		return nil, err
	}
	if cfg.MetricsFile, err = flags.GetString("metrics-file"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.LogJSON = getBoolFlag(cmd, "log-json")
	cfg.Files = args

	return cfg, nil
}

// runUpload selects the files, runs the batch and writes every requested
// output. Files that fail do not make it return an error.
func runUpload(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	paths, err := media.Select(cfg.Files, logger)
	if err != nil {
		return err
	}

	loader := media.NewLoader(media.WithMaxSize(cfg.MaxFileSize), media.WithLogger(logger))
	files, skipped := loader.LoadAll(paths)
	for _, s := range skipped {
		fmt.Fprintf(stderr, "Skipping %s: %v\n", s.Path, s.Err)
	}
	if len(files) == 0 {
		return errNoReadableFiles
	}

	stages, err := newStages(cfg, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(registry)

	page := render.NewPage()
	page.SetFileCount(len(files))
	sink := render.MultiSink{render.NewTextSink(stderr), page}

	if cfg.LiveAddress != "" {
		hub := render.NewHub(page, logger)
		defer hub.Close()
		sink = render.MultiSink{render.NewTextSink(stderr), hub}

		liveCtx, stopLive := context.WithCancel(ctx)
		liveDone := serveLive(liveCtx, cfg.LiveAddress, hub.Handler(), logger)
		defer func() {
			stopLive()
			<-liveDone
		}()
		fmt.Fprintf(stderr, "Live results at http://%s\n", cfg.LiveAddress)
	}

	opts := []pipeline.BatchOption{
		pipeline.WithBatchLogger(logger),
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithSink(sink),
		pipeline.WithTimerInterval(cfg.TimerInterval),
		pipeline.WithBatchMetrics(metrics),
	}

	var (
		history *database.HistoryDB
		batchID int64
	)
	if cfg.SaveToDB {
		history, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer history.Close()

		batchID, err = history.BeginBatch(ctx, cfg.Bucket, time.Now(), len(files))
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithOutcomeHook(func(ctx context.Context, o model.Outcome) error {
			return history.RecordOutcome(ctx, batchID, o)
		}))
	}

	if cfg.DynamoDBTable != "" {
		client, err := export.NewDynamoClient(ctx, cfg.Region)
		if err != nil {
			return err
		}
		exporter, err := export.NewDynamoExporter(client, cfg.DynamoDBTable, export.WithLogger(logger))
		if err != nil {
			return err
		}
		opts = append(opts, pipeline.WithOutcomeHook(exporter.Export))
	}

	bp := pipeline.NewBatchProcessor(func() *pipeline.Pipeline {
		return pipeline.NewUploadPipeline(stages.fetcher, stages.uploader, stages.detector,
			pipeline.WithLogger(logger),
			pipeline.WithMetrics(metrics),
		)
	}, cfg.Bucket, opts...)

	batch, runErr := bp.Run(ctx, files)

	// The batch is over; outputs are written even after an interrupt.
	if history != nil {
		if err := history.FinishBatch(context.WithoutCancel(ctx), batchID, batch); err != nil {
			logger.Error("failed to finish batch record", "batch", batchID, "error", err)
		}
	}
	if cfg.HTMLFile != "" {
		if err := page.WriteFile(cfg.HTMLFile); err != nil {
			logger.Error("failed to write result page", "path", cfg.HTMLFile, "error", err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsFile, registry); err != nil {
			logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}
	if err := writeBatchReport(cfg, batch, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("upload interrupted: %w", runErr)
	}

	if cfg.LiveAddress != "" {
		fmt.Fprintln(stderr, "Batch done. Press Ctrl-C to stop the live view.")
		<-ctx.Done()
	}
	return nil
}

// stages holds the three remote services shared by every file's pipeline.
type stages struct {
	fetcher  *credentials.Fetcher
	uploader *upload.Uploader
	detector *detect.Detector
}

// newStages builds one HTTP client per remote service. Endpoint headers
// usually hold API keys and must never reach the store.
func newStages(cfg *config.Config, logger *slog.Logger) (*stages, error) {
	clientFor := func(headers map[string]string) (*transport.Client, error) {
		return transport.NewClient(
			transport.WithTimeout(cfg.Timeout),
			transport.WithRetries(cfg.Retries),
			transport.WithProxy(cfg.ProxyAddress),
			transport.WithUserAgent(cfg.UserAgent),
			transport.WithHeaders(headers),
			transport.WithLogger(logger),
		)
	}

	credClient, err := clientFor(cfg.CredentialsHeaders)
	if err != nil {
		return nil, fmt.Errorf("failed to create credentials client: %w", err)
	}
	storeClient, err := clientFor(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload client: %w", err)
	}
	detectClient, err := clientFor(cfg.DetectionHeaders)
	if err != nil {
		return nil, fmt.Errorf("failed to create detection client: %w", err)
	}

	return &stages{
		fetcher:  credentials.NewFetcher(credClient, cfg.CredentialsEndpoint, credentials.WithLogger(logger)),
		uploader: upload.NewUploader(storeClient, upload.WithLogger(logger)),
		detector: detect.NewDetector(detectClient, cfg.DetectionEndpoint, detect.WithLogger(logger)),
	}, nil
}

// serveLive serves the live page until ctx is cancelled. The returned
// channel is closed once the server has shut down.
func serveLive(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		defer close(done)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("live view server failed", "addr", addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx) //nolint:errcheck // best effort on exit
	}()

	return done
}

// writeBatchReport writes the report in the configured format to
// cfg.ReportFile or stdout.
func writeBatchReport(cfg *config.Config, batch *model.BatchReport, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(output, cfg.JSONReport, cfg.MarkdownReport, cfg.Verbose).Write(batch)
	return err
}

func newReportWriter(output io.Writer, jsonReport, markdownReport, verbose bool) report.Writer {
	switch {
	case jsonReport:
		return report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case markdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(verbose))
	}
}
