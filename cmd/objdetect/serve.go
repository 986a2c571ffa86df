package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/config"
	"github.com/marcellszekrenyes/AWS-Remote-Object-Detector/internal/presign"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the presigned POST credential endpoint",
		Long: `Serve runs the endpoint that 'objdetect upload' fetches credentials from.

Every GET returns a fresh presigned POST for a new key under the prefix,
wrapped in an API Gateway style envelope:

  {"statusCode": 200, "headers": {...}, "body": "{\"url\": ..., \"fields\": {...}}"}

AWS credentials are taken from the default chain (environment, shared
config, instance role). /healthz and /metrics are served alongside.

Examples:
  # Serve on :8080 for the default bucket
  objdetect serve

  # Another bucket and prefix, 15 minute policies
  objdetect serve --bucket my-images --prefix uploads/ --expires 15m

  # Run as an AWS Lambda function behind API Gateway
  objdetect serve --lambda`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("addr", "a", config.DefaultServeAddress,
		"Listen address")
	cmd.Flags().StringP("bucket", "b", config.DefaultBucket,
		"Bucket the presigned POST targets")
	cmd.Flags().String("prefix", config.DefaultKeyPrefix,
		"Key prefix every upload must start with")
	cmd.Flags().Duration("expires", config.DefaultPresignExpiry,
		"Lifetime of each POST policy")
	cmd.Flags().String("region", config.DefaultRegion,
		"AWS region of the bucket")
	cmd.Flags().Bool("lambda", false,
		"Handle API Gateway events as a Lambda function instead of listening")

	return cmd
}

func runServeCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	addr, err := flags.GetString("addr")
	if err != nil {
		return err
	}
	bucket, err := flags.GetString("bucket")
	if err != nil {
		return err
	}
	prefix, err := flags.GetString("prefix")
	if err != nil {
		return err
	}
	expires, err := flags.GetDuration("expires")
	if err != nil {
		return err
	}
	region, err := flags.GetString("region")
	if err != nil {
		return err
	}
	asLambda, err := flags.GetBool("lambda")
	if err != nil {
		return err
	}

	if err := validateServeFlags(bucket, prefix, expires); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	presigner, err := presign.NewS3Presigner(ctx, region)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	server, err := presign.NewServer(presigner, bucket,
		presign.WithPrefix(prefix),
		presign.WithExpiry(expires),
		presign.WithLogger(logger),
		presign.WithRegistry(registry),
	)
	if err != nil {
		return err
	}

	if asLambda {
		lambda.StartWithOptions(server.HandleRequest, lambda.WithContext(ctx))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Issuing credentials for s3://%s/%s* on %s\n", bucket, prefix, addr)
	return server.ListenAndServe(ctx, addr)
}

func validateServeFlags(bucket, prefix string, expires time.Duration) error {
	if bucket == "" {
		return config.ErrMissingBucket
	}
	if strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("prefix must not start with '/': %q", prefix)
	}
	if expires <= 0 {
		return fmt.Errorf("expires must be positive: %s", expires)
	}
	return nil
}
