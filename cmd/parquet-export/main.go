package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load() // Ignore error if .env doesn't exist

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "parquet-export",
		Short: "parquet-export - Streaming Parquet exporter",
		Long: `parquet-export turns a stream of JSON or Avro rows into a Parquet file,
one row group per batch, and delivers the encoded bytes to a local file,
stdout, S3, Google Cloud Storage or a Kafka topic while they are produced.`,
		SilenceUsage: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "parquet-export v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newExportCommand())
	root.AddCommand(newPlanCommand())
	return root
}

func newExportCommand() *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export rows to a Parquet file",
		Long: `Export reads rows from the input, encodes every batch as one row group and
writes the file to the output URI. Flags override the configuration file,
which in turn is overridden by PQX_ environment variables.

Example:
  parquet-export export --schema schema.json --input rows.ndjson --output s3://bucket/rows.parquet --mode push`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load(cmd)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			return runExport(cmd.Context(), cfg, flags.timeout, cmd.ErrOrStderr())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configFile, "config", "c", "", "Path to a YAML configuration file (optional)")
	f.StringVarP(&flags.schemaFile, "schema", "s", "", "Path to the JSON schema description (required unless the input is avro)")
	f.StringVarP(&flags.inputPath, "input", "i", "-", "Row file, - for stdin")
	f.StringVarP(&flags.format, "format", "f", "ndjson", "Input format (ndjson, json, avro)")
	f.StringVarP(&flags.output, "output", "o", "-", "Output URI: path, - for stdout, s3://bucket/key, gs://bucket/object, kafka://brokers/topic")
	f.StringVar(&flags.mode, "mode", "pull", "Delivery mode (pull, push)")
	f.IntVar(&flags.batchSize, "batch-size", 10000, "Rows per row group. Higher values give larger row groups but increase memory usage")
	f.StringVar(&flags.compression, "compression", "snappy", "Compression codec (uncompressed, snappy, gzip, brotli, zstd, lz4)")
	f.StringToStringVar(&flags.metadata, "metadata", nil, "Footer key-value metadata (key=value,...)")
	f.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.BoolVar(&flags.metrics, "enable-metrics", false, "Serve Prometheus metrics while exporting")
	f.DurationVar(&flags.timeout, "timeout", 0, "Export timeout, 0 for none")

	return cmd
}

func newPlanCommand() *cobra.Command {
	var schemaFile, avroFile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the Parquet columns a schema translates to",
		Long: `Plan prints the column plan of a schema description without reading any rows.
The schema is either a JSON description or the writer schema of an Avro
object container file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			props, err := planProperties(schemaFile, avroFile)
			if err != nil {
				return err
			}
			return printPlan(cmd.OutOrStdout(), props, asJSON)
		},
	}

	cmd.Flags().StringVarP(&schemaFile, "schema", "s", "", "Path to the JSON schema description")
	cmd.Flags().StringVar(&avroFile, "avro", "", "Path to an Avro object container file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")
	cmd.MarkFlagsMutuallyExclusive("schema", "avro")

	return cmd
}
