// Package parquetexport streams tabular rows into Apache Parquet files.
//
// A dataset is described by a list of schema properties (key, declared type,
// optional format, required flag). Rows arrive in batches of loosely-typed
// maps; every batch becomes exactly one row group, and the encoded bytes
// leave the writer as soon as they exist instead of after the whole file
// has been built.
//
// # Architecture
//
// The export is split into three stages:
//
// 1. Schema translation (pkg/schema): each property resolves once into a
// column plan carrying the physical type, the logical annotation and the
// repetition of its column.
//
// 2. Row batch assembly (pkg/rowbatch): a batch of rows is transposed into
// typed column arrays with definition levels, rejecting the whole batch on
// the first type mismatch or missing required value.
//
// 3. Streaming delivery (pkg/sink, pkg/writer): the encoding engine writes
// into a sink that either returns the newly produced bytes to the caller
// (pull mode) or hands them in order to a consumer on a dedicated goroutine
// (push mode).
//
// # Quick Start
//
//	w, err := writer.New([]schema.SchemaProperty{
//	    {Key: "id", Type: schema.TypeInteger, Required: true},
//	    {Key: "day", Type: schema.TypeString, Format: schema.FormatDate},
//	})
//	if err != nil {
//	    return err
//	}
//
//	chunk, err := w.AddRows(ctx, []rowbatch.Row{
//	    {"id": 1, "day": "2024-01-02"},
//	    {"id": 2},
//	})
//	out.Write(chunk)
//
//	tail, err := w.Finish(ctx)
//	out.Write(tail)
//
// # Key Packages
//
//	pkg/schema        - Schema properties and column plans
//	pkg/rowbatch      - Row batch assembly and value coercion
//	pkg/formats/columnar - Parquet encoding engine (arrow-go)
//	pkg/sink          - Pull and push byte sinks
//	pkg/writer        - Streaming writer state machine
//	pkg/input         - NDJSON, JSON array and Avro row sources
//	pkg/destinations  - File, stdout, S3, GCS and Kafka consumers
//	pkg/config        - YAML configuration with environment overrides
//	internal/pipeline - Source to destination export driver
//
// # Command Line
//
//	parquet-export plan --schema schema.json
//	parquet-export export --schema schema.json --input rows.ndjson \
//	    --output s3://bucket/rows.parquet --mode push
//
// Environment variables are supported with ${VAR_NAME} syntax in the
// configuration file and as PQX_ prefixed overrides.
package parquetexport
