// Command doublebuf-stress hammers a double buffer with one generator and one
// consumer goroutine until a failure is detected, the configured amount of
// writes has been consumed or the process is interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/FerroO2000/doublebuf/internal/config"
	"github.com/FerroO2000/doublebuf/internal/telemetry"
	"github.com/FerroO2000/doublebuf/stress"
)

const serviceName = "doublebuf-stress"

type flags struct {
	maxWrites   int
	stallLimit  int
	sampleEvery int
	yield       bool

	questDBAddr  string
	kafkaBrokers string
	kafkaTopic   string

	otel         bool
	otelEndpoint string

	logLevel string
}

func parseFlags() *flags {
	f := &flags{}

	flag.IntVar(&f.maxWrites, "writes", stress.DefaultGeneratorMaxWrites, "number of writes, 0 runs until interrupted")
	flag.IntVar(&f.stallLimit, "stall-limit", stress.DefaultConsumerStallLimit, "consecutive identical reads that stop the run, 0 disables the check")
	flag.IntVar(&f.sampleEvery, "sample-every", stress.DefaultConsumerSampleEvery, "export one read out of N to the sink, 0 disables sampling")
	flag.BoolVar(&f.yield, "yield", false, "yield the processor between two operations")

	flag.StringVar(&f.questDBAddr, "questdb", "", "QuestDB address the samples are written to")
	flag.StringVar(&f.kafkaBrokers, "kafka-brokers", "", "comma separated list of Kafka brokers the samples are published to")
	flag.StringVar(&f.kafkaTopic, "kafka-topic", stress.DefaultKafkaTopic, "Kafka topic of the samples")

	flag.BoolVar(&f.otel, "otel", false, "export traces, metrics and logs to an OpenTelemetry collector")
	flag.StringVar(&f.otelEndpoint, "otel-endpoint", telemetry.DefaultSetupGRPCEndpoint, "OTLP/gRPC endpoint of the collector")

	flag.StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	flag.Parse()

	return f
}

func main() {
	os.Exit(run())
}

func run() int {
	f := parseFlags()

	tel := telemetry.NewTelemetry("cmd", serviceName)

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		tel.LogWarn("invalid log level, using info", "level", f.logLevel)
	}
	telemetry.SetLogLevel(level)

	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelCtx()

	if f.otel {
		otelCfg := telemetry.NewSetupConfig(serviceName)
		otelCfg.GRPCEndpoint = f.otelEndpoint

		providers, err := telemetry.Setup(ctx, otelCfg)
		if err != nil {
			tel.LogError("failed to setup OpenTelemetry", err)
			return 1
		}

		defer func() {
			if err := providers.Shutdown(context.Background()); err != nil {
				tel.LogError("failed to shutdown OpenTelemetry", err)
			}
		}()
	}

	cfg := stress.NewRunConfig()
	cfg.Generator.MaxWrites = f.maxWrites
	cfg.Generator.Yield = f.yield
	cfg.Consumer.StallLimit = f.stallLimit
	cfg.Consumer.SampleEvery = f.sampleEvery
	cfg.Consumer.Yield = f.yield

	sink, err := newSink(ctx, tel, f)
	if err != nil {
		tel.LogError("failed to create sink", err)
		return 1
	}
	cfg.Sink = sink

	report, err := stress.Run(ctx, cfg)
	if err != nil {
		if report == nil {
			tel.LogError("failed to start stress run", err)
		}
		return 1
	}

	tel.LogInfo("stress run done", "reason", report.Reason, "writes", report.Writes, "reads", report.Reads)

	return 0
}

func newSink(ctx context.Context, tel *telemetry.Telemetry, f *flags) (stress.Sink, error) {
	validator := config.NewValidator(tel)

	switch {
	case f.questDBAddr != "":
		qdbCfg := stress.NewQuestDBConfig()
		qdbCfg.Address = f.questDBAddr
		validator.Validate(qdbCfg)

		return stress.NewQuestDBSink(ctx, qdbCfg)

	case f.kafkaBrokers != "":
		kafkaCfg := stress.NewKafkaConfig()
		kafkaCfg.Brokers = strings.Split(f.kafkaBrokers, ",")
		kafkaCfg.Topic = f.kafkaTopic
		validator.Validate(kafkaCfg)

		return stress.NewKafkaSink(kafkaCfg), nil

	default:
		return nil, nil
	}
}
