package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"eamis-catcher/internal/components/chrono"
	"eamis-catcher/internal/components/telemetry"
	"eamis-catcher/internal/scrapers/eamis"
	"eamis-catcher/lib/configutil"
	"eamis-catcher/lib/util/restyutil"
	"eamis-catcher/lib/util/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
)

// env is what every command needs before talking to the portal.
type env struct {
	config Config
	tel    telemetry.API
	clock  chrono.API
	otel   telemetry.Telemetry
	output telemetry.MessageOutput
}

func loadEnv(ctx context.Context) env {
	tel := telemetry.InitSlog(verbose)

	cfg, err := configutil.ReadConfigWithDefaults(configPath, DefaultConfig())
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	e := env{
		config: cfg,
		tel:    tel,
		clock:  chrono.NewStandardImpl(),
	}

	if cfg.Telemetry.Enabled() {
		e.otel, err = telemetry.Setup(ctx, "eamis-catcher", cfg.Telemetry)
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		telemetry.InstrumentPerfStats(ctx)
	}

	if dumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(dumpDir)
		if err != nil {
			serviceutil.Fatal("failed to create dump directory", err)
		}
		e.output = output
	}

	return e
}

func (e env) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	err := e.otel.Shutdown(ctx)
	if err != nil {
		slog.Warn("failed to flush telemetry", "err", err)
	}
}

func (e env) client(ctx context.Context) *eamis.Client {
	client, err := eamis.FromSession(ctx, e.config.ClientOptions(e.tel, e.output), e.config.SessionCookies())
	if err != nil {
		serviceutil.Fatal("failed to open portal session", err)
	}
	return client
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
