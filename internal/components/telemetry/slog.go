package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// SlogAPI implements API on a slog logger. Error params are logged under
// `err`, every other param under `params.<position>`.
type SlogAPI struct {
	logger *slog.Logger
}

// NewSlogAPI writes slog's text format to w, debug reports are dropped
// unless verbose is set.
func NewSlogAPI(w io.Writer, verbose bool) SlogAPI {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return SlogAPI{logger: slog.New(handler)}
}

// InitSlog creates a SlogAPI on stderr and makes its logger the default
// one, so the cli's own slog calls are interleaved with the reports.
func InitSlog(verbose bool) SlogAPI {
	api := NewSlogAPI(os.Stderr, verbose)
	slog.SetDefault(api.logger)
	return api
}

func reportAttrs(id string, params []any) []any {
	var out []any
	if id != "" {
		out = append(out, "id", id)
	}
	for i, p := range params {
		if err, ok := p.(error); ok {
			out = append(out, "err", err.Error())
			continue
		}
		out = append(out, fmt.Sprintf("params.%d", i), p)
	}
	return out
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.logger.Error("broken component", reportAttrs(id, params)...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.logger.Warn("warning", reportAttrs(id, params)...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	s.logger.Debug(message, reportAttrs("", params)...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	s.logger.Info("count", "id", id, "n", count)
}
