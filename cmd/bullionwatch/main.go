package main

import (
	"context"
	"log/slog"

	"bullionwatch/cmd/bullionwatch/commands"
	"bullionwatch/lib/serviceutil"
	"bullionwatch/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	telemetry.InitSlog(false)
	err := telemetry.SetupFromEnv(ctx, "bullionwatch")
	if err != nil {
		slog.Warn("failed to setup telemetry", "err", err)
	}
	defer telemetry.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	commands.ExecuteContext(ctx)
}
