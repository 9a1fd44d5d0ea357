package prices

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"bullionwatch/lib/scrapers/bajus"
	"bullionwatch/lib/timezone"
	"bullionwatch/services/pricehistory"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/prices")

// Service runs the scrape pipeline: fetch, parse, export the snapshot,
// and (when due) merge the daily history. Strictly sequential; each
// stage completes before the next starts.
type Service struct {
	client  *bajus.Client
	history pricehistory.Service
	dataDir string
}

func NewService(client *bajus.Client, history pricehistory.Service, dataDir string) Service {
	return Service{
		client:  client,
		history: history,
		dataDir: dataDir,
	}
}

type RunOptions struct {
	// merge the daily history regardless of the hour gate
	ForceHistory bool
}

// Run executes one scrape. A fetch failure aborts the run; export and
// history failures are collected and returned after every remaining
// step has had its chance.
func (s Service) Run(ctx context.Context, opts RunOptions) (*bajus.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "Run")
	defer span.End()

	doc, err := s.client.FetchDocument(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("fetch: %w", err)
	}

	now := timezone.Now()
	snapshot := bajus.ParseSnapshot(ctx, doc, s.client.Url, now)
	slog.InfoContext(ctx, "parsed price page",
		"gold_entries", len(snapshot.Gold.All),
		"silver_entries", len(snapshot.Silver.All),
	)
	span.SetAttributes(
		attribute.Int("gold_entries", len(snapshot.Gold.All)),
		attribute.Int("silver_entries", len(snapshot.Silver.All)),
	)

	var errlist []error
	err = s.export(ctx, &snapshot)
	if err != nil {
		errlist = append(errlist, err)
	}

	if opts.ForceHistory || historyDue(now) {
		for _, metal := range []bajus.Metal{bajus.Gold, bajus.Silver} {
			averages := pricehistory.ComputeAverages(snapshot.Bucket(metal), snapshot.Date)
			err := s.history.Merge(ctx, metal, averages)
			if err != nil {
				errlist = append(errlist, err)
			}
		}
	} else {
		slog.InfoContext(ctx, "skipping history update, outside the 3-hour schedule", "hour", now.Hour())
	}

	return &snapshot, errors.Join(errlist...)
}

// historyDue gates history merges to every third hour (0, 3, ..., 21)
// to bound history growth. Pure scheduling policy; the merge itself is
// always safe to run.
func historyDue(now time.Time) bool {
	return now.Hour()%3 == 0
}
