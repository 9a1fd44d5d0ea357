package bajus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"bullionwatch/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	browser "github.com/EDDYCJY/fake-useragent"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/bajus")

const DefaultUrl = "https://www.bajus.org/gold-price"

// Identity is one browser fingerprint to present to the source site.
type Identity struct {
	Name      string
	UserAgent string
}

// tried strictly in order, stopping at first success. The site fronts
// with bot protection that rejects some client fingerprints with a 403,
// so a rejection just moves on to the next identity.
var defaultIdentities = []Identity{
	{"chrome120", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"},
	{"chrome110", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36"},
	{"chrome100", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/100.0.4896.75 Safari/537.36"},
	{"safari15_3", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.3 Safari/605.1.15"},
	{"edge101", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/101.0.4951.64 Safari/537.36 Edg/101.0.1210.47"},
}

type Client struct {
	Url        string
	Http       *resty.Client
	identities []Identity
}

type ClientOptions struct {
	// defaults to DefaultUrl
	Url string
	// defaults to 30s
	Timeout time.Duration
	// overrides the built-in identity rotation, mainly for tests
	Identities []Identity
}

func NewClient(opts ClientOptions) (*Client, error) {
	if opts.Url == "" {
		opts.Url = DefaultUrl
	}
	if opts.Timeout == 0 {
		opts.Timeout = time.Second * 30
	}
	identities := opts.Identities
	if identities == nil {
		identities = append(identities, defaultIdentities...)
		// last resort: a randomized user agent
		identities = append(identities, Identity{Name: "random", UserAgent: browser.Random()})
	}

	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "scrapers/bajus/http")

	return &Client{
		Url:        opts.Url,
		Http:       client,
		identities: identities,
	}, nil
}

// FetchDocument fetches the price page, rotating through the identity
// list until one attempt succeeds. Rejections and transport errors are
// treated alike: log and try the next identity.
func (c *Client) FetchDocument(ctx context.Context) (*goquery.Document, error) {
	ctx, span := tracer.Start(ctx, "client:FetchDocument")
	defer span.End()

	var attemptErrs []error
	for _, identity := range c.identities {
		slog.InfoContext(ctx, "fetching price page", "url", c.Url, "identity", identity.Name)

		res, err := c.Http.R().
			SetContext(ctx).
			SetHeader("user-agent", identity.UserAgent).
			Get(c.Url)
		if err != nil {
			slog.WarnContext(ctx, "fetch attempt failed", "identity", identity.Name, "err", err)
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", identity.Name, err))
			continue
		}
		if res.StatusCode() == http.StatusForbidden {
			slog.WarnContext(ctx, "identity rejected by source", "identity", identity.Name)
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: rejected with 403", identity.Name))
			continue
		}
		if res.IsError() {
			slog.WarnContext(ctx, "fetch attempt failed", "identity", identity.Name, "status", res.Status())
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %s", identity.Name, res.Status()))
			continue
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse html")
			return nil, fmt.Errorf("parse html: %w", err)
		}
		return doc, nil
	}

	err := fmt.Errorf("all fetch attempts failed: %w", errors.Join(attemptErrs...))
	span.RecordError(err)
	span.SetStatus(codes.Error, "identity rotation exhausted")
	return nil, err
}
