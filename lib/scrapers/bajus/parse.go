package bajus

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"bullionwatch/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

// currency markers stripped before number matching. The page mixes the
// taka glyph, "TK"/"BDT" tokens, Bengali labels and bare numbers in the
// same cell, so recognition is symbol stripping plus a broad regex
// rather than locale-aware number parsing.
var currencyMarkers = []string{"৳", "TK", "BDT"}

// digits with optional thousands separators and at most one decimal point
var numberRegex = regexp.MustCompile(`[\d,]+\.?\d*`)

// a cell that is nothing but a purity label, e.g. "22" or "21 Karat".
// it parses as a number but denotes a category, never a price.
var caratLabelRegex = regexp.MustCompile(`^(18|21|22)(\s+karat)?$`)

// ExtractPrice pulls a numeric price out of a free-text cell. The second
// return is false when the text holds no parseable number.
func ExtractPrice(text string) (float64, bool) {
	for _, marker := range currencyMarkers {
		text = strings.ReplaceAll(text, marker, "")
	}
	text = strings.TrimSpace(text)

	match := numberRegex.FindString(text)
	if match == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// IsCaratLabel reports whether the whole cell is just a purity label.
func IsCaratLabel(cell string) bool {
	return caratLabelRegex.MatchString(strings.ToLower(strings.TrimSpace(cell)))
}

type categoryRule struct {
	category Category
	keywords []string
}

// evaluated in order, first match wins. A row mentioning several carat
// numbers is assigned the highest-priority match only; classification is
// per row, not per cell.
var categoryRules = []categoryRule{
	{Carat22, []string{"22"}},
	{Carat21, []string{"21"}},
	{Carat18, []string{"18"}},
	{Traditional, []string{"traditional", "ট্র্যাডিশনাল"}},
}

// ClassifyCategory decides the purity category from the row's full text.
// Pure function of the text, deterministic.
func ClassifyCategory(rowText string) Category {
	lower := strings.ToLower(rowText)
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lower, keyword) {
				return rule.category
			}
		}
	}
	return Unclassified
}

// the source language has two common spellings for silver
var goldMarkers = []string{"gold", "সোনা"}
var silverMarkers = []string{"silver", "রূপা", "রুপা"}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// MentionsMetal reports whether the row text concerns the given metal.
// Gold and silver are tested independently, a row may mention both.
func MentionsMetal(rowText string, metal Metal) bool {
	lower := strings.ToLower(rowText)
	if metal == Gold {
		return containsAny(lower, goldMarkers)
	}
	return containsAny(lower, silverMarkers)
}

// ParseSnapshot walks every table in the document and gathers the
// categorized price entries for both metals. Absence of tables or of
// recognizable prices is not an error, it yields empty buckets.
func ParseSnapshot(ctx context.Context, doc *goquery.Document, url string, now time.Time) Snapshot {
	ctx, span := tracer.Start(ctx, "ParseSnapshot")
	defer span.End()

	snapshot := Snapshot{
		Timestamp: now,
		Date:      now.Format(time.DateOnly),
		Url:       url,
	}

	tables := htmlutil.ExtractTables(doc)
	span.SetAttributes(attribute.Int("tables", len(tables)))

	for tableIdx, table := range tables {
		for _, row := range table {
			rowText := strings.Join(row, " ")
			if strings.TrimSpace(rowText) == "" {
				continue
			}
			for _, metal := range []Metal{Gold, Silver} {
				if !MentionsMetal(rowText, metal) {
					continue
				}
				collectRow(snapshot.Bucket(metal), metal, row, rowText, tableIdx+1, now)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("gold_entries", len(snapshot.Gold.All)),
		attribute.Int("silver_entries", len(snapshot.Silver.All)),
	)
	return snapshot
}

func collectRow(bucket *Bucket, metal Metal, row []string, rowText string, tableNum int, now time.Time) {
	for _, cell := range row {
		if IsCaratLabel(cell) {
			continue
		}
		value, ok := ExtractPrice(cell)
		if !ok || value <= metal.minPlausible() {
			continue
		}
		bucket.Add(ClassifyCategory(rowText), PriceEntry{
			Value:        value,
			OriginalText: cell,
			Row:          row,
			Timestamp:    now,
			Table:        tableNum,
		})
	}
}
