package bajus

import "time"

type Metal string

const (
	Gold   Metal = "gold"
	Silver Metal = "silver"
)

// minPlausible is the smallest value accepted as a real price for the
// metal. The source page quotes gold per gram/bhori (always well above
// 1000) and silver in a lower range; anything below is a stray number
// (row index, footnote marker) matched by the broad price regex.
func (m Metal) minPlausible() float64 {
	if m == Gold {
		return 1000
	}
	return 100
}

type Category int

const (
	Unclassified Category = iota
	Carat22
	Carat21
	Carat18
	Traditional
)

func (c Category) String() string {
	switch c {
	case Carat22:
		return "22_carat"
	case Carat21:
		return "21_carat"
	case Carat18:
		return "18_carat"
	case Traditional:
		return "traditional"
	}
	return "all"
}

// Categories lists the named purity categories in priority order,
// excluding Unclassified.
var Categories = []Category{Carat22, Carat21, Carat18, Traditional}

// PriceEntry is one recognized price cell. Immutable once created.
type PriceEntry struct {
	Value        float64  `json:"value"`
	OriginalText string   `json:"original_text"`
	Row          []string `json:"row"`
	// 1-based index of the table the row came from
	Table     int       `json:"table"`
	Timestamp time.Time `json:"timestamp"`
}

// Bucket accumulates categorized price entries for one metal. All holds
// every entry regardless of category; it is the union of the category
// slices plus anything unclassified, not a separate source of truth.
type Bucket struct {
	Carat22     []PriceEntry `json:"22_carat"`
	Carat21     []PriceEntry `json:"21_carat"`
	Carat18     []PriceEntry `json:"18_carat"`
	Traditional []PriceEntry `json:"traditional"`
	All         []PriceEntry `json:"all"`
}

func (b *Bucket) Add(category Category, entry PriceEntry) {
	switch category {
	case Carat22:
		b.Carat22 = append(b.Carat22, entry)
	case Carat21:
		b.Carat21 = append(b.Carat21, entry)
	case Carat18:
		b.Carat18 = append(b.Carat18, entry)
	case Traditional:
		b.Traditional = append(b.Traditional, entry)
	}
	b.All = append(b.All, entry)
}

func (b *Bucket) ByCategory(category Category) []PriceEntry {
	switch category {
	case Carat22:
		return b.Carat22
	case Carat21:
		return b.Carat21
	case Carat18:
		return b.Carat18
	case Traditional:
		return b.Traditional
	}
	return b.All
}

// Snapshot is the result of one scrape run. It is built once and never
// mutated afterwards; the next run's snapshot supersedes it on disk.
type Snapshot struct {
	Timestamp time.Time
	Date      string
	Url       string
	Gold      Bucket
	Silver    Bucket
}

func (s *Snapshot) Bucket(metal Metal) *Bucket {
	if metal == Gold {
		return &s.Gold
	}
	return &s.Silver
}
