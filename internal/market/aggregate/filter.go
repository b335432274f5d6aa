package aggregate

import (
	"sort"

	"github.com/sirupsen/logrus"

	"btcoracle/internal/market/feed"
)

// iqrMultiplier is the standard Tukey fence factor.
const iqrMultiplier = 1.5

// minQuotesForIQR is the smallest sample for which quartile estimation is
// meaningful; below this the filter passes everything through.
const minQuotesForIQR = 4

// FilterOutliers removes quotes whose price falls outside
// [Q1 - 1.5*IQR, Q3 + 1.5*IQR]. Policy for degenerate results: if the
// filter would leave fewer than 2 quotes, the unfiltered set is returned
// unchanged. This is the single authoritative call site for that policy.
func FilterOutliers(quotes []feed.Quote, log *logrus.Logger) (kept []feed.Quote, removed int) {
	if len(quotes) < minQuotesForIQR {
		return quotes, 0
	}

	sorted := make([]feed.Quote, len(quotes))
	copy(sorted, quotes)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Price < sorted[j].Price
	})

	n := len(sorted)
	q1 := sorted[n/4].Price
	q3 := sorted[(3*n)/4].Price
	iqr := q3 - q1
	lower := q1 - iqrMultiplier*iqr
	upper := q3 + iqrMultiplier*iqr

	kept = make([]feed.Quote, 0, n)
	for _, q := range sorted {
		if q.Price >= lower && q.Price <= upper {
			kept = append(kept, q)
		} else if log != nil {
			log.WithFields(logrus.Fields{
				"source":      q.Source,
				"price":       q.Price,
				"lower_bound": lower,
				"upper_bound": upper,
			}).Warn("discarding outlier quote")
		}
	}

	if len(kept) < 2 {
		if log != nil {
			log.WithFields(logrus.Fields{
				"kept":  len(kept),
				"total": n,
			}).Warn("outlier filter left fewer than 2 quotes, falling back to unfiltered set")
		}
		return quotes, 0
	}

	removed = n - len(kept)
	if removed > 0 && log != nil {
		log.WithField("removed", removed).Info("outlier quotes removed")
	}
	return kept, removed
}
