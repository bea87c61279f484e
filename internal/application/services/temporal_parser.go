package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/avonhealth/emrchat/backend/internal/domain/entities"
)

// temporalRule pairs a phrase pattern with its resolution rule. Rules are
// evaluated in priority order; across rules the leftmost match in the text
// wins, with the rule's priority breaking position ties.
type temporalRule struct {
	name    string
	pattern *regexp.Regexp
	resolve func(groups []string, ref time.Time) (time.Time, time.Time, bool)
}

// TemporalParser extracts an explicit date range from temporal phrases.
// A query with no recognizable temporal phrase yields nil, which is a valid
// outcome, not an error.
type TemporalParser struct {
	rules []temporalRule
}

// NewTemporalParser builds the ordered pattern→resolver rule list.
func NewTemporalParser() *TemporalParser {
	return &TemporalParser{rules: []temporalRule{
		{
			name:    "last_n_units",
			pattern: regexp.MustCompile(`\blast\s+(\d+)\s+(day|week|month|year)s?\b`),
			resolve: func(g []string, ref time.Time) (time.Time, time.Time, bool) {
				n, err := strconv.Atoi(g[1])
				if err != nil || n <= 0 {
					return time.Time{}, time.Time{}, false
				}
				return subtractUnits(ref, n, g[2]), ref, true
			},
		},
		{
			name:    "last_unit",
			pattern: regexp.MustCompile(`\blast\s+(day|week|month|year)\b`),
			resolve: func(g []string, ref time.Time) (time.Time, time.Time, bool) {
				return subtractUnits(ref, 1, g[1]), ref, true
			},
		},
		{
			name:    "between",
			pattern: regexp.MustCompile(`\bbetween\s+(.+?)\s+and\s+(.+?)(?:[.?!;]|$)`),
			resolve: func(g []string, ref time.Time) (time.Time, time.Time, bool) {
				from, okFrom := resolveDatePhrase(g[1], ref)
				to, okTo := resolveDatePhrase(g[2], ref)
				if !okFrom || !okTo {
					return time.Time{}, time.Time{}, false
				}
				return from, to, true
			},
		},
		{
			name:    "since",
			pattern: regexp.MustCompile(`\bsince\s+(.+?)(?:[.?!;]|$)`),
			resolve: func(g []string, ref time.Time) (time.Time, time.Time, bool) {
				from, ok := resolveDatePhrase(g[1], ref)
				if !ok {
					return time.Time{}, time.Time{}, false
				}
				return from, ref, true
			},
		},
		{
			name:    "this_period",
			pattern: regexp.MustCompile(`\bthis\s+(week|month|year)\b`),
			resolve: func(g []string, ref time.Time) (time.Time, time.Time, bool) {
				return startOfPeriod(ref, g[1]), ref, true
			},
		},
		{
			name:    "units_ago",
			pattern: regexp.MustCompile(`\b(\d+)\s+(day|week|month|year)s?\s+ago\b`),
			resolve: func(g []string, ref time.Time) (time.Time, time.Time, bool) {
				n, err := strconv.Atoi(g[1])
				if err != nil || n <= 0 {
					return time.Time{}, time.Time{}, false
				}
				// A point in time widens to a 1-day window.
				point := subtractUnits(ref, n, g[2])
				return point, point.Add(24 * time.Hour), true
			},
		},
		{
			name:    "named_day",
			pattern: regexp.MustCompile(`\b(yesterday|today)\b`),
			resolve: func(g []string, ref time.Time) (time.Time, time.Time, bool) {
				day := startOfDay(ref)
				if g[1] == "yesterday" {
					day = day.AddDate(0, 0, -1)
					return day, day.Add(24 * time.Hour), true
				}
				return day, ref, true
			},
		},
		{
			name:    "absolute_date",
			pattern: regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|(?:january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:,\s*|\s+)\d{4}|\d{1,2}\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{4})\b`),
			resolve: func(g []string, ref time.Time) (time.Time, time.Time, bool) {
				day, ok := resolveDatePhrase(g[1], ref)
				if !ok {
					return time.Time{}, time.Time{}, false
				}
				return day, day.Add(24 * time.Hour), true
			},
		},
	}}
}

// Parse returns the date range for the first recognizable temporal phrase in
// the text, or nil when none matches. The returned filter always satisfies
// DateFrom ≤ DateTo; inverted "between" bounds are swapped.
func (p *TemporalParser) Parse(text string, ref time.Time) *entities.TemporalFilter {
	lower := strings.ToLower(text)

	type candidate struct {
		start    int
		priority int
		matched  string
		groups   []string
		rule     *temporalRule
	}
	var candidates []candidate
	for i := range p.rules {
		rule := &p.rules[i]
		loc := rule.pattern.FindStringSubmatchIndex(lower)
		if loc == nil {
			continue
		}
		groups := make([]string, 0, len(loc)/2)
		for g := 0; g < len(loc); g += 2 {
			if loc[g] < 0 {
				groups = append(groups, "")
				continue
			}
			groups = append(groups, lower[loc[g]:loc[g+1]])
		}
		candidates = append(candidates, candidate{
			start:    loc[0],
			priority: i,
			matched:  lower[loc[0]:loc[1]],
			groups:   groups,
			rule:     rule,
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].start == candidates[j].start {
			return candidates[i].priority < candidates[j].priority
		}
		return candidates[i].start < candidates[j].start
	})

	for _, c := range candidates {
		from, to, ok := c.rule.resolve(c.groups, ref)
		if !ok {
			continue
		}
		if from.After(to) {
			from, to = to, from
		}
		return &entities.TemporalFilter{
			TimeReference: strings.TrimRight(c.matched, ".?!,; "),
			DateFrom:      from,
			DateTo:        to,
		}
	}
	return nil
}

func subtractUnits(ref time.Time, n int, unit string) time.Time {
	switch unit {
	case "day":
		return ref.AddDate(0, 0, -n)
	case "week":
		return ref.AddDate(0, 0, -7*n)
	case "month":
		return ref.AddDate(0, -n, 0)
	case "year":
		return ref.AddDate(-n, 0, 0)
	}
	return ref
}

// startOfPeriod returns the calendar-aligned start of the period containing
// ref. Weeks start on Monday.
func startOfPeriod(ref time.Time, unit string) time.Time {
	switch unit {
	case "week":
		day := startOfDay(ref)
		offset := (int(ref.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case "month":
		return time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, ref.Location())
	case "year":
		return time.Date(ref.Year(), 1, 1, 0, 0, 0, 0, ref.Location())
	}
	return ref
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// absoluteDateLayouts are tried in order when resolving a date phrase.
// time.Parse matches month names case-insensitively.
var absoluteDateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"January 2 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"01/02/2006",
	"1/2/2006",
	"January 2006",
	"Jan 2006",
	"2006",
}

// resolveDatePhrase resolves an absolute date or a relative sub-phrase such
// as "last month" or "yesterday" to a point in time.
func resolveDatePhrase(phrase string, ref time.Time) (time.Time, bool) {
	phrase = strings.TrimSpace(strings.TrimRight(phrase, ".?!,; "))
	if phrase == "" {
		return time.Time{}, false
	}

	switch phrase {
	case "yesterday":
		return startOfDay(ref).AddDate(0, 0, -1), true
	case "today":
		return startOfDay(ref), true
	case "last week":
		return subtractUnits(ref, 1, "week"), true
	case "last month":
		return subtractUnits(ref, 1, "month"), true
	case "last year":
		return subtractUnits(ref, 1, "year"), true
	}

	// Captured phrases may run past the date itself ("march 2024 were
	// changed"); retry after trimming trailing words from the right.
	attempt := phrase
	for attempt != "" {
		for _, layout := range absoluteDateLayouts {
			if t, err := time.Parse(layout, attempt); err == nil {
				return t, true
			}
		}
		idx := strings.LastIndexFunc(attempt, unicode.IsSpace)
		if idx < 0 {
			break
		}
		attempt = strings.TrimSpace(strings.TrimRight(attempt[:idx], ".?!,; "))
	}
	return time.Time{}, false
}
