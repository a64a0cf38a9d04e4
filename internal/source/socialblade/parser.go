package socialblade

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/timmy/tubebench/internal/domain"
	"github.com/timmy/tubebench/internal/source"
)

var notFoundMarkers = []string{
	"uh oh! it seems",
	"channel not found",
	"user not found",
	"we couldn't find",
}

var dateLayouts = []string{
	"2006-01-02",
	"Jan 2, 2006",
	"Mon, Jan 2, 2006",
	"2 Jan 2006",
}

var ordinalSuffix = regexp.MustCompile(`(\d)(st|nd|rd|th)\b`)

// column indexes resolved from a stats table header
type columnMap struct {
	date, subs, views, videos int
}

// ParseDailyStats extracts the daily statistics table from a channel page.
// It returns ErrNoData when the page is a not-found page or has no usable rows.
func ParseDailyStats(r io.Reader) ([]domain.DailyStat, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	if isNotFoundPage(doc) {
		return nil, ErrNoData
	}

	var days []domain.DailyStat
	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		cols, ok := resolveColumns(table)
		if !ok {
			return true
		}
		days = parseRows(table, cols)
		return len(days) == 0
	})

	if len(days) == 0 {
		return nil, ErrNoData
	}
	return days, nil
}

func isNotFoundPage(doc *goquery.Document) bool {
	text := strings.ToLower(doc.Find("title").Text() + " " + doc.Find("h1, h2, .error, #error").Text())
	for _, marker := range notFoundMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

func resolveColumns(table *goquery.Selection) (columnMap, bool) {
	cols := columnMap{date: -1, subs: -1, views: -1, videos: -1}
	header := table.Find("thead tr").First()
	if header.Length() == 0 {
		header = table.Find("tr").First()
	}
	header.Find("th, td").Each(func(i int, cell *goquery.Selection) {
		name := strings.ToLower(strings.TrimSpace(cell.Text()))
		switch {
		case strings.Contains(name, "date") && cols.date < 0:
			cols.date = i
		case strings.Contains(name, "subscriber") && cols.subs < 0:
			cols.subs = i
		case strings.Contains(name, "view") && cols.views < 0:
			cols.views = i
		case (strings.Contains(name, "video") || strings.Contains(name, "upload")) && cols.videos < 0:
			cols.videos = i
		}
	})
	return cols, cols.date >= 0 && cols.views >= 0
}

func parseRows(table *goquery.Selection, cols columnMap) []domain.DailyStat {
	var days []domain.DailyStat
	rows := table.Find("tbody tr")
	if rows.Length() == 0 {
		rows = table.Find("tr").Slice(1, goquery.ToEnd)
	}
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		date, ok := parseDate(cellText(cells, cols.date))
		if !ok {
			return
		}
		views, _ := source.ParseCount(firstToken(cellText(cells, cols.views)))
		subs, _ := source.ParseCount(firstToken(cellText(cells, cols.subs)))
		videos, _ := source.ParseCount(firstToken(cellText(cells, cols.videos)))
		days = append(days, domain.DailyStat{
			Date:             date,
			SubscribersDelta: subs,
			Views:            views,
			VideosPosted:     videos,
			HadUpload:        videos > 0,
		})
	})
	return days
}

func cellText(cells *goquery.Selection, idx int) string {
	if idx < 0 || idx >= cells.Length() {
		return ""
	}
	return strings.TrimSpace(cells.Eq(idx).Text())
}

// firstToken keeps the delta of cells rendered as "+1.2K 45.6M".
func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func parseDate(s string) (time.Time, bool) {
	s = ordinalSuffix.ReplaceAllString(strings.TrimSpace(s), "$1")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
