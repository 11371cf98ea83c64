package catalog

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The timetable's results table has no header names worth trusting — only
// column order is stable. The full mapping lives here and nowhere else, so
// an upstream layout change touches exactly this block.
const (
	colTerm = iota
	colCRN
	colSubject
	colNumber
	colSection
	colTitle
	colCrosslist
	colPeriodCode
	colPeriod
	colRoom
	colBuilding
	colInstructor
	colWorldCulture
	colDistrib
	colLangReq
	colLimit
	colEnrolled
	colStatus

	columnCount
)

// bannerText marks the row that precedes the data rows. Everything above it
// (query echo, navigation chrome, the column header row itself) is skipped.
const bannerText = "Periods: All"

// Extract parses a rendered timetable document into offerings, one per
// qualifying data row, in row order.
//
// Rows before the "Periods: All" banner are ignored. Rows without both a CRN
// and a title are separators, dropped silently. A cell that should be
// numeric but is not (dashes, entities, empty) yields a nil count; one
// malformed cell never discards the row, and one malformed row never
// discards the batch.
func Extract(html []byte) ([]Offering, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("catalog: parse html: %w", err)
	}

	offerings := []Offering{}
	seenBanner := false

	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		if !seenBanner {
			if strings.Contains(row.Text(), bannerText) {
				seenBanner = true
			}
			return
		}

		cells := row.Find("td")
		if cells.Length() < columnCount {
			return
		}

		o := Offering{
			Term:         cellText(cells, colTerm),
			CRN:          cellText(cells, colCRN),
			Subject:      cellText(cells, colSubject),
			Number:       cellText(cells, colNumber),
			Section:      cellText(cells, colSection),
			Title:        cellText(cells, colTitle),
			Crosslist:    cellText(cells, colCrosslist),
			PeriodCode:   cellText(cells, colPeriodCode),
			Period:       cellText(cells, colPeriod),
			Room:         cellText(cells, colRoom),
			Building:     cellText(cells, colBuilding),
			Instructor:   cellText(cells, colInstructor),
			WorldCulture: cellText(cells, colWorldCulture),
			Distrib:      cellText(cells, colDistrib),
			LangReq:      cellText(cells, colLangReq),
			Limit:        parseCount(cellText(cells, colLimit)),
			Enrolled:     parseCount(cellText(cells, colEnrolled)),
			Status:       cellText(cells, colStatus),
		}

		// Spacer rows carry neither an identifier nor a title.
		if o.CRN == "" && o.Title == "" {
			return
		}

		offerings = append(offerings, o)
	})

	return offerings, nil
}

func cellText(cells *goquery.Selection, idx int) string {
	return strings.TrimSpace(cells.Eq(idx).Text())
}

// parseCount turns a limit/enrolled cell into a count, nil if the text is
// not a plain non-negative integer.
func parseCount(s string) *int {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}
