package catalog

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// row renders a full 18-column data row. Cells default to innocuous values;
// override what the test cares about.
type row struct {
	term, crn, subj, num, sec, title string
	lim, enrl                        string
	status                           string
}

func (r row) html() string {
	cells := []string{
		orDefault(r.term, "202609"),
		r.crn,
		orDefault(r.subj, "COSC"),
		orDefault(r.num, "001"),
		orDefault(r.sec, "01"),
		r.title,
		"", "2", "10:10", "006", "LSB", "Staff", "", "TLA", "",
		orDefault(r.lim, "30"),
		orDefault(r.enrl, "12"),
		orDefault(r.status, "IP"),
	}
	var b strings.Builder
	b.WriteString("<tr>")
	for _, c := range cells {
		fmt.Fprintf(&b, "<td>%s</td>", c)
	}
	b.WriteString("</tr>")
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// fixture wraps rows in the chrome that surrounds the real results table:
// a query echo, a header row, then the banner row that marks where data
// begins.
func fixture(rows ...string) []byte {
	var b strings.Builder
	b.WriteString(`<html><body><div class="data-table"><table>`)
	b.WriteString(`<tr><td>Course Timetable Search Results</td></tr>`)
	b.WriteString(`<tr><th>Term</th><th>CRN</th><th>Subj</th></tr>`)
	b.WriteString(`<tr><td colspan="18">Terms: 202609; Subjects: All; Periods: All</td></tr>`)
	for _, r := range rows {
		b.WriteString(r)
	}
	b.WriteString(`</table></div></body></html>`)
	return []byte(b.String())
}

func TestExtractCountsRows(t *testing.T) {
	html := fixture(
		row{crn: "10001", title: "Intro to Programming", lim: "10", enrl: "10"}.html(),
		row{crn: "10002", title: "Data Structures", lim: "10", enrl: "8"}.html(),
		row{crn: "10003", title: "Algorithms", lim: "10", enrl: "&mdash;"}.html(),
	)

	got, err := Extract(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 offerings, got %d", len(got))
	}

	if got[0].SeatOpen() {
		t.Error("full section reported open")
	}
	if !got[1].SeatOpen() {
		t.Error("section with 8/10 not reported open")
	}
	if got[2].Enrolled != nil {
		t.Errorf("dash enrollment parsed to %d, want unknown", *got[2].Enrolled)
	}
	if got[2].SeatOpen() {
		t.Error("unknown enrollment reported open")
	}
}

func TestExtractSkipsPreBannerRows(t *testing.T) {
	// A row with a full complement of cells placed before the banner must
	// not be parsed.
	var b strings.Builder
	b.WriteString(`<html><body><table>`)
	b.WriteString(row{crn: "99999", title: "Not Real Data"}.html())
	b.WriteString(`<tr><td>Periods: All</td></tr>`)
	b.WriteString(row{crn: "10001", title: "Real Data"}.html())
	b.WriteString(`</table></body></html>`)

	got, err := Extract([]byte(b.String()))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 offering, got %d", len(got))
	}
	if got[0].CRN != "10001" {
		t.Errorf("got CRN %q, want 10001", got[0].CRN)
	}
}

func TestExtractDropsSeparatorRows(t *testing.T) {
	html := fixture(
		row{crn: "10001", title: "Intro to Programming"}.html(),
		row{crn: "", title: ""}.html(), // separator: no identifier, no title
		row{crn: "10002", title: "Data Structures"}.html(),
	)

	got, err := Extract(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 offerings, got %d", len(got))
	}
}

func TestExtractNoBannerYieldsNothing(t *testing.T) {
	html := []byte(`<html><body><table>` +
		row{crn: "10001", title: "Orphan"}.html() +
		`</table></body></html>`)

	got, err := Extract(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected 0 offerings without banner, got %d", len(got))
	}
}

func TestExtractFieldMapping(t *testing.T) {
	html := fixture(row{
		term: "202609", crn: "12345", subj: "ANTH", num: "050", sec: "02",
		title: "Political Anthropology", lim: "25", enrl: "19", status: "IP",
	}.html())

	got, err := Extract(html)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 offering, got %d", len(got))
	}

	o := got[0]
	if o.Term != "202609" || o.CRN != "12345" || o.Subject != "ANTH" ||
		o.Number != "050" || o.Section != "02" || o.Title != "Political Anthropology" {
		t.Errorf("unexpected mapping: %+v", o)
	}
	if o.Limit == nil || *o.Limit != 25 {
		t.Errorf("limit = %v, want 25", o.Limit)
	}
	if o.Enrolled == nil || *o.Enrolled != 19 {
		t.Errorf("enrolled = %v, want 19", o.Enrolled)
	}
	if o.Status != "IP" {
		t.Errorf("status = %q, want IP", o.Status)
	}
}

func TestExtractIdempotent(t *testing.T) {
	html := fixture(
		row{crn: "10001", title: "Intro to Programming"}.html(),
		row{crn: "10002", title: "Data Structures", enrl: "n/a"}.html(),
	)

	first, err := Extract(html)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Extract(html)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two extractions of the same document differ")
	}
}

func TestFilter(t *testing.T) {
	offerings := []Offering{
		{Subject: "COSC", Number: "001", Section: "01"},
		{Subject: "COSC", Number: "001", Section: "02"},
		{Subject: "COSC", Number: "010", Section: "01"},
		{Subject: "MATH", Number: "001", Section: "01"},
	}

	got := Filter(offerings, "COSC", "001")
	if len(got) != 2 {
		t.Fatalf("expected both sections of COSC 001, got %d", len(got))
	}
	if got := Filter(offerings, "ENGL", "005"); got != nil {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"30", intp(30)},
		{" 30 ", intp(30)},
		{"0", intp(0)},
		{"", nil},
		{"—", nil},
		{"n/a", nil},
		{"-5", nil},
		{"12b", nil},
	}
	for _, tt := range tests {
		got := parseCount(tt.in)
		switch {
		case got == nil && tt.want != nil:
			t.Errorf("parseCount(%q) = nil, want %d", tt.in, *tt.want)
		case got != nil && tt.want == nil:
			t.Errorf("parseCount(%q) = %d, want nil", tt.in, *got)
		case got != nil && tt.want != nil && *got != *tt.want:
			t.Errorf("parseCount(%q) = %d, want %d", tt.in, *got, *tt.want)
		}
	}
}

func intp(n int) *int { return &n }
