// Package catalog defines the course offering model and extracts offerings
// from the timetable's rendered HTML.
package catalog

// Offering is one row of the scraped timetable: a scheduled section of a
// course in a term. Offerings carry no identity across scrapes; the whole
// listing is recomputed on every refresh.
type Offering struct {
	Term       string `json:"term"`
	CRN        string `json:"crn"`
	Subject    string `json:"subj"`
	Number     string `json:"num"`
	Section    string `json:"sec"`
	Title      string `json:"title"`
	Crosslist  string `json:"xlist,omitempty"`
	PeriodCode string `json:"periodCode,omitempty"`
	Period     string `json:"period,omitempty"`
	Room       string `json:"room,omitempty"`
	Building   string `json:"building,omitempty"`
	Instructor string `json:"instructor,omitempty"`

	// Requirement flags as printed by the timetable.
	WorldCulture string `json:"wc,omitempty"`
	Distrib      string `json:"distrib,omitempty"`
	LangReq      string `json:"langreq,omitempty"`

	// Limit and Enrolled are nil when the source cell was not a number
	// (the timetable prints dashes and ampersand entities for unknown
	// counts). A nil count never participates in seat comparisons.
	Limit    *int   `json:"lim"`
	Enrolled *int   `json:"enrl"`
	Status   string `json:"status,omitempty"`
}

// SeatOpen reports whether the offering has a free seat: both counts known
// and enrolled strictly below the limit. The timetable allows enrolled to
// exceed the limit (waitlists, instructor overrides), so no ordering between
// the two is assumed beyond this comparison.
func (o *Offering) SeatOpen() bool {
	return o.Enrolled != nil && o.Limit != nil && *o.Enrolled < *o.Limit
}

// Filter returns the offerings matching a subject and course number.
// Matching is exact on both fields; section is deliberately ignored so a
// subscription covers every section of the course.
func Filter(offerings []Offering, subject, number string) []Offering {
	var out []Offering
	for _, o := range offerings {
		if o.Subject == subject && o.Number == number {
			out = append(out, o)
		}
	}
	return out
}
