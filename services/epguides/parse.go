package epguides

import (
	"encoding/csv"
	"html"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/epguides-io/epguides-api/models"
)

// Column positions inside the episode CSV export. The two export
// generations (tvrage and tvmaze backed) lay the columns out differently.
type ColumnMap struct {
	Season int
	Number int
	Date   int
	Title  int
}

var (
	rageColumns = ColumnMap{Season: 1, Number: 2, Date: 4, Title: 5}
	mazeColumns = ColumnMap{Season: 1, Number: 2, Date: 3, Title: 4}
)

// ShowPage holds everything scraped from a single show's listing page.
type ShowPage struct {
	Title      string
	IMDBID     string
	ExportPath string
	Columns    ColumnMap
}

var (
	csvRageRe  = regexp.MustCompile(`exportToCSV\.asp\?rage=(\d+)`)
	csvMazeRe  = regexp.MustCompile(`exportToCSVmaze\.asp\?maze=(\d+)`)
	imdbRe     = regexp.MustCompile(`(?i)imdb\.com/title/(tt\d+)`)
	h2LinkRe   = regexp.MustCompile(`(?is)<h2>[^<]*<a[^>]*>([^<]+)</a>`)
	h2PlainRe  = regexp.MustCompile(`(?is)<h2>([^<]+)</h2>`)
	titleTagRe = regexp.MustCompile(`(?is)<title>([^<]+)</title>`)
	digitsRe   = regexp.MustCompile(`(\d+)`)
)

var datePlaceholderRe = regexp.MustCompile(`(?i)^(_+|TBA|TBD|\?+|N/A)`)

var dateLayouts = []string{"2 Jan 06", "2/Jan/06", "2006-01-02"}

var monthYearLayouts = []string{"Jan 2006", "January 2006", "Jan 06", "January 06"}

// parseListingDate parses the date formats that appear in epguides
// listings. Placeholder values yield nil. Two-digit years parsed into the
// future are pulled back a century, so "20 Jan 08" is 2008, not 2108.
func parseListingDate(value string, now time.Time) *models.Date {
	value = strings.TrimSpace(value)
	if value == "" || datePlaceholderRe.MatchString(value) {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			d := models.DateOf(fixCentury(t, now))
			return &d
		}
	}
	for _, layout := range monthYearLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			d := models.NewDate(fixCentury(t, now).Year(), t.Month(), 1)
			return &d
		}
	}
	return nil
}

func fixCentury(t time.Time, now time.Time) time.Time {
	if t.Year() > now.Year()+2 {
		return t.AddDate(-100, 0, 0)
	}
	return t
}

// parseCatalog parses the flat allshows.txt export. The first row is a
// header naming the columns; rows that do not carry at least a directory
// and a title are skipped.
func parseCatalog(text string, now time.Time) []*models.Show {
	rows := readCSV(text)
	if len(rows) < 2 {
		return nil
	}
	cols := map[string]int{}
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var shows []*models.Show
	for _, row := range rows[1:] {
		s, err := models.NewShow(field(row, "directory"), cleanTitle(field(row, "title")))
		if err != nil {
			continue
		}
		// Keep the catalog's own casing for URLs.
		s.EpguidesKey = field(row, "directory")
		s.Network = field(row, "network")
		s.Country = field(row, "country")
		s.RunTimeMin = parseLeadingInt(field(row, "run time"))
		s.TotalEpisodes = parseLeadingInt(field(row, "number of episodes"))
		s.StartDate = parseListingDate(field(row, "start date"), now)
		s.EndDate = parseListingDate(field(row, "end date"), now)
		shows = append(shows, s)
	}
	return shows
}

// parseShowPage scrapes the IMDB id, title and CSV export link from a show
// page.
func parseShowPage(text string) *ShowPage {
	page := &ShowPage{}

	if m := csvRageRe.FindStringSubmatch(text); m != nil {
		page.ExportPath = "/common/exportToCSV.asp?rage=" + m[1]
		page.Columns = rageColumns
	} else if m := csvMazeRe.FindStringSubmatch(text); m != nil {
		page.ExportPath = "/common/exportToCSVmaze.asp?maze=" + m[1]
		page.Columns = mazeColumns
	}

	if m := imdbRe.FindStringSubmatch(text); m != nil {
		page.IMDBID = m[1]
	}

	if m := h2LinkRe.FindStringSubmatch(text); m != nil {
		page.Title = html.UnescapeString(strings.TrimSpace(m[1]))
	} else if m := h2PlainRe.FindStringSubmatch(text); m != nil {
		page.Title = html.UnescapeString(strings.TrimSpace(m[1]))
	} else if m := titleTagRe.FindStringSubmatch(text); m != nil {
		page.Title = html.UnescapeString(strings.TrimSpace(m[1]))
	}

	return page
}

// parseEpisodes parses an episode CSV export. The header row and any row
// with an unparseable season, number or date is skipped, matching how
// sparse the real exports are.
func parseEpisodes(text string, columns ColumnMap, now time.Time) []*models.Episode {
	var episodes []*models.Episode
	for _, row := range readCSV(text) {
		episodes = appendEpisode(episodes, row, columns, now)
	}
	return episodes
}

func appendEpisode(episodes []*models.Episode, row []string, columns ColumnMap, now time.Time) []*models.Episode {
	get := func(i int) string {
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	season, err := strconv.Atoi(get(columns.Season))
	if err != nil {
		return episodes
	}
	number, err := strconv.Atoi(get(columns.Number))
	if err != nil {
		return episodes
	}
	date := parseListingDate(get(columns.Date), now)
	if date == nil {
		return episodes
	}
	e, err := models.NewEpisode(season, number, html.UnescapeString(get(columns.Title)), *date)
	if err != nil {
		return episodes
	}
	return append(episodes, e)
}

func readCSV(text string) [][]string {
	// The exports occasionally carry broken byte sequences that surface as
	// replacement characters.
	text = strings.ReplaceAll(text, "�", "")
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func parseLeadingInt(value string) int {
	m := digitsRe.FindStringSubmatch(value)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// cleanTitle fixes catalog titles whose corrupted leading byte shows up as
// a lone space.
func cleanTitle(title string) string {
	if strings.HasPrefix(title, " ") && len(title) > 1 {
		lower := strings.ToLower(title)
		if strings.Contains(lower, " la carte") {
			return "À La Carte"
		}
		if strings.HasPrefix(lower, " la ") {
			return "À" + strings.TrimLeft(title, " ")
		}
		return strings.TrimLeft(title, " ")
	}
	return strings.TrimSpace(title)
}
