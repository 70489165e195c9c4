package letters

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Lead is one row of the exported leads CSV. The export carries many more
// columns; only the ones the letter needs are mapped.
type Lead struct {
	FirstName    string
	LastName     string
	Email        string
	Address      string
	City         string
	State        string
	PostalCode   string
	DaysOnMarket string
	Wholesale    string
}

var leadColumns = map[string]func(*Lead, string){
	"FirstName":             func(l *Lead, v string) { l.FirstName = v },
	"LastName":              func(l *Lead, v string) { l.LastName = v },
	"Contact1Email_1":       func(l *Lead, v string) { l.Email = v },
	"PropertyAddress":       func(l *Lead, v string) { l.Address = v },
	"PropertyCity":          func(l *Lead, v string) { l.City = v },
	"PropertyState":         func(l *Lead, v string) { l.State = v },
	"PropertyPostalCode":    func(l *Lead, v string) { l.PostalCode = v },
	"MLS_Curr_DaysOnMarket": func(l *Lead, v string) { l.DaysOnMarket = v },
	"WholesaleValue":        func(l *Lead, v string) { l.Wholesale = v },
}

// LoadLeads reads the leads CSV. Columns are matched by header name, so the
// export's column order does not matter.
func LoadLeads(path string) ([]Lead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open leads file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read leads header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "﻿")
	}

	setters := make([]func(*Lead, string), len(header))
	for i, name := range header {
		setters[i] = leadColumns[strings.TrimSpace(name)]
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read leads rows: %w", err)
	}

	leads := make([]Lead, 0, len(records))
	for _, record := range records {
		var lead Lead
		for i, value := range record {
			if i < len(setters) && setters[i] != nil {
				setters[i](&lead, value)
			}
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// FullName joins the contact name parts, tolerating a missing half.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

// Qualifies reports whether a lead gets a letter: listed at least
// domThreshold days and a plausible contact email.
func (l Lead) Qualifies(domThreshold float64) bool {
	dom, err := strconv.ParseFloat(strings.TrimSpace(l.DaysOnMarket), 64)
	if err != nil {
		return false
	}
	return dom >= domThreshold && strings.Contains(l.Email, "@")
}

// parseCurrency reads "$1,234.56"-style strings. Anything unparseable is
// treated as zero, matching the upstream export's habit of blank cells.
func parseCurrency(value string) float64 {
	cleaned := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(value, "$", ""), ",", ""))
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// formatCurrency renders a dollar amount with thousands separators and two
// decimals, e.g. $123,450.00.
func formatCurrency(value float64) string {
	s := strconv.FormatFloat(value, 'f', 2, 64)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return sign + "$" + b.String() + "." + frac
}

// sanitizeFilename keeps alphanumerics, spaces, dashes, underscores and
// dots, and trims trailing spaces.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Generator renders letters of intent for qualifying leads.
type Generator struct {
	OutputDir    string
	DOMThreshold float64
	log          *logrus.Logger

	now func() time.Time
}

func NewGenerator(outputDir string, domThreshold float64, log *logrus.Logger) *Generator {
	return &Generator{
		OutputDir:    outputDir,
		DOMThreshold: domThreshold,
		log:          log,
		now:          time.Now,
	}
}

// Generate writes one Markdown letter and one HTML rendering per qualifying
// lead and returns how many leads qualified. Per-lead render failures are
// logged and skipped.
func (g *Generator) Generate(leads []Lead) (int, error) {
	if err := os.MkdirAll(g.OutputDir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	written := 0
	for _, lead := range leads {
		if !lead.Qualifies(g.DOMThreshold) {
			continue
		}

		letter := g.compose(lead)
		base := sanitizeFilename(lead.Address + " - LETTER OF INTENT")
		if err := g.render(letter, filepath.Join(g.OutputDir, base)); err != nil {
			g.log.WithFields(logrus.Fields{
				"address": lead.Address,
				"error":   err,
			}).Error("Failed to render letter")
			continue
		}
		written++
	}
	return written, nil
}

// compose derives the offer terms: 95% of the wholesale value, a 1% earnest
// money deposit, closing two weeks out.
func (g *Generator) compose(lead Lead) Letter {
	offer := 0.95 * parseCurrency(lead.Wholesale)
	now := g.now()

	return Letter{
		FullName:    lead.FullName(),
		Address:     lead.Address,
		City:        lead.City,
		State:       lead.State,
		ZipCode:     lead.PostalCode,
		Date:        now.Format("01/02/2006"),
		OfferPrice:  formatCurrency(offer),
		EMD:         formatCurrency(offer * 0.01),
		ClosingDate: now.AddDate(0, 0, 14).Format("01/02/2006"),
	}
}
