package letters

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/yuin/goldmark"
)

// Letter holds the rendered terms for one lead.
type Letter struct {
	FullName    string
	Address     string
	City        string
	State       string
	ZipCode     string
	Date        string
	OfferPrice  string
	EMD         string
	ClosingDate string
}

var letterTemplate = template.Must(template.New("loi").Parse(`{{.Address}}, {{.City}}, {{.State}} {{.ZipCode}}

{{.Date}}

Dear {{.FullName}},

I am writing to express my interest in structuring an all-cash offer on the property located at {{.Address}}, {{.City}}, {{.State}} {{.ZipCode}}.

Based on market conditions, comparable sales, and property profile, I would like to propose the following terms:

**Offer Summary:**

- Price: {{.OfferPrice}}
- Option Period: 7 days (excluding weekends and federal holidays)
- Earnest Money Deposit (EMD): {{.EMD}}
- Buyer's Assignment Consideration (BAC): $10
- Closing Date: On or before {{.ClosingDate}}

**Offer Highlights:**

- As-Is Condition
- Buyer Pays All Closing Costs
- Quick Close Available

Title Company: Kristin Blay at Ghrist Law - Patten Title

I am only able to acquire a limited number of properties at a time. As such, offer is only valid for 48 hours after it is received.

Warm regards,

Chris Phillips
True Soul Partners LLC
817.500.1440

*This Letter of Intent to Purchase Real Estate outlines general intentions and is not legally binding. Terms are subject to further negotiation and approval. No party is obligated until a formal agreement is executed.*
`))

// Markdown renders the letter body as Markdown.
func (l Letter) Markdown() ([]byte, error) {
	var buf bytes.Buffer
	if err := letterTemplate.Execute(&buf, l); err != nil {
		return nil, fmt.Errorf("failed to execute letter template: %w", err)
	}
	return buf.Bytes(), nil
}

// HTML converts the Markdown rendering to HTML.
func (l Letter) HTML() ([]byte, error) {
	md, err := l.Markdown()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := goldmark.Convert(md, &buf); err != nil {
		return nil, fmt.Errorf("failed to convert letter to HTML: %w", err)
	}
	return buf.Bytes(), nil
}

// render writes the Markdown letter and its HTML rendering side by side.
func (g *Generator) render(letter Letter, basePath string) error {
	md, err := letter.Markdown()
	if err != nil {
		return err
	}
	if err := os.WriteFile(basePath+".md", md, 0o644); err != nil {
		return fmt.Errorf("failed to write letter: %w", err)
	}

	html, err := letter.HTML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(basePath+".html", html, 0o644); err != nil {
		return fmt.Errorf("failed to write HTML letter: %w", err)
	}
	return nil
}
