package authority

import (
	"bytes"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/eventdesk/roster/internal/roster"
)

//go:embed fonts/DejaVuSans.ttf
var badgeFont []byte

const badgeFontFamily = "DejaVuSans"

// PDFRenderer draws a single-page 4x6in badge with an embedded Unicode font.
// Text is written in logical order without contextual shaping.
type PDFRenderer struct {
	Title    string
	Location *time.Location
	// Compress deflates page content. Disable to inspect the text operators.
	Compress bool
}

func NewPDFRenderer(title string, loc *time.Location) PDFRenderer {
	if loc == nil {
		loc = time.UTC
	}
	return PDFRenderer{Title: title, Location: loc, Compress: true}
}

const (
	badgeWidth  = 288.0
	badgeHeight = 432.0
	badgeMargin = 18.0
	minFontSize = 6.0
)

type textLine struct {
	size float64
	// baseline distance from the bottom edge
	y    float64
	text string
}

func (r PDFRenderer) Render(p roster.Participant) ([]byte, error) {
	title := r.Title
	if title == "" {
		title = "EVENT BADGE"
	}
	status := "Not checked in"
	if n, ok := p.QueueNumber(); ok {
		status = "Queue #" + strconv.Itoa(n)
	}
	lines := []textLine{
		{size: 14, y: 380, text: title},
		{size: 26, y: 250, text: p.Name},
		{size: 18, y: 200, text: status},
	}
	if p.CheckedIn && p.CheckedInAt != nil {
		loc := r.Location
		if loc == nil {
			loc = time.UTC
		}
		lines = append(lines, textLine{size: 11, y: 170, text: "Checked in " + p.CheckedInAt.In(loc).Format("03:04 PM")})
	}
	lines = append(lines, textLine{size: 8, y: 30, text: "ID " + p.ID})

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: badgeWidth, Ht: badgeHeight},
	})
	pdf.SetCompression(r.Compress)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(badgeMargin, badgeMargin, badgeMargin)
	pdf.SetTitle(title, true)
	pdf.SetCreator("roster-authority", true)
	pdf.AddUTF8FontFromBytes(badgeFontFamily, "", badgeFont)
	pdf.AddPage()

	for _, l := range lines {
		size := fitFontSize(pdf, l.text, l.size, badgeWidth-2*badgeMargin)
		pdf.SetFont(badgeFontFamily, "", size)
		pdf.SetXY(0, badgeHeight-l.y-size)
		pdf.CellFormat(badgeWidth, size*1.2, l.text, "", 0, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render badge for %s: %w", p.ID, err)
	}
	return buf.Bytes(), nil
}

// fitFontSize shrinks size until text fits within width.
func fitFontSize(pdf *fpdf.Fpdf, text string, size, width float64) float64 {
	for ; size > minFontSize; size-- {
		pdf.SetFont(badgeFontFamily, "", size)
		if pdf.GetStringWidth(text) <= width {
			return size
		}
	}
	return minFontSize
}
