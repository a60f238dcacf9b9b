package report

import (
	"bytes"
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"github.com/fernandezfran/galpynostatic/internal/analysis"
	"github.com/fernandezfran/galpynostatic/internal/predict"
	"github.com/fernandezfran/galpynostatic/internal/regressor"
)

const (
	inchToMm       = 25.4
	pdfPageWidth   = 8.5 * inchToMm // Letter portrait
	pdfPageHeight  = 11 * inchToMm
	pdfMargin      = 0.6 * inchToMm
	pdfContentWide = pdfPageWidth - 2*pdfMargin
)

// Image keys read by BuildPDFReport.
const (
	ImageMap     = "map"
	ImageFit     = "fit"
	ImageProfile = "profile"
)

// CalibrationReport gathers what BuildPDFReport prints. Nil sections are
// left out.
type CalibrationReport struct {
	Material string
	Size     float64 // cm
	Geometry int

	Fit      *regressor.Result
	Analysis *analysis.FitAnalysis
	Map      *analysis.MapSummary
	Metric   *predict.Metric
	Optimal  *predict.Size
}

// pdfStyler holds reusable styling and the flowing Y position.
type pdfStyler struct {
	pdf         *gofpdf.Fpdf
	styles      map[string]func()
	lineHeight  float64
	currentY    float64
	pageBottom  float64
	contentTopY float64
}

func newPDFStyler(pdf *gofpdf.Fpdf) *pdfStyler {
	s := &pdfStyler{
		pdf:         pdf,
		styles:      make(map[string]func()),
		lineHeight:  6,
		pageBottom:  pdfPageHeight - pdfMargin,
		contentTopY: pdfMargin,
	}
	s.currentY = s.contentTopY
	s.defineStyles()
	return s
}

func (s *pdfStyler) defineStyles() {
	s.styles["h1"] = func() {
		s.pdf.SetFont("Arial", "B", 16)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["h2"] = func() {
		s.pdf.SetFont("Arial", "B", 13)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["normal"] = func() {
		s.pdf.SetFont("Arial", "", 10)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableHeader"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetFillColor(200, 200, 200)
		s.pdf.SetTextColor(0, 0, 0)
	}
	s.styles["tableCell"] = func() {
		s.pdf.SetFont("Arial", "", 9)
		s.pdf.SetTextColor(50, 50, 50)
	}
	s.styles["tableCellRed"] = func() {
		s.pdf.SetFont("Arial", "B", 9)
		s.pdf.SetTextColor(200, 0, 0)
	}
}

func (s *pdfStyler) applyStyle(styleName string) {
	if fn, ok := s.styles[styleName]; ok {
		fn()
	} else {
		s.styles["normal"]()
	}
}

func (s *pdfStyler) checkAddPage(neededHeight float64) {
	if s.currentY+neededHeight > s.pageBottom {
		s.pdf.AddPage()
		s.currentY = s.contentTopY
	}
}

func (s *pdfStyler) writeParagraph(text string, styleName string, align string) {
	s.applyStyle(styleName)
	lines := s.pdf.SplitLines([]byte(text), pdfContentWide)
	s.checkAddPage(float64(len(lines)) * s.lineHeight)

	s.pdf.SetXY(pdfMargin, s.currentY)
	s.pdf.MultiCell(pdfContentWide, s.lineHeight, text, "", align, false)
	s.currentY = s.pdf.GetY() + 1
}

func (s *pdfStyler) addSpacer(height float64) {
	s.checkAddPage(height)
	s.currentY += height
}

func (s *pdfStyler) addImage(imageBytes []byte, imageName string, width float64, caption string) {
	info := s.pdf.RegisterImageOptionsReader(imageName, gofpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(imageBytes))
	if info == nil || s.pdf.Err() {
		log.Printf("Warning: image %s could not be registered: %v", imageName, s.pdf.Error())
		s.pdf.ClearError()
		s.writeParagraph(fmt.Sprintf("Plot %s not available.", imageName), "normal", "L")
		return
	}
	if width > pdfContentWide {
		width = pdfContentWide
	}
	height := width * info.Height() / info.Width()

	captionHeight := 0.0
	if caption != "" {
		captionHeight = s.lineHeight + 1
	}
	s.checkAddPage(height + captionHeight)

	x := pdfMargin + (pdfContentWide-width)/2
	s.pdf.ImageOptions(imageName, x, s.currentY, width, height, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	s.currentY += height

	if caption != "" {
		s.addSpacer(1)
		s.writeParagraph(caption, "normal", "C")
	}
	s.addSpacer(2)
}

// table draws a header row and the body rows with relative column widths.
// Cells of columns listed in red use the red style.
func (s *pdfStyler) table(headers []string, widthsRel []float64, rows [][]string, red map[int]bool) {
	widths := make([]float64, len(widthsRel))
	for i, rel := range widthsRel {
		widths[i] = rel * pdfContentWide
	}
	s.checkAddPage(s.lineHeight * math.Min(float64(len(rows))+1, 6))

	sX := pdfMargin
	s.applyStyle("tableHeader")
	for i, header := range headers {
		s.pdf.SetXY(sX, s.currentY)
		s.pdf.CellFormat(widths[i], s.lineHeight, header, "1", 0, "C", true, 0, "")
		sX += widths[i]
	}
	s.currentY += s.lineHeight

	for _, row := range rows {
		s.checkAddPage(s.lineHeight)
		sX = pdfMargin
		for i, cell := range row {
			if red[i] {
				s.applyStyle("tableCellRed")
			} else {
				s.applyStyle("tableCell")
			}
			s.pdf.SetXY(sX, s.currentY)
			s.pdf.CellFormat(widths[i], s.lineHeight, cell, "1", 0, "C", false, 0, "")
			sX += widths[i]
		}
		s.currentY += s.lineHeight
	}
}

func formatValue(v float64, format string) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf(format, v)
}

// BuildPDFReport writes a calibration report to path. plotImages holds PNG
// bytes under the Image* keys; missing plots are noted in the text.
func BuildPDFReport(path string, rep *CalibrationReport, plotImages map[string][]byte) error {
	if rep == nil {
		return fmt.Errorf("no report content")
	}
	pdf := gofpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AddPage()

	styler := newPDFStyler(pdf)

	title := "Galvanostatic Calibration Report"
	if rep.Material != "" {
		title = fmt.Sprintf("%s: %s", title, rep.Material)
	}
	styler.writeParagraph(title, "h1", "C")
	styler.addSpacer(4)
	styler.writeParagraph(fmt.Sprintf("Particle size: %.4g cm. Geometry: %d.", rep.Size, rep.Geometry), "normal", "L")
	styler.addSpacer(4)

	if rep.Fit != nil {
		styler.writeParagraph("Fitted Parameters", "h2", "L")
		method := "grid search"
		if rep.Fit.Refined {
			method = "grid search with Nelder-Mead refinement"
		}
		styler.table(
			[]string{"Parameter", "Value", "Uncertainty"},
			[]float64{0.4, 0.3, 0.3},
			[][]string{
				{"D (cm^2/s)", formatValue(rep.Fit.DCoeff, "%.4e"), formatValue(rep.Fit.DCoeffErr, "%.2e")},
				{"k0 (cm/s)", formatValue(rep.Fit.K0, "%.4e"), formatValue(rep.Fit.K0Err, "%.2e")},
				{"MSE", formatValue(rep.Fit.MSE, "%.4e"), ""},
			},
			nil,
		)
		styler.addSpacer(2)
		styler.writeParagraph(fmt.Sprintf("Method: %s over %d admissible candidates.", method, rep.Fit.Candidates), "normal", "L")
		styler.addSpacer(4)
	}

	if rep.Analysis != nil {
		styler.writeParagraph("Residuals", "h2", "L")
		rows := make([][]string, 0, len(rep.Analysis.Residuals))
		for _, r := range rep.Analysis.Residuals {
			rows = append(rows, []string{
				strconv.FormatFloat(r.CRate, 'g', 4, 64),
				formatValue(r.Measured, "%.4f"),
				formatValue(r.Predicted, "%.4f"),
				formatValue(r.Value, "%+.4f"),
			})
		}
		styler.table([]string{"C-rate", "Measured SOC", "Predicted SOC", "Residual"}, []float64{0.25, 0.25, 0.25, 0.25}, rows, map[int]bool{3: true})
		styler.addSpacer(2)
		styler.writeParagraph(fmt.Sprintf("RMSE %s, MAE %s, R^2 %s.",
			formatValue(rep.Analysis.RMSE, "%.4f"), formatValue(rep.Analysis.MAE, "%.4f"), formatValue(rep.Analysis.R2, "%.4f")), "normal", "L")
		for _, msg := range rep.Analysis.AnalysisErrors {
			styler.writeParagraph(msg, "normal", "L")
		}
		styler.addSpacer(4)
	}

	if rep.Metric != nil || rep.Optimal != nil {
		styler.writeParagraph("Fast Charging", "h2", "L")
		if m := rep.Metric; m != nil {
			verdict := "does not reach"
			if m.FastCharge {
				verdict = "reaches"
			}
			styler.writeParagraph(fmt.Sprintf("BMXFC at %gC: SOC %s, %s the %.0f%% criterion.",
				m.CRate, formatValue(m.SOC, "%.4f"), verdict, 100*m.Loaded), "normal", "L")
		}
		if o := rep.Optimal; o != nil {
			styler.writeParagraph(fmt.Sprintf("Particle size to reach SOC %.2f in %g minutes: %.4g um.",
				o.Loaded, o.Minutes, 1e4*o.Size), "normal", "L")
		}
		styler.addSpacer(4)
	}

	if ms := rep.Map; ms != nil {
		styler.writeParagraph("Diagnostic Map", "h2", "L")
		styler.writeParagraph(fmt.Sprintf("%d x %d points, SOC mean %.4f, range [%.4f, %.4f]; %d fully charged, %d blocked.",
			ms.NumEll, ms.NumXi, ms.SOC.Mean, ms.SOC.Min, ms.SOC.Max, ms.FullyCharged, ms.Blocked), "normal", "L")
		styler.addSpacer(4)
	}

	plotDefs := []struct {
		Key     string
		Caption string
	}{
		{ImageFit, "Measured and predicted max SOC against C-rate"},
		{ImageMap, "Diagnostic map with the experimental operating points"},
		{ImageProfile, "Simulated charge profile"},
	}
	for _, pDef := range plotDefs {
		if imgBytes, ok := plotImages[pDef.Key]; ok && len(imgBytes) > 0 {
			styler.addImage(imgBytes, pDef.Key, pdfContentWide*0.85, pDef.Caption)
		}
	}

	return pdf.OutputFileAndClose(path)
}
