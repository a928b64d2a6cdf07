package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// A4 paper size in inches.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
)

// PDFOptions controls a single print attempt.
type PDFOptions struct {
	Name              string
	PrintBackground   bool
	PreferCSSPageSize bool
	MarginInches      float64
}

// PrintPDF renders the current page as an A4 PDF. The deadline of ctx bounds the print.
func (s *Session) PrintPDF(ctx context.Context, opts PDFOptions) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := printParams(opts).Do(ctx)
		if err != nil {
			return err
		}
		buf = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("print to pdf failed: %w", err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("print to pdf returned no data")
	}
	return buf, nil
}

func printParams(opts PDFOptions) *page.PrintToPDFParams {
	m := opts.MarginInches
	return page.PrintToPDF().
		WithPaperWidth(a4WidthInches).
		WithPaperHeight(a4HeightInches).
		WithPrintBackground(opts.PrintBackground).
		WithPreferCSSPageSize(opts.PreferCSSPageSize).
		WithDisplayHeaderFooter(false).
		WithMarginTop(m).
		WithMarginBottom(m).
		WithMarginLeft(m).
		WithMarginRight(m)
}
