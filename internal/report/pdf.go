package report

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
)

var ErrEmptyDocument = errors.New("empty report document")

// PDFConverter turns a rendered sheet into a PDF.
type PDFConverter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

// ChromePDF prints HTML to PDF with a headless Chrome.
type ChromePDF struct {
	Timeout time.Duration
	// ExecPath overrides Chrome discovery when set.
	ExecPath string
}

// Convert implements PDFConverter.
func (c ChromePDF) Convert(ctx context.Context, html string) ([]byte, error) {
	if html == "" {
		return nil, ErrEmptyDocument
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
	)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("print report to pdf: %w", err)
	}
	return pdf, nil
}

// EncodePDF converts html and returns the PDF as base64, the form stored
// on the inspection record.
func EncodePDF(ctx context.Context, conv PDFConverter, html string) (string, error) {
	data, err := conv.Convert(ctx, html)
	if err != nil {
		return "", err
	}
	log.WithField("pdf_size", len(data)).Debug("Report converted to PDF")
	return base64.StdEncoding.EncodeToString(data), nil
}

// HTMLFallback stores the sheet itself, base64 encoded, when no PDF engine
// is available on the device.
type HTMLFallback struct{}

// Convert implements PDFConverter.
func (HTMLFallback) Convert(ctx context.Context, html string) ([]byte, error) {
	if html == "" {
		return nil, ErrEmptyDocument
	}
	return []byte(html), nil
}
