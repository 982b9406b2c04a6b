// Package analysis produces AI market-analysis reports for a farmer's
// listings.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/types"
)

const defaultSymbol = "AGT"

var (
	// ErrNoProducts is returned when there is nothing to analyze.
	ErrNoProducts = errors.New("no products to analyze")
	// ErrEmptyReport is returned when the service answered without text.
	ErrEmptyReport = errors.New("analysis service returned an empty report")
)

// ProductInput is one product line of the analysis request. Values are
// already formatted for display.
type ProductInput struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Unit  string `json:"unit"`
	Stock string `json:"stock"`
}

// Request is the input of a market analysis.
type Request struct {
	Products []ProductInput `json:"products"`
	Symbol   string         `json:"symbol,omitempty"`
}

// Report is a generated market analysis.
type Report struct {
	Markdown    string    `json:"report"`
	Model       string    `json:"model"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// Generator completes a text prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Analyzer turns product listings into a report. It makes a single request
// per call and never retries.
type Analyzer struct {
	logger  log.Logger
	gen     Generator
	timeout time.Duration
}

// NewAnalyzer returns an Analyzer. A zero timeout leaves the deadline to the
// caller's context.
func NewAnalyzer(logger log.Logger, gen Generator, timeout time.Duration) *Analyzer {
	return &Analyzer{logger: logger, gen: gen, timeout: timeout}
}

// ProductInputs formats listed products the way they are shown to the user:
// the price in token units, the stock as a whole number.
func ProductInputs(products []types.Product, decimals uint8) []ProductInput {
	out := make([]ProductInput, 0, len(products))
	for _, p := range products {
		stock := "0"
		if p.Stock != nil {
			stock = p.Stock.String()
		}
		out = append(out, ProductInput{
			Name:  p.Name,
			Price: types.FormatUnits(p.Price, decimals),
			Unit:  p.Unit,
			Stock: stock,
		})
	}
	return out
}

// Analyze requests a report for req.
func (a *Analyzer) Analyze(ctx context.Context, req Request) (*Report, error) {
	if len(req.Products) == 0 {
		return nil, ErrNoProducts
	}

	prompt, err := RenderPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("rendering prompt: %w", err)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		a.logger.Error("market analysis failed", "model", a.gen.Model(), "err", err)
		return nil, fmt.Errorf("generating analysis: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyReport
	}

	a.logger.Info("generated market analysis",
		"model", a.gen.Model(), "products", len(req.Products), "took", time.Since(start))
	return &Report{Markdown: text, Model: a.gen.Model(), GeneratedAt: time.Now()}, nil
}
