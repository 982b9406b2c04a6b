package analysis

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimarket/agridash/libs/log"
	"github.com/agrimarket/agridash/types"
)

type fakeGenerator struct {
	prompts []string
	reply   string
	err     error
	block   bool
}

func (f *fakeGenerator) Model() string { return "fake-model" }

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func tenAndAHalfAGT() *big.Int {
	v, _ := new(big.Int).SetString("10500000000000000000", 10)
	return v
}

func TestProductInputs(t *testing.T) {
	inputs := ProductInputs([]types.Product{{
		ID: big.NewInt(1), Name: "Maize", Price: tenAndAHalfAGT(), Unit: "kg",
		Quantity: big.NewInt(1), Stock: big.NewInt(40), Farmer: common.Address{},
	}}, types.DefaultDecimals)

	assert.Equal(t, []ProductInput{{Name: "Maize", Price: "10.5", Unit: "kg", Stock: "40"}}, inputs)
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := RenderPrompt(Request{Products: []ProductInput{
		{Name: "Maize", Price: "10.5", Unit: "kg", Stock: "40"},
		{Name: "Coffee", Price: "3", Unit: "bag", Stock: "0"},
	}})
	require.NoError(t, err)

	assert.Contains(t, prompt, "- **Maize**: Price: 10.5 AGT per kg, Stock: 40\n")
	assert.Contains(t, prompt, "- **Coffee**: Price: 3 AGT per bag, Stock: 0\n")
	last := -1
	for _, section := range Sections {
		i := strings.Index(prompt, "### "+section)
		require.Greater(t, i, last, section)
		last = i
	}
}

func TestAnalyze(t *testing.T) {
	req := Request{Products: []ProductInput{{Name: "Maize", Price: "10", Unit: "kg", Stock: "40"}}}

	t.Run("report", func(t *testing.T) {
		gen := &fakeGenerator{reply: "\n### Market Trends\nprices are up\n"}
		a := NewAnalyzer(log.TestingLogger(), gen, time.Second)

		report, err := a.Analyze(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "### Market Trends\nprices are up", report.Markdown)
		assert.Equal(t, "fake-model", report.Model)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "**Maize**")
	})

	t.Run("no products", func(t *testing.T) {
		gen := &fakeGenerator{}
		a := NewAnalyzer(log.TestingLogger(), gen, time.Second)

		_, err := a.Analyze(context.Background(), Request{})
		assert.ErrorIs(t, err, ErrNoProducts)
		assert.Empty(t, gen.prompts)
	})

	t.Run("service error is surfaced without retry", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("quota exceeded")}
		a := NewAnalyzer(log.TestingLogger(), gen, time.Second)

		_, err := a.Analyze(context.Background(), req)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
		assert.Len(t, gen.prompts, 1)
	})

	t.Run("empty report", func(t *testing.T) {
		a := NewAnalyzer(log.TestingLogger(), &fakeGenerator{reply: "  "}, time.Second)
		_, err := a.Analyze(context.Background(), req)
		assert.ErrorIs(t, err, ErrEmptyReport)
	})

	t.Run("timeout", func(t *testing.T) {
		a := NewAnalyzer(log.TestingLogger(), &fakeGenerator{block: true}, 10*time.Millisecond)
		_, err := a.Analyze(context.Background(), req)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
