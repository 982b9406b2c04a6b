package analysis

import (
	"strings"
	"text/template"
)

var promptTmpl = template.Must(template.New("market-analysis").Parse(promptText))

const promptText = `You are an expert agricultural market analyst. Your task is to provide a detailed market analysis for a farmer based on their current product listings. The analysis should be in Markdown format.

Analyze the following products:
{{- range .Products }}
- **{{ .Name }}**: Price: {{ .Price }} {{ $.Symbol }} per {{ .Unit }}, Stock: {{ .Stock }}
{{- end }}

Based on this data and general knowledge of agricultural markets, generate a report with the following sections:

### Market Trends
- Discuss current trends relevant to the listed products (e.g., seasonality, consumer preferences, potential for organic demand).
- Identify potential opportunities and risks.

### Price Analysis
- Evaluate the current pricing. Is it competitive?
- Suggest potential pricing strategies (e.g., bundling, discounts for bulk orders).

### Supply and Demand
- Analyze the potential supply and demand for these products.
- Consider factors like recent harvests, import/export trends, and consumer purchasing habits.

### Weather Impact
- Discuss how recent and forecasted weather patterns in major agricultural regions could impact the production and prices of these goods.
- Provide insights on potential risks (e.g., drought, floods) and opportunities.

### Actionable Recommendations
- Provide clear, actionable advice for the farmer.
- Suggest which products to focus on, optimal stock levels, and potential new products to introduce based on the complete analysis.
`

// Sections are the headings every report is asked to contain, in order.
var Sections = []string{
	"Market Trends",
	"Price Analysis",
	"Supply and Demand",
	"Weather Impact",
	"Actionable Recommendations",
}

// RenderPrompt renders the analysis prompt for req.
func RenderPrompt(req Request) (string, error) {
	if req.Symbol == "" {
		req.Symbol = defaultSymbol
	}
	var sb strings.Builder
	if err := promptTmpl.Execute(&sb, req); err != nil {
		return "", err
	}
	return sb.String(), nil
}
