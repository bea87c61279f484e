package evaluation

// GuardrailConfig bounds how far a parsed query is trusted downstream.
type GuardrailConfig struct {
	MinIntentConfidence float64
	MaxExpansionTerms   int
}

// Guardrails applies the configured bounds to parse results before they
// reach retrieval.
type Guardrails struct {
	config GuardrailConfig
}

// NewGuardrails fills unset limits with defaults.
func NewGuardrails(config GuardrailConfig) *Guardrails {
	if config.MaxExpansionTerms <= 0 {
		config.MaxExpansionTerms = 20
	}
	return &Guardrails{config: config}
}

// ShouldTrustIntent reports whether the classified intent is confident
// enough to drive an artifact-type filter.
func (g *Guardrails) ShouldTrustIntent(confidence float64) bool {
	return confidence >= g.config.MinIntentConfidence
}

// LimitExpansion caps the expanded term list.
func (g *Guardrails) LimitExpansion(terms []string) []string {
	if len(terms) > g.config.MaxExpansionTerms {
		return terms[:g.config.MaxExpansionTerms]
	}
	return terms
}
