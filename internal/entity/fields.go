package entity

// Recognized extracted fields per entity kind. Proposals may only touch
// fields listed here; anything else is rejected at submission time.
var fieldVocabulary = map[Kind]map[string]struct{}{
	KindProgram: setOf(
		"commission_rate",
		"cookie_duration_days",
		"payout_model",
		"minimum_payout",
		"payment_methods",
		"payment_frequency",
		"tracking_platform",
		"requirements",
		"restrictions",
		"signup_url",
		"affiliate_page_url",
		"languages",
		"countries",
		"regional_links",
		"deep_researched_at",
	),
	KindCategory: setOf(
		"description",
		"summary",
		"top_programs",
	),
	KindNetwork: setOf(
		"description",
		"commission_types",
		"minimum_payout",
		"payment_methods",
		"signup_url",
		"countries",
	),
	KindAsset: setOf(
		"alt_text",
		"caption",
		"source_url",
		"license",
	),
}

// KnownField reports whether the field is recognized for the kind.
func KnownField(kind Kind, field string) bool {
	vocab, ok := fieldVocabulary[kind]
	if !ok {
		return false
	}
	_, ok = vocab[field]
	return ok
}

func setOf(fields ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		m[f] = struct{}{}
	}
	return m
}
