package scoring

// SynonymTable maps a canonical term to the alternative phrasings that count
// as a match in listing text.
type SynonymTable map[string][]string

// Lexicon bundles the lookup tables used for text matching. Tables are
// treated as immutable and injected into the Calculator so they can be
// versioned and swapped per market without touching scoring logic.
type Lexicon struct {
	Features     SynonymTable `json:"features"`
	Dealbreakers SynonymTable `json:"dealbreakers"`
	VisualStyles SynonymTable `json:"visual_styles"`
}

// DefaultLexicon returns the built-in synonym tables.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Features: SynonymTable{
			"garage":           {"parking", "carport", "2-car", "two car"},
			"pool":             {"swimming pool", "lap pool", "heated pool"},
			"backyard":         {"back yard", "yard", "fenced yard", "outdoor space"},
			"garden":           {"landscaped", "landscaping", "planting beds"},
			"fireplace":        {"wood stove", "gas fireplace", "wood-burning"},
			"hardwood floors":  {"hardwood", "wood floors", "oak floors"},
			"updated kitchen":  {"renovated kitchen", "remodeled kitchen", "new kitchen", "modern kitchen"},
			"granite counters": {"granite", "quartz counters", "stone counters"},
			"basement":         {"finished basement", "lower level", "walkout basement"},
			"home office":      {"office", "den", "study", "bonus room"},
			"air conditioning": {"central air", "a/c", "ac", "hvac"},
			"balcony":          {"terrace", "patio", "deck"},
			"view":             {"mountain view", "water view", "city view", "panoramic"},
			"walk-in closet":   {"walkin closet", "large closet"},
			"open floor plan":  {"open concept", "open layout", "great room"},
			"new roof":         {"roof replaced", "recent roof"},
			"solar panels":     {"solar", "photovoltaic"},
		},
		Dealbreakers: SynonymTable{
			"hoa":           {"homeowners association", "hoa fees", "hoa dues"},
			"busy street":   {"main road", "highway", "heavy traffic", "arterial"},
			"fixer-upper":   {"fixer", "needs work", "tlc", "handyman special", "as-is", "as is"},
			"flood zone":    {"floodplain", "flood plain", "flood insurance required"},
			"no yard":       {"no outdoor space"},
			"shared wall":   {"attached", "party wall", "common wall"},
			"foundation":    {"foundation issues", "foundation repair", "structural"},
			"flat roof":     {"membrane roof"},
			"septic":        {"septic system", "septic tank"},
			"well water":    {"private well"},
			"power lines":   {"transmission lines", "high voltage"},
			"train tracks":  {"railroad", "rail line"},
			"short sale":    {"pre-foreclosure", "bank owned", "reo"},
			"mobile home":   {"manufactured home", "modular"},
			"leased solar":  {"solar lease"},
		},
		VisualStyles: SynonymTable{
			"modern_kitchen":    {"updated kitchen", "renovated kitchen", "modern kitchen", "new kitchen"},
			"granite_counters":  {"granite counters", "granite", "stone counters"},
			"hardwood_floors":   {"hardwood floors", "hardwood", "wood floors"},
			"open_floor_plan":   {"open floor plan", "open concept", "open layout"},
			"natural_light":     {"bright", "sunny", "light-filled", "natural light"},
			"curb_appeal":       {"curb appeal", "charming exterior", "landscaped"},
			"pool":              {"pool", "swimming pool"},
			"fireplace":         {"fireplace", "wood stove"},
			"large_backyard":    {"backyard", "yard", "outdoor space"},
			"finished_basement": {"basement", "finished basement"},
			"high_ceilings":     {"vaulted", "high ceilings", "cathedral ceiling"},
			"modern_bathroom":   {"updated bathroom", "renovated bathroom", "spa bathroom"},
			"deck":              {"deck", "patio", "balcony"},
			"garage":            {"garage", "parking"},
		},
	}
}

// expand returns the canonical term plus its synonyms.
func (t SynonymTable) expand(term string) []string {
	out := make([]string, 0, 1+len(t[term]))
	out = append(out, term)
	out = append(out, t[term]...)
	return out
}
