package classify

// Curated keyword sets per subject and topic. Matching is done on lowercased
// tokens for single words and on substring for multi-word phrases.
var subjectKeywords = map[string]map[string][]string{
	"mathematics": {
		"algebra":      {"equation", "variable", "polynomial", "quadratic", "linear equation", "factorise", "factorize", "expression"},
		"geometry":     {"triangle", "circle", "angle", "perimeter", "area", "radius", "diameter", "polygon", "congruent"},
		"trigonometry": {"sin", "cos", "tan", "cot", "sec", "cosec", "theta", "trigonometric", "trigonometry", "identity"},
		"calculus":     {"derivative", "integral", "differentiate", "integrate", "limit", "maxima", "minima"},
		"arithmetic":   {"fraction", "decimal", "percentage", "ratio", "lcm", "hcf", "divisible", "remainder"},
		"statistics":   {"mean", "median", "mode", "probability", "frequency", "histogram"},
	},
	"science": {
		"physics":   {"force", "velocity", "acceleration", "energy", "momentum", "gravity", "ohm", "current", "voltage", "refraction", "lens"},
		"chemistry": {"atom", "molecule", "reaction", "acid", "base", "salt", "mole", "valency", "electron", "compound", "periodic table"},
		"biology":   {"cell", "photosynthesis", "respiration", "organism", "tissue", "digestion", "nucleus", "chromosome", "gene"},
	},
	"english": {
		"grammar":       {"tense", "noun", "verb", "adjective", "adverb", "preposition", "active voice", "passive voice", "clause"},
		"comprehension": {"passage", "paragraph", "summary", "main idea", "inference", "tone"},
		"writing":       {"essay", "letter", "notice", "report", "article", "composition"},
	},
}

// Doubt-type cue phrases. The type with the most matches wins; conceptual is
// the tie-break default since "why" doubts dominate the corpus.
var doubtCues = map[string][]string{
	"conceptual":  {"why", "what is", "what are", "meaning", "concept", "difference between", "explain", "define", "understand"},
	"procedural":  {"how to", "how do", "steps", "method", "procedure", "process", "way to solve"},
	"application": {"prove", "show that", "apply", "derive", "word problem", "real life", "use this", "solve this problem"},
	"calculation": {"calculate", "compute", "evaluate", "simplify", "find the value", "how much", "how many"},
}
