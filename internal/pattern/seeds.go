package pattern

// Seeds returns the built-in rewrite rules loaded into an empty store on
// first run. Expressions stay within a single line: the engine never inserts
// or deletes lines, so line-deleting fixes (duplicate blank lines, missing
// blank lines before defs) are left to manual cleanup.
func Seeds() []*Pattern {
	return []*Pattern{
		{
			ID:          "W291_strip_trailing",
			Code:        "W291",
			MatchExpr:   `^(.*[^ \t])[ \t]+$`,
			ReplaceExpr: `$1`,
			Description: "trailing whitespace: strip spaces and tabs at end of line",
			Confidence:  0.95,
		},
		{
			ID:          "W293_blank_whitespace",
			Code:        "W293",
			MatchExpr:   `^[ \t]+$`,
			ReplaceExpr: ``,
			Description: "whitespace on blank line: make the line truly empty",
			Confidence:  0.95,
		},
		{
			ID:          "F401_blank_import",
			Code:        "F401",
			MatchExpr:   `^\s*(?:import\s+[\w.]+(?:\s+as\s+\w+)?|from\s+[\w.]+\s+import\s+[\w.]+(?:\s+as\s+\w+)?)\s*$`,
			ReplaceExpr: ``,
			Description: "unused import: blank the import line (conservative, single-name imports only)",
			Confidence:  0.7,
		},
		{
			ID:          "E261_comment_spacing",
			Code:        "E261",
			MatchExpr:   `^(.*\S) #(.*)$`,
			ReplaceExpr: `$1  #$2`,
			Description: "inline comment: at least two spaces before #",
			Confidence:  0.8,
		},
		{
			ID:          "E711_is_none",
			Code:        "E711",
			MatchExpr:   `^(.*?)\s*==\s*None(.*)$`,
			ReplaceExpr: `$1 is None$2`,
			Description: "comparison to None: use 'is None'",
			Confidence:  0.85,
		},
		{
			ID:          "E712_is_true",
			Code:        "E712",
			MatchExpr:   `^(.*?)\s*==\s*True(.*)$`,
			ReplaceExpr: `$1 is True$2`,
			Description: "comparison to True: use 'is True'",
			Confidence:  0.7,
		},
		{
			ID:          "E501_detect_only",
			Code:        "E501",
			MatchExpr:   `^(.{80,})$`,
			ReplaceExpr: `$1`,
			Description: "line too long: no safe single-line rewrite, reported only",
			Confidence:  0.5,
		},
	}
}
