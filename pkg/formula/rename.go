package formula

import "strings"

// RenameColumn rewrites every reference to oldCol in src into newCol and
// returns the new source text plus whether anything changed (§4.9
// "Rewriting uses the same parse-and-patch transformer as §4.5"). Patches
// are computed by re-lexing src (rather than walking a transformed/wrapped
// tree, since rename runs on the user's original formula text before any
// lazy-wrap or default-substitution pass) and collecting every token whose
// text equals oldCol in a rename-eligible position:
//
//   - `$oldCol`            -> `$newCol`          (attribute of the formula's own row)
//   - `.oldCol`             -> `.newCol`          (attribute of any record/table reached
//     through a Ref, a lookupOne/lookupRecords result, `.All`, or a comprehension
//     variable — syntactically indistinguishable from any other dotted access, so
//     every dotted occurrence of the name is rewritten, matching scenario 2's
//     `$addr.city` -> `$addr.ciudad`)
//   - a bare keyword argument name in a call, e.g. `Customer=$id`            -> `NewName=$id`
//   - the identifier portion of a sort_by/order_by/group_by string token, e.g.
//     `sort_by='-Date'`                                                     -> `sort_by='-NewDate'`
//
// Patches are applied back-to-front over rune offsets so earlier offsets
// stay valid as later ones are rewritten, preserving every other byte of
// the original text character-for-character (§8 "Rename soundness").
func RenameColumn(src, oldCol, newCol string) (string, bool) {
	toks, err := Lex(src)
	if err != nil {
		return src, false
	}
	runes := []rune(src)
	type patch struct {
		start, end int
		text       string
	}
	var patches []patch
	for i, t := range toks {
		switch t.Kind {
		case TokDollarIdent:
			if t.Text == oldCol {
				patches = append(patches, patch{t.Pos, t.Pos + 1 + runeLen(t.Text), "$" + newCol})
			}
		case TokIdent:
			if t.Text != oldCol {
				continue
			}
			prevIsDot := i > 0 && toks[i-1].Kind == TokOp && toks[i-1].Text == "."
			nextIsEq := i+1 < len(toks) && toks[i+1].Kind == TokOp && toks[i+1].Text == "="
			prevIsCallBoundary := i > 0 && toks[i-1].Kind == TokOp && (toks[i-1].Text == "(" || toks[i-1].Text == ",")
			if prevIsDot || (nextIsEq && prevIsCallBoundary) {
				patches = append(patches, patch{t.Pos, t.Pos + runeLen(t.Text), newCol})
			}
		case TokString:
			rewritten, changed := rewriteSortSpecString(t.Text, oldCol, newCol)
			if changed {
				patches = append(patches, patch{t.Pos + 1, t.Pos + 1 + runeLen(t.Text), rewritten})
			}
		}
	}
	if len(patches) == 0 {
		return src, false
	}
	for i := len(patches) - 1; i >= 0; i-- {
		p := patches[i]
		runes = append(runes[:p.start], append([]rune(p.text), runes[p.end:]...)...)
	}
	return string(runes), true
}

// RenameTableRef rewrites every bare reference to oldTable (a table id used
// directly as a formula identifier, e.g. `Purchases.lookupRecords(...)`)
// into newTable. Occurrences preceded by `.` are left alone since those are
// column/attribute names, not table references.
func RenameTableRef(src, oldTable, newTable string) (string, bool) {
	toks, err := Lex(src)
	if err != nil {
		return src, false
	}
	runes := []rune(src)
	type patch struct{ start, end int }
	var patches []patch
	for i, t := range toks {
		if t.Kind != TokIdent || t.Text != oldTable {
			continue
		}
		if i > 0 && toks[i-1].Kind == TokOp && toks[i-1].Text == "." {
			continue
		}
		patches = append(patches, patch{t.Pos, t.Pos + runeLen(t.Text)})
	}
	if len(patches) == 0 {
		return src, false
	}
	for i := len(patches) - 1; i >= 0; i-- {
		p := patches[i]
		runes = append(runes[:p.start], append([]rune(newTable), runes[p.end:]...)...)
	}
	return string(runes), true
}

// rewriteSortSpecString rewrites a single sort_by/order_by/group_by token
// (one field, optionally "-"-prefixed) if its identifier matches oldCol
// (§4.9 "parsing each string as a sort-spec token").
func rewriteSortSpecString(s, oldCol, newCol string) (string, bool) {
	desc := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")
	if body != oldCol {
		return s, false
	}
	if desc {
		return "-" + newCol, true
	}
	return newCol, true
}
