package dataset

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skillet-data/skillet/internal/errs"
)

// Column selections in a recipe may use wildcards and optional
// markers rather than exact names:
//
//	"addr_*"   matches every column with the prefix
//	"regex: ^col[0-9]+$"  matches by regular expression
//	"notes?"   matches "notes" when present, otherwise is skipped
//
// ExpandColumns resolves a selection against the dataset's current
// columns, preserving dataset column order for pattern matches and
// selection order otherwise. A plain name that matches nothing is an
// error; an optional name that matches nothing is dropped silently.
func (d *Dataset) ExpandColumns(selected []string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	add := func(c string) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	for _, sel := range selected {
		switch {
		case strings.HasPrefix(strings.ToLower(sel), "regex:"):
			pattern := strings.TrimSpace(sel[len("regex:"):])
			re, err := regexp.Compile("^(?:" + pattern + ")$")
			if err != nil {
				return nil, fmt.Errorf("%w: invalid regex %q: %v", errs.ErrConfigInvalid, pattern, err)
			}
			for _, c := range d.columns {
				if re.MatchString(c) {
					add(c)
				}
			}
		case strings.Contains(sel, "*"):
			re := wildcardRegexp(sel)
			for _, c := range d.columns {
				if re.MatchString(c) {
					add(c)
				}
			}
		case strings.HasSuffix(sel, "?") && !d.HasColumn(sel):
			name := strings.TrimSuffix(sel, "?")
			if d.HasColumn(name) {
				add(name)
			}
			// absent optional columns are skipped
		default:
			if !d.HasColumn(sel) {
				return nil, fmt.Errorf("%w: %q", errs.ErrColumnNotFound, sel)
			}
			add(sel)
		}
	}
	return out, nil
}

// ExpandRenames resolves a rename mapping that may contain
// wildcards. A "prefix_*" → "new_*" pair renames every matching
// column, substituting the wildcard capture. Returned pairs follow
// dataset column order for wildcard matches.
func (d *Dataset) ExpandRenames(renames map[string]string, order []string) ([][2]string, error) {
	var out [][2]string
	for _, from := range order {
		to := renames[from]
		if !strings.Contains(from, "*") {
			if !d.HasColumn(from) {
				return nil, fmt.Errorf("%w: %q", errs.ErrColumnNotFound, from)
			}
			out = append(out, [2]string{from, to})
			continue
		}
		re := wildcardRegexp(from)
		matched := false
		for _, c := range d.columns {
			m := re.FindStringSubmatch(c)
			if m == nil {
				continue
			}
			matched = true
			renamed := to
			for _, g := range m[1:] {
				renamed = strings.Replace(renamed, "*", g, 1)
			}
			out = append(out, [2]string{c, renamed})
		}
		if !matched {
			return nil, fmt.Errorf("%w: no column matches %q", errs.ErrColumnNotFound, from)
		}
	}
	return out, nil
}

// wildcardRegexp converts a '*' wildcard pattern to an anchored
// regexp with one capture group per wildcard.
func wildcardRegexp(pattern string) *regexp.Regexp {
	parts := strings.Split(pattern, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("^" + strings.Join(parts, "(.*)") + "$")
}
