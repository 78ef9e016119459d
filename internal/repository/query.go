package repository

import (
	"fmt"
	"strings"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// pageWindow clamps a requested page to at most upper rows with a non-negative offset.
func pageWindow(limit, offset, def, upper int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > upper {
		limit = upper
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// conditions accumulates AND-ed predicates with positional placeholders.
type conditions struct {
	clauses []string
	args    []interface{}
}

// add appends a predicate. format receives the placeholder index of arg,
// so repeated uses are written as $%[1]d.
func (c *conditions) add(format string, arg interface{}) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(format, len(c.args)))
}

// where renders " WHERE a AND b", or "" when nothing was added.
func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}
