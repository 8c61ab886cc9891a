package notification

import (
	"fmt"
	"sort"
	"strings"
)

// searchColumns whitelists the filterable fields and maps the wire names
// onto columns. user_id is deliberately absent: the caller predicate is
// injected by buildPredicates and can never be supplied through a filter.
var searchColumns = map[string]string{
	"content":    "content",
	"type":       "type",
	"state":      "state",
	"actionType": "action_type",
	"createdBy":  "created_by",
}

// sortColumns whitelists the sortable fields.
var sortColumns = map[string]string{
	"createdDate": "created_date",
	"content":     "content",
	"type":        "type",
	"state":       "state",
}

const defaultOrder = "created_date DESC"

// buildPredicates composes the WHERE clause for a caller's notifications.
// The recipient-isolation predicate comes first and unconditionally, then
// the soft-delete exclusion, then whatever whitelisted search fields the
// filter carries. Unknown field names (including any attempt to smuggle a
// user id) are dropped.
func buildPredicates(userID string, f *Filter) (string, []any) {
	clauses := []string{"user_id = $1", "deleted = FALSE"}
	args := []any{userID}

	if f != nil {
		// Deterministic clause order keeps the generated SQL stable.
		for _, field := range sortedKeys(f.SearchFields) {
			col, ok := searchColumns[field]
			if !ok {
				continue
			}
			args = append(args, f.SearchFields[field])
			clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
		}
	}

	return strings.Join(clauses, " AND "), args
}

// orderClause returns the ORDER BY expression for a filter. An explicit,
// whitelisted sort field is honored; anything else falls back to
// created_date descending.
func orderClause(f *Filter) string {
	if f == nil || f.SortBy == "" {
		return defaultOrder
	}
	col, ok := sortColumns[f.SortBy]
	if !ok {
		return defaultOrder
	}
	dir := "ASC"
	if strings.EqualFold(f.SortDirection, "DESC") {
		dir = "DESC"
	}
	return col + " " + dir
}

// pagingClause returns LIMIT/OFFSET when the filter requests a page, or an
// empty string for the full set.
func pagingClause(f *Filter) string {
	if f == nil || f.PageNumber <= 0 || f.PageSize <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (f.PageNumber-1)*f.PageSize)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
