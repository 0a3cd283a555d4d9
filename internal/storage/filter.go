package storage

// Placeholder formats the i-th (1-based) bind parameter for a backend:
// "?" for database/sql drivers, "$1", "$2", ... for pgx.
type Placeholder func(i int) string

// QuestionPlaceholder is the database/sql style.
func QuestionPlaceholder(int) string { return "?" }

// FilterClauses renders f as AND-able SQL predicates plus their arguments.
// Predicates reference the trips table as t and the pickup-zone join as z,
// matching the query layout every backend uses. start is the 1-based index
// of the first bind parameter.
func FilterClauses(f Filter, ph Placeholder, start int) ([]string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func() string {
		s := ph(start + len(args))
		return s
	}
	if f.Borough != "" {
		clauses = append(clauses, "z.borough = "+next())
		args = append(args, f.Borough)
	}
	if f.TimeOfDay != "" {
		clauses = append(clauses, "t.time_of_day = "+next())
		args = append(args, f.TimeOfDay)
	}
	if f.PickupHour != nil {
		clauses = append(clauses, "t.pickup_hour = "+next())
		args = append(args, *f.PickupHour)
	}
	return clauses, args
}
