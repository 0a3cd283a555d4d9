package storage

import (
	"context"
	"reflect"
	"testing"
)

func intPtr(n int) *int { return &n }

func TestFilterClauses(t *testing.T) {
	tests := []struct {
		name        string
		filter      Filter
		ph          Placeholder
		start       int
		wantClauses []string
		wantArgs    []any
	}{
		{
			name:        "empty filter",
			filter:      Filter{},
			ph:          QuestionPlaceholder,
			start:       1,
			wantClauses: nil,
			wantArgs:    nil,
		},
		{
			name:        "borough only",
			filter:      Filter{Borough: "Queens"},
			ph:          QuestionPlaceholder,
			start:       1,
			wantClauses: []string{"z.borough = ?"},
			wantArgs:    []any{"Queens"},
		},
		{
			name:        "all predicates, question style",
			filter:      Filter{Borough: "Queens", TimeOfDay: "Morning", PickupHour: intPtr(8)},
			ph:          QuestionPlaceholder,
			start:       1,
			wantClauses: []string{"z.borough = ?", "t.time_of_day = ?", "t.pickup_hour = ?"},
			wantArgs:    []any{"Queens", "Morning", 8},
		},
		{
			name:   "dollar placeholders number from start",
			filter: Filter{TimeOfDay: "Night", PickupHour: intPtr(23)},
			ph: func(i int) string {
				return map[int]string{3: "$3", 4: "$4"}[i]
			},
			start:       3,
			wantClauses: []string{"t.time_of_day = $3", "t.pickup_hour = $4"},
			wantArgs:    []any{"Night", 23},
		},
		{
			name:        "zero hour is a real constraint",
			filter:      Filter{PickupHour: intPtr(0)},
			ph:          QuestionPlaceholder,
			start:       1,
			wantClauses: []string{"t.pickup_hour = ?"},
			wantArgs:    []any{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clauses, args := FilterClauses(tt.filter, tt.ph, tt.start)
			if !reflect.DeepEqual(clauses, tt.wantClauses) {
				t.Errorf("clauses = %v, want %v", clauses, tt.wantClauses)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	kinds := Kinds()
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] >= kinds[i] {
			t.Errorf("Kinds() not sorted: %v", kinds)
		}
	}
}

func TestNewUnknownKind(t *testing.T) {
	if _, err := New(context.Background(), Config{Kind: "bogus", DSN: "x"}); err == nil {
		t.Fatal("New accepted an unregistered kind")
	}
}
