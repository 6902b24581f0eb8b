package metadata

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Condition
	}{
		{
			name:  "single bare comparison",
			input: "id=42",
			want:  []Condition{{Field: "id", Op: "=", Value: "42"}},
		},
		{
			name:  "conjunction with quotes and spaces",
			input: `product_type = 'ntf' AND date_time >= "2024-01-01 00:00:00"`,
			want: []Condition{
				{Field: "product_type", Op: "=", Value: "ntf"},
				{Field: "date_time", Op: ">=", Value: "2024-01-01T00:00:00"},
			},
		},
		{
			name:  "parentheses ignored and alias resolved",
			input: "(product_id=6) and (area_id!=5)",
			want: []Condition{
				{Field: "product_type_id", Op: "=", Value: "6"},
				{Field: "area_id", Op: "!=", Value: "5"},
			},
		},
		{
			name:  "null area",
			input: "area_id=null",
			want:  []Condition{{Field: "area_id", Op: "=", Value: "0"}},
		},
		{
			name:  "status normalized",
			input: "status=TO_LOAD",
			want:  []Condition{{Field: "status", Op: "=", Value: "to_load"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := ParseSelector(tt.input)
			if err != nil {
				t.Fatalf("ParseSelector(%q) error: %v", tt.input, err)
			}
			if !reflect.DeepEqual(sel.Conditions, tt.want) {
				t.Fatalf("conditions = %#v, want %#v", sel.Conditions, tt.want)
			}
		})
	}
}

func TestParseSelectorRejects(t *testing.T) {
	inputs := []string{
		"",
		"id=1 OR id=2",
		"owner=bob",
		"id=abc",
		"id=",
		"id 1",
		"id=1 id=2",
		"status<std",
		"status=archived",
		"product_type>ntf",
		"filepath='/tmp/x",
		"date_time=yesterday",
	}
	for _, input := range inputs {
		if _, err := ParseSelector(input); !errors.Is(err, ErrValidation) {
			t.Errorf("ParseSelector(%q) error = %v, want ErrValidation", input, err)
		}
	}
}

func TestSelectorWhereBindsValues(t *testing.T) {
	sel, err := ParseSelector("product_type=ntf AND area!=eu AND id>3")
	if err != nil {
		t.Fatalf("ParseSelector: %v", err)
	}
	where, args := sel.where()
	wantWhere := "product_type_id IN (SELECT id FROM product WHERE short_name = ?) AND " +
		"area_id NOT IN (SELECT id FROM area WHERE short_name = ?) AND id > ?"
	if where != wantWhere {
		t.Fatalf("where = %q\nwant    %q", where, wantWhere)
	}
	wantArgs := []any{"ntf", "eu", int64(3)}
	if !reflect.DeepEqual(args, wantArgs) {
		t.Fatalf("args = %#v, want %#v", args, wantArgs)
	}
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	pg, err := dialectFor("postgres")
	if err != nil {
		t.Fatalf("dialectFor: %v", err)
	}
	got := pg.rebind("UPDATE file SET status = ? WHERE id = ? AND status = ?")
	want := "UPDATE file SET status = $1 WHERE id = $2 AND status = $3"
	if got != want {
		t.Fatalf("rebind = %q, want %q", got, want)
	}
	lite, _ := dialectFor("sqlite")
	if q := lite.rebind("id = ?"); q != "id = ?" {
		t.Fatalf("sqlite rebind changed query: %q", q)
	}
}
