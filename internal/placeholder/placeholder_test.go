package placeholder_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"satpipe/internal/placeholder"
)

func newResolver(t *testing.T, params map[string]string) *placeholder.Resolver {
	t.Helper()
	area := int64(5)
	constants := placeholder.RunConstants(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "unzip", 42, &area)
	r, err := placeholder.NewResolver(constants, params)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r
}

func TestRunConstants(t *testing.T) {
	got := placeholder.RunConstants(time.Date(2024, 3, 5, 6, 7, 8, 0, time.UTC), "s", 1, nil)
	want := map[string]string{
		"execution_date": "2024-03-05T06:07:08",
		"ts":             "2024-03-05T06:07:08Z",
		"ts_nodash":      "20240305T060708",
		"ds":             "2024-03-05",
		"ds_nodash":      "20240305",
		"stage":          "s",
		"record_id":      "1",
		"area_id":        "null",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RunConstants = %v, want %v", got, want)
	}
}

func TestRenderTwoPasses(t *testing.T) {
	r := newResolver(t, map[string]string{"product": "ntf", "out_name": "ntf_{{ ds_nodash }}"})
	if err := r.Bind("unzip_dir", "/staging/tmp_unzip_20240101T000000_unzip_dir"); err != nil {
		t.Fatalf("Bind: %v", err)
	}

	tests := []struct {
		tmpl string
		want string
	}{
		{"date_time='{{ execution_date }}' AND area_id={{area_id}}", "date_time='2024-01-01T00:00:00' AND area_id=5"},
		{"{{ unzip_dir }}/{{ out_name }}.nc", "/staging/tmp_unzip_20240101T000000_unzip_dir/ntf_20240101.nc"},
		{"{{ params.product }}", "ntf"},
		{"no placeholders", "no placeholders"},
	}
	for _, tt := range tests {
		got, err := r.Render(tt.tmpl)
		if err != nil {
			t.Fatalf("Render(%q): %v", tt.tmpl, err)
		}
		if got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.tmpl, got, tt.want)
		}
	}
}

func TestRenderUnknownPlaceholderFails(t *testing.T) {
	r := newResolver(t, nil)
	if _, err := r.Render("{{ missing }}"); !errors.Is(err, placeholder.ErrUnresolved) {
		t.Fatalf("Render error = %v, want ErrUnresolved", err)
	}
	if _, err := r.RenderArgs([]string{"ok", "{{ nope }}"}); !errors.Is(err, placeholder.ErrUnresolved) {
		t.Fatalf("RenderArgs error = %v, want ErrUnresolved", err)
	}
}

func TestSubstitutedValuesAreNotRescanned(t *testing.T) {
	r := newResolver(t, nil)
	if err := r.Bind("odd", "{{ stage }}"); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, err := r.Render("{{ odd }}")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "{{ stage }}" {
		t.Fatalf("Render = %q, want literal value", got)
	}
}

func TestResolverRejectsConflicts(t *testing.T) {
	constants := placeholder.RunConstants(time.Now(), "s", 1, nil)
	if _, err := placeholder.NewResolver(constants, map[string]string{"ds": "x"}); err == nil {
		t.Fatal("expected param shadowing a constant to fail")
	}
	if _, err := placeholder.NewResolver(constants, map[string]string{"p": "{{ unzip_dir }}"}); !errors.Is(err, placeholder.ErrUnresolved) {
		t.Fatalf("param referencing a second-pass name error = %v, want ErrUnresolved", err)
	}
	r, _ := placeholder.NewResolver(constants, nil)
	if err := r.Bind("stage", "/x"); err == nil {
		t.Fatal("expected Bind over a constant to fail")
	}
	if err := r.Bind("bad name", "/x"); err == nil {
		t.Fatal("expected invalid name to fail")
	}
}

func TestNames(t *testing.T) {
	got := placeholder.Names("{{ a }} {{b}} {{ a }} {{ params.c }}")
	want := []string{"a", "b", "params.c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Names = %v, want %v", got, want)
	}
}
