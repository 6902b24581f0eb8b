package placeholder

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrUnresolved reports placeholders that neither pass could bind.
var ErrUnresolved = errors.New("unresolved placeholder")

var (
	pattern   = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_.]*)\s*\}\}`)
	validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)
)

// Run constant names bound in the first pass.
const (
	ExecutionDate = "execution_date"
	TS            = "ts"
	TSNoDash      = "ts_nodash"
	DS            = "ds"
	DSNoDash      = "ds_nodash"
	Stage         = "stage"
	RecordID      = "record_id"
	AreaID        = "area_id"
)

const paramsPrefix = "params."

// RunConstants returns the first-pass bindings for one stage run. A nil
// area renders as null, which selectors read as "no area".
func RunConstants(executionDate time.Time, stage string, recordID int64, areaID *int64) map[string]string {
	dt := executionDate.UTC()
	area := "null"
	if areaID != nil {
		area = strconv.FormatInt(*areaID, 10)
	}
	return map[string]string{
		ExecutionDate: dt.Format("2006-01-02T15:04:05"),
		TS:            dt.Format(time.RFC3339),
		TSNoDash:      dt.Format("20060102T150405"),
		DS:            dt.Format("2006-01-02"),
		DSNoDash:      dt.Format("20060102"),
		Stage:         stage,
		RecordID:      strconv.FormatInt(recordID, 10),
		AreaID:        area,
	}
}

// Resolver substitutes {{ name }} placeholders in two explicit passes. The
// first pass binds run constants. The second binds values that only exist
// once the first is known: user params (whose values may reference run
// constants) and temp paths. A placeholder left after the second pass is an
// error.
type Resolver struct {
	first  map[string]string
	second map[string]string
}

// NewResolver builds a resolver from run constants and user params. Params
// are rendered through the first pass immediately and may be referenced as
// {{ name }} or {{ params.name }}.
func NewResolver(constants, params map[string]string) (*Resolver, error) {
	r := &Resolver{
		first:  make(map[string]string, len(constants)),
		second: make(map[string]string, len(params)*2),
	}
	for name, value := range constants {
		r.first[name] = value
	}
	for _, name := range sortedKeys(params) {
		if _, clash := r.first[name]; clash {
			return nil, fmt.Errorf("param %q shadows a run constant", name)
		}
		rendered, missing := substitute(params[name], r.first)
		if len(missing) > 0 {
			return nil, fmt.Errorf("param %q: %w: %s", name, ErrUnresolved, strings.Join(missing, ", "))
		}
		r.second[name] = rendered
		r.second[paramsPrefix+name] = rendered
	}
	return r, nil
}

// Bind adds a second-pass value such as a temp path.
func (r *Resolver) Bind(name, value string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid placeholder name %q", name)
	}
	if _, clash := r.first[name]; clash {
		return fmt.Errorf("placeholder %q is already bound", name)
	}
	if _, clash := r.second[name]; clash {
		return fmt.Errorf("placeholder %q is already bound", name)
	}
	r.second[name] = value
	return nil
}

// Render applies both passes to tmpl.
func (r *Resolver) Render(tmpl string) (string, error) {
	afterFirst, _ := substitute(tmpl, r.first)
	out, missing := substitute(afterFirst, r.second)
	if len(missing) > 0 {
		return "", fmt.Errorf("%w in %q: %s", ErrUnresolved, tmpl, strings.Join(missing, ", "))
	}
	return out, nil
}

// RenderAll renders every value of a map.
func (r *Resolver) RenderAll(values map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, key := range sortedKeys(values) {
		rendered, err := r.Render(values[key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = rendered
	}
	return out, nil
}

// RenderArgs renders an argv slice.
func (r *Resolver) RenderArgs(args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, arg := range args {
		rendered, err := r.Render(arg)
		if err != nil {
			return nil, err
		}
		out[i] = rendered
	}
	return out, nil
}

// Names returns every placeholder name referenced by tmpl, in order of
// first appearance.
func Names(tmpl string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, m := range pattern.FindAllStringSubmatch(tmpl, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	return names
}

// substitute replaces known names and leaves unknown placeholders intact,
// returning the unknown names. Substituted values are not rescanned.
func substitute(tmpl string, values map[string]string) (string, []string) {
	var missing []string
	out := pattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := pattern.FindStringSubmatch(match)[1]
		if value, ok := values[name]; ok {
			return value
		}
		missing = append(missing, name)
		return match
	})
	return out, missing
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
