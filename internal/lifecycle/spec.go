package lifecycle

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"satpipe/internal/services"
)

// StageSpec declares what a stage consumes and produces.
type StageSpec struct {
	Stage string
	// Inputs maps a key to a selector template. Each input is materialized
	// at the temp path bound to its key.
	Inputs map[string]string
	// Outputs maps a key to metadata field templates. The body writes each
	// output to the temp path bound to its key.
	Outputs map[string]map[string]string
	// TempDirs are created before the body runs.
	TempDirs []string
}

// Validate checks the stage name and that every key is distinct across
// inputs, outputs and temp dirs.
func (s StageSpec) Validate() error {
	if strings.TrimSpace(s.Stage) == "" {
		return services.Wrap(services.ErrValidation, "", "validate stage", "stage name must be set", nil)
	}
	seen := make(map[string]string)
	claim := func(kind, key string) error {
		if strings.TrimSpace(key) == "" {
			return services.Wrap(services.ErrValidation, s.Stage, "validate stage", kind+" key must be set", nil)
		}
		if prev, dup := seen[key]; dup {
			return services.Wrap(services.ErrValidation, s.Stage, "validate stage",
				fmt.Sprintf("key %q used by both %s and %s", key, prev, kind), nil)
		}
		seen[key] = kind
		return nil
	}
	for _, key := range sortedKeys(s.Inputs) {
		if err := claim("inputs", key); err != nil {
			return err
		}
	}
	for _, key := range sortedKeys(s.Outputs) {
		if err := claim("outputs", key); err != nil {
			return err
		}
	}
	for _, key := range s.TempDirs {
		if err := claim("temp_dirs", key); err != nil {
			return err
		}
	}
	return nil
}

// RunContext carries the per-run values a stage is rendered against.
type RunContext struct {
	// ExecutionDate is the triggering record's date_time. It names the
	// run's temp paths, so it must never be wall-clock time.
	ExecutionDate time.Time
	// RunID separates concurrent invocations that share an execution date.
	// When empty the record id is used, or a random id without a record.
	RunID    string
	RecordID int64
	AreaID   *int64
	Params   map[string]string
}

func (rc RunContext) run() string {
	switch {
	case rc.RunID != "":
		return rc.RunID
	case rc.RecordID != 0:
		return strconv.FormatInt(rc.RecordID, 10)
	default:
		return uuid.NewString()[:8]
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
