package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"satpipe/internal/config"
)

// Requirement defines an external binary satpipe invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Requirements lists the binaries named by configured stage commands and the
// command runtime. A binary shared by several stages is listed once.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	var reqs []Requirement
	seen := make(map[string]struct{})
	add := func(name, command, description string) {
		command = strings.TrimSpace(command)
		if _, dup := seen[command]; dup {
			return
		}
		seen[command] = struct{}{}
		reqs = append(reqs, Requirement{Name: name, Command: command, Description: description})
	}
	if cfg.Runtime.Kind == config.RuntimeCommand && len(cfg.Runtime.Command) > 0 {
		add("runtime", cfg.Runtime.Command[0], "Triggers pipelines in the workflow engine")
	}
	for _, p := range cfg.Pipelines {
		for _, s := range p.Stages {
			if len(s.Command) == 0 {
				continue
			}
			add(p.Name+"/"+s.Name, s.Command[0], "Runs stage "+s.Name+" of pipeline "+p.Name)
		}
	}
	return reqs
}
