package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external tool the booth relies on. Command may be
// a full command line ("pw-play --volume 0.8"); only its first word is
// resolved.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency. Command is the resolved
// executable path when Available.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement on PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, checkBinary(req))
	}
	return results
}

func checkBinary(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	fields := strings.Fields(req.Command)
	if len(fields) == 0 {
		status.Detail = "command not configured"
		return status
	}
	status.Command = fields[0]
	resolved, err := exec.LookPath(fields[0])
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", fields[0])
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}
