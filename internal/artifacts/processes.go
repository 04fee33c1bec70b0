// internal/artifacts/processes.go
package artifacts

import (
	"strconv"
	"strings"

	"droidsweep/internal/core/domain"
	"droidsweep/internal/core/ports"
	"droidsweep/internal/platform/registry"
)

func init() {
	registry.Global().MustRegister(
		func() ports.Artifact { return NewProcesses() },
		ports.ModuleMetadata{
			Description: "Running processes from ps output",
			Priority:    10,
			Weight:      10,
		},
	)
}

// psColumns is the column count of a ps row once the optional label is gone.
const psColumns = 9

// Processes parses `ps -A` output.
type Processes struct {
	Base
}

func NewProcesses() *Processes {
	return &Processes{Base: newBase("processes", "ps.txt", "processes.txt")}
}

// Parse skips the header row. Rows whose numeric columns do not parse are
// dropped.
func (p *Processes) Parse(data []byte) error {
	p.reset()

	lines := splitLines(string(data))
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		parts := strings.Fields(line)

		// kernel threads have an empty WCHAN
		if len(parts) == psColumns-1 {
			parts = insertAt(parts, 5, "")
		}
		label := ""
		if strings.HasPrefix(parts[0], "u:r") {
			label = parts[0]
			parts = parts[1:]
		}
		if len(parts) == psColumns-1 {
			parts = insertAt(parts, 5, "")
		}
		if len(parts) < psColumns {
			continue
		}

		nums, ok := atoiAll(parts[1:5])
		if !ok {
			continue
		}
		rec := domain.NewRecord().
			SetString("user", parts[0]).
			Set("pid", domain.Int(nums[0])).
			Set("ppid", domain.Int(nums[1])).
			Set("virtual_memory_size", domain.Int(nums[2])).
			Set("resident_set_size", domain.Int(nums[3])).
			SetString("wchan", parts[5]).
			SetString("address", parts[6]).
			SetString("stat", parts[7]).
			SetString("proc_name", strings.NewReplacer("[", "", "]", "").Replace(parts[8])).
			SetString("label", label)
		p.add(rec)
	}
	return nil
}

func (p *Processes) CheckIndicators() {
	p.clearDetections()
	for _, r := range p.results {
		name := r.Str("proc_name")
		// gatekeeperd da falsos positivos
		if name == "gatekeeperd" {
			continue
		}
		p.match(name, domain.IndicatorAppID, r)
		p.match(name, domain.IndicatorProcess, r)
	}
}

func insertAt(parts []string, i int, v string) []string {
	out := make([]string, 0, len(parts)+1)
	out = append(out, parts[:i]...)
	out = append(out, v)
	return append(out, parts[i:]...)
}

func atoiAll(ss []string) ([]int64, bool) {
	out := make([]int64, len(ss))
	for i, s := range ss {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, false
		}
		out[i] = n
	}
	return out, true
}
