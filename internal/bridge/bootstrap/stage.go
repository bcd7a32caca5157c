package bootstrap

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"tgbridge/internal/shared/logging"
)

// Stage is one startup step. Required stages abort startup on error;
// optional ones are recorded as degraded.
type Stage struct {
	Name     string
	Required bool
	Init     func() error
}

// DegradedComponents tracks optional stages that failed.
type DegradedComponents struct {
	mu         sync.RWMutex
	components map[string]string
}

func NewDegradedComponents() *DegradedComponents {
	return &DegradedComponents{components: make(map[string]string)}
}

// Record marks name as degraded with reason.
func (d *DegradedComponents) Record(name, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components[name] = reason
}

// Map returns a snapshot.
func (d *DegradedComponents) Map() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.components))
	for k, v := range d.components {
		out[k] = v
	}
	return out
}

func (d *DegradedComponents) IsEmpty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.components) == 0
}

// String lists degraded components in name order.
func (d *DegradedComponents) String() string {
	snapshot := d.Map()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, snapshot[name]))
	}
	return strings.Join(parts, "; ")
}

// RunStages executes stages in order.
func RunStages(stages []Stage, degraded *DegradedComponents, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	for _, stage := range stages {
		logger.Debug("[Bootstrap] Running stage: %s (required=%v)", stage.Name, stage.Required)
		if err := stage.Init(); err != nil {
			if stage.Required {
				return fmt.Errorf("required stage %q failed: %w", stage.Name, err)
			}
			logger.Warn("[Bootstrap] Optional stage %q failed: %v (continuing in degraded mode)", stage.Name, err)
			if degraded != nil {
				degraded.Record(stage.Name, err.Error())
			}
		}
	}
	return nil
}
