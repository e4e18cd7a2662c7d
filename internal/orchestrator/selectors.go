package orchestrator

import (
	"sort"

	"github.com/compote-dev/compote/internal/capability"
	"github.com/compote-dev/compote/internal/orcherr"
)

// Selector is the parsed form of one `service[#replica]` command-line argument (§6.2). Callers
// parse raw strings with ParseSelector before passing them to Start/Stop/Restart/Logs.
type Selector = capability.Selector

// ParseSelector re-exports capability.ParseSelector so orchestrator callers don't need to import
// internal/capability directly for this one grammar.
func ParseSelector(spec string) (Selector, error) {
	sel, err := capability.ParseSelector(spec)
	if err != nil {
		return Selector{}, &orcherr.InvalidServiceSelector{Selector: spec}
	}
	return sel, nil
}

// resolveTargets aggregates selectors into service -> sorted replica indices, validating that
// every referenced service exists in the manifest. A nil/empty selectors list means "every known
// replica of every manifest service".
func (o *Orchestrator) resolveTargets(selectors []Selector) (map[string][]int, error) {
	if len(selectors) == 0 {
		targets := make(map[string][]int)
		for service := range o.manifest.Services {
			targets[service] = o.reg.KnownReplicaIndices(service)
		}
		return targets, nil
	}

	for _, sel := range selectors {
		if _, ok := o.serviceByName(sel.Service); !ok {
			return nil, &orcherr.ServiceNotFound{Service: sel.Service}
		}
	}

	aggregated := capability.AggregateSelectors(selectors)
	targets := make(map[string][]int, len(aggregated))
	for service, indices := range aggregated {
		if indices == nil {
			targets[service] = o.reg.KnownReplicaIndices(service)
			continue
		}
		replicas := make([]int, 0, len(indices))
		for r := range indices {
			replicas = append(replicas, r)
		}
		sort.Ints(replicas)
		targets[service] = replicas
	}
	return targets, nil
}
