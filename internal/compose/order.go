package compose

import (
	"fmt"
	"sort"
	"strings"
)

// StartOrder returns the project's service names in dependency-first order:
// a deterministic Kahn topological sort with lexicographic tie-breaking.
// Startup along this order is sequential and one-shot; no readiness gate is
// implied between a dependency and its dependents.
func StartOrder(p *Project) ([]string, error) {
	indegree := map[string]int{}
	dependents := map[string][]string{}

	for _, name := range p.ServiceNames() {
		indegree[name] = 0
	}
	for _, name := range p.ServiceNames() {
		for _, dep := range p.Services[name].Dependencies() {
			if _, ok := indegree[dep]; !ok {
				continue
			}
			indegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	var ready []string
	for _, name := range p.ServiceNames() {
		if indegree[name] == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(indegree))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, dependent := range dependents[name] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		sort.Strings(ready)
	}

	if len(order) != len(indegree) {
		if cycle := findCycle(p); len(cycle) > 0 {
			return nil, fmt.Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
		}
		return nil, fmt.Errorf("dependency cycle detected")
	}
	return order, nil
}

// StopOrder is the exact reverse of StartOrder.
func StopOrder(p *Project) ([]string, error) {
	order, err := StartOrder(p)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}
