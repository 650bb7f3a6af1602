package compose

import "sort"

// =============================================================================
// Service Ordering
// =============================================================================

// StartOrder sorts manifest services by their dependencies using Kahn's
// algorithm: services with no dependencies come first, ties broken by name.
// Services left over by a cycle are appended in name order.
//
// Example:
//
//	// web -> api -> db
//	StartOrder(m.Services) // [db, api, web]
func StartOrder(services []ManifestService) []string {
	inDegree := make(map[string]int, len(services))
	dependents := make(map[string][]string)
	for _, svc := range services {
		inDegree[svc.Name] = len(svc.DependsOn)
		for _, dep := range svc.DependsOn {
			dependents[dep] = append(dependents[dep], svc.Name)
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	done := make(map[string]bool, len(services))
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		result = append(result, name)
		done[name] = true

		var ready []string
		for _, dep := range dependents[name] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
		sort.Strings(ready)
		queue = append(queue, ready...)
	}

	if len(result) < len(services) {
		var rest []string
		for _, svc := range services {
			if !done[svc.Name] {
				rest = append(rest, svc.Name)
			}
		}
		sort.Strings(rest)
		result = append(result, rest...)
	}
	return result
}
