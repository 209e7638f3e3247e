package formschema

// The showIf relation forms a directed graph: an edge a -> b means field a is
// shown only depending on field b. The graph must be acyclic.

const (
	unvisited = iota
	visiting
	done
)

// checkCycles runs a depth-first search over the depends-on edges and returns
// a CycleError for the first back edge found. Traversal starts from ids in
// sorted order so the reported path is deterministic.
func checkCycles(fields map[string]FieldDefinition) error {
	state := make(map[string]int, len(fields))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		state[id] = visiting
		stack = append(stack, id)
		if f := fields[id]; f.ShowIf != nil {
			dep := f.ShowIf.Field
			if _, ok := fields[dep]; ok {
				switch state[dep] {
				case visiting:
					return &CycleError{Path: cyclePath(stack, dep)}
				case unvisited:
					if err := visit(dep); err != nil {
						return err
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, id := range sortedIDs(fields) {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func cyclePath(stack []string, start string) []string {
	for i, id := range stack {
		if id == start {
			path := append([]string{}, stack[i:]...)
			return append(path, start)
		}
	}
	return []string{start, start}
}

// dependencyOrder returns field ids so that every field comes after the field
// its showIf depends on. Fields caught in a cycle, or depending on one, are
// returned in cyclic; they can never be resolved.
func dependencyOrder(fields map[string]FieldDefinition) (order []string, cyclic map[string]bool) {
	state := make(map[string]int, len(fields))
	cyclic = map[string]bool{}

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case done:
			return !cyclic[id]
		case visiting:
			cyclic[id] = true
			return false
		}
		state[id] = visiting
		ok := true
		if f := fields[id]; f.ShowIf != nil {
			if _, exists := fields[f.ShowIf.Field]; exists {
				ok = visit(f.ShowIf.Field)
			}
		}
		state[id] = done
		if !ok {
			cyclic[id] = true
			return false
		}
		order = append(order, id)
		return true
	}

	for _, id := range sortedIDs(fields) {
		visit(id)
	}
	return order, cyclic
}
