package timelapse

// ResolveCategory expands a category id into its descendant closure: the id
// itself plus every transitively reachable child.
// The traversal tracks visited ids, so a corrupted parent graph containing a
// cycle terminates instead of looping. Returns snapdb.ErrNotFound if the
// category does not exist.
func (e *Engine) ResolveCategory(categoryID int64) ([]int64, error) {
	if _, err := e.db.GetCategory(categoryID); err != nil {
		return nil, err
	}

	visited := map[int64]bool{categoryID: true}
	closure := []int64{categoryID}
	queue := []int64{categoryID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		children, err := e.db.CategoryChildren(id)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if visited[child.ID] {
				continue
			}
			visited[child.ID] = true
			closure = append(closure, child.ID)
			queue = append(queue, child.ID)
		}
	}
	return closure, nil
}
