package airflow

import (
	"slices"
	"strings"
)

// taskGroup is the task group of id, the part before the first ".".
func taskGroup(id string) string {
	group, _, _ := strings.Cut(id, ".")
	return group
}

// graph indexes a task list by id in both directions.
type graph struct {
	ids        []string
	downstream map[string][]string
	upstream   map[string]map[string]bool
}

func newGraph(tasks []Task) graph {
	g := graph{downstream: map[string][]string{}, upstream: map[string]map[string]bool{}}
	add := func(id string) {
		if _, ok := g.upstream[id]; !ok {
			g.upstream[id] = map[string]bool{}
			g.ids = append(g.ids, id)
		}
	}
	for _, t := range tasks {
		add(t.ID)
		for _, d := range t.Downstream {
			add(d)
			g.upstream[d][t.ID] = true
		}
		g.downstream[t.ID] = append(g.downstream[t.ID], t.Downstream...)
	}
	slices.Sort(g.ids)
	for id, children := range g.downstream {
		children = slices.Clone(children)
		slices.Sort(children)
		g.downstream[id] = slices.Compact(children)
	}
	return g
}

// TopologicalOrder returns the task ids so that every task comes after its
// upstreams. Ready tasks are taken one group at a time in sorted order, and
// tasks of the same group that become ready follow directly. Tasks on a
// cycle are appended last.
func TopologicalOrder(tasks []Task) []string {
	g := newGraph(tasks)
	done := make(map[string]bool, len(g.ids))
	ready := map[string]bool{}
	for _, id := range g.ids {
		if len(g.upstream[id]) == 0 {
			ready[id] = true
		}
	}

	order := make([]string, 0, len(g.ids))
	take := func(id string) {
		order = append(order, id)
		done[id] = true
		delete(ready, id)
		for _, d := range g.downstream[id] {
			if done[d] {
				continue
			}
			all := true
			for up := range g.upstream[d] {
				if !done[up] {
					all = false
					break
				}
			}
			if all {
				ready[d] = true
			}
		}
	}
	readyIn := func(group string) []string {
		var ids []string
		for id := range ready {
			if taskGroup(id) == group {
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		return ids
	}

	for len(ready) > 0 {
		group := ""
		first := true
		for id := range ready {
			if tg := taskGroup(id); first || tg < group {
				group, first = tg, false
			}
		}
		for _, id := range readyIn(group) {
			if !ready[id] {
				continue
			}
			take(id)
			for _, next := range readyIn(group) {
				if ready[next] {
					take(next)
				}
			}
		}
	}

	for _, id := range g.ids {
		if !done[id] {
			order = append(order, id)
		}
	}
	return order
}

// GraphRow is one line of the drawn task tree.
type GraphRow struct {
	TaskID string
	Prefix string
}

// GraphLayout draws the task graph as a tree hanging from the tasks without
// upstreams. A task with several upstreams appears under each of them.
func GraphLayout(tasks []Task) []GraphRow {
	g := newGraph(tasks)
	var roots []string
	for _, id := range g.ids {
		if len(g.upstream[id]) == 0 {
			roots = append(roots, id)
		}
	}

	var rows []GraphRow
	onPath := map[string]bool{}
	var walk func(id, prefix string, last bool)
	walk = func(id, prefix string, last bool) {
		connector, extension := "├─", "│ "
		if last {
			connector, extension = "└─", "  "
		}
		rows = append(rows, GraphRow{TaskID: id, Prefix: prefix + connector})
		if onPath[id] {
			return
		}
		onPath[id] = true
		children := g.downstream[id]
		for i, child := range children {
			walk(child, prefix+extension, i == len(children)-1)
		}
		delete(onPath, id)
	}
	for i, root := range roots {
		walk(root, "", i == len(roots)-1)
	}
	return rows
}

// GraphOrder ranks every task for display. Tasks are ordered by their first
// row in GraphLayout and carry that row's prefix; tasks the tree does not
// reach follow in TopologicalOrder with no prefix.
func GraphOrder(tasks []Task) (rank map[string]int, prefix map[string]string) {
	rank = map[string]int{}
	prefix = map[string]string{}
	for _, row := range GraphLayout(tasks) {
		if _, seen := rank[row.TaskID]; seen {
			continue
		}
		rank[row.TaskID] = len(rank)
		prefix[row.TaskID] = row.Prefix
	}
	for _, id := range TopologicalOrder(tasks) {
		if _, seen := rank[id]; !seen {
			rank[id] = len(rank)
		}
	}
	return rank, prefix
}
