package parser

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/nao1215/perflens/internal/model"
)

var (
	lockOrder    = regexp.MustCompile(`^Thread #(\d+): lock order "(\S+) before (\S+)" violated`)
	dataRace     = regexp.MustCompile(`^Possible data race during (read|write) of size (\d+) at (0x[0-9A-Fa-f]+) by thread #(\d+)`)
	raceConflict = regexp.MustCompile(`^This conflicts with a previous (?:read|write) of size \d+ by thread #(\d+)`)
	lockMisuse   = regexp.MustCompile(`^Thread #(\d+)(?::|'s)? (.*lock.*)$`)
	lockAddr     = regexp.MustCompile(`\b(0x[0-9A-Fa-f]+)\b`)
	helgrindHdr  = regexp.MustCompile(`^Helgrind, a thread error detector`)
)

// lockWaitPrefix starts a lock-wait entry:
//
//	lock-wait thread=3 lock=0x7f01 wait=1.5ms holder=2
const lockWaitPrefix = "lock-wait"

// ThreadParser parses helgrind reports and lock-wait entries.
type ThreadParser struct{}

// Kind returns model.KindThread.
func (ThreadParser) Kind() model.Kind { return model.KindThread }

// lockWait is one parsed lock-wait entry.
type lockWait struct {
	line   int
	thread int
	holder int
	lock   string
	waitUS float64
}

// pendingIssue is a finding waiting for its capture position to be fixed.
type pendingIssue struct {
	line  int
	issue model.ThreadIssue
}

// Parse extracts thread issues. Lock-wait entries are grouped by lock; a
// lock whose waiters and holders form a cycle is a deadlock, any other
// lock is contention. Helgrind lock order violations are deadlocks and
// data races are reported as such. Helgrind blocks are only read from
// lines carrying the valgrind "==pid==" prefix.
func (ThreadParser) Parse(capture model.RawCapture) (Result, error) {
	c := newCollector(capture)

	var (
		waits   []lockWait
		pending []pendingIssue
	)
	// lastRace indexes the data race awaiting its conflicting thread.
	lastRace := -1

	for _, ln := range splitLines(capture.Combined()) {
		text := ln.text
		body, fromValgrind := stripValgrind(text)
		if fromValgrind {
			text = body
		}
		t := strings.TrimSpace(text)
		if t == "" {
			continue
		}

		if strings.HasPrefix(t, lockWaitPrefix) {
			c.found = true
			w, err := parseLockWait(ln.no, t)
			if err != nil {
				c.reject(ln.no, "malformed lock-wait entry: %v", err)
				continue
			}
			waits = append(waits, w)
			continue
		}

		// Helgrind reports only come from valgrind; unprefixed lines were
		// printed by the target itself.
		if !fromValgrind {
			continue
		}

		switch {
		case helgrindHdr.MatchString(t):
			c.found = true
		case strings.HasPrefix(t, "ERROR SUMMARY:"):
			c.found = true
			if m := errorSummary.FindStringSubmatch(t); m != nil {
				if n, err := model.ParseCount(m[1]); err == nil {
					c.res.Summary["error_count"] = float64(n)
				}
				if n, err := model.ParseCount(m[2]); err == nil {
					c.res.Summary["error_contexts"] = float64(n)
				}
			}
		}

		if m := lockOrder.FindStringSubmatch(t); m != nil {
			tid, _ := strconv.Atoi(m[1])
			pending = append(pending, pendingIssue{line: ln.no, issue: model.ThreadIssue{
				Kind:        model.ThreadDeadlock,
				ThreadIDs:   []int{tid},
				LockID:      m[2],
				Cycle:       []string{m[2], m[3]},
				Description: t,
			}})
			continue
		}
		if m := dataRace.FindStringSubmatch(t); m != nil {
			tid, _ := strconv.Atoi(m[4])
			pending = append(pending, pendingIssue{line: ln.no, issue: model.ThreadIssue{
				Kind:        model.ThreadDataRace,
				ThreadIDs:   []int{tid},
				LockID:      m[3],
				Cycle:       []string{},
				Description: t,
			}})
			lastRace = len(pending) - 1
			continue
		}
		if m := raceConflict.FindStringSubmatch(t); m != nil {
			if lastRace >= 0 {
				tid, _ := strconv.Atoi(m[1])
				ids := &pending[lastRace].issue.ThreadIDs
				if !slices.Contains(*ids, tid) {
					*ids = append(*ids, tid)
					slices.Sort(*ids)
				}
				lastRace = -1
			}
			continue
		}
		if m := lockMisuse.FindStringSubmatch(t); m != nil && !strings.Contains(t, "was created") {
			tid, _ := strconv.Atoi(m[1])
			lock := ""
			if a := lockAddr.FindStringSubmatch(m[2]); a != nil {
				lock = a[1]
			}
			pending = append(pending, pendingIssue{line: ln.no, issue: model.ThreadIssue{
				Kind:        model.ThreadContention,
				ThreadIDs:   []int{tid},
				LockID:      lock,
				Cycle:       []string{},
				Description: t,
			}})
		}
	}

	pending = append(pending, groupLockWaits(waits)...)
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].line < pending[j].line })
	for _, p := range pending {
		issue := p.issue
		c.add(model.Finding{Thread: &issue})
	}

	return c.finish(capture)
}

// parseLockWait parses the key=value fields of a lock-wait entry.
func parseLockWait(lineNo int, t string) (lockWait, error) {
	w := lockWait{line: lineNo, holder: -1}
	var haveThread, haveWait bool
	for _, field := range strings.Fields(strings.TrimPrefix(t, lockWaitPrefix)) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return w, fmt.Errorf("field %q is not key=value", field)
		}
		switch key {
		case "thread":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return w, fmt.Errorf("invalid thread id %q", value)
			}
			w.thread, haveThread = n, true
		case "holder":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return w, fmt.Errorf("invalid holder id %q", value)
			}
			w.holder = n
		case "lock":
			w.lock = value
		case "wait":
			us, err := model.ParseMicros(value)
			if err != nil || us < 0 {
				return w, fmt.Errorf("invalid wait time %q", value)
			}
			w.waitUS, haveWait = us, true
		}
	}
	switch {
	case !haveThread:
		return w, fmt.Errorf("missing thread")
	case w.lock == "":
		return w, fmt.Errorf("missing lock")
	case !haveWait:
		return w, fmt.Errorf("missing wait")
	}
	return w, nil
}

// groupLockWaits builds one issue per lock in first-appearance order.
func groupLockWaits(waits []lockWait) []pendingIssue {
	if len(waits) == 0 {
		return nil
	}

	type group struct {
		line    int
		threads map[int]struct{}
		waitUS  float64
	}
	var order []string
	groups := map[string]*group{}
	graph := newWaitGraph()
	for _, w := range waits {
		g, ok := groups[w.lock]
		if !ok {
			g = &group{line: w.line, threads: map[int]struct{}{}}
			groups[w.lock] = g
			order = append(order, w.lock)
		}
		g.threads[w.thread] = struct{}{}
		g.waitUS += w.waitUS
		if w.holder >= 0 {
			g.threads[w.holder] = struct{}{}
			graph.addEdge(w.thread, w.holder, w.lock)
		}
	}

	cycles := graph.cycleLocks()

	out := make([]pendingIssue, 0, len(order))
	for _, lock := range order {
		g := groups[lock]
		ids := make([]int, 0, len(g.threads))
		for id := range g.threads {
			ids = append(ids, id)
		}
		slices.Sort(ids)

		issue := model.ThreadIssue{
			Kind:       model.ThreadContention,
			ThreadIDs:  ids,
			LockID:     lock,
			Cycle:      []string{},
			WaitTimeUS: g.waitUS,
		}
		if cycle, ok := cycles[lock]; ok {
			issue.Kind = model.ThreadDeadlock
			issue.Cycle = cycle
			issue.Description = fmt.Sprintf("threads %s wait on each other through locks %s",
				joinInts(ids), strings.Join(cycle, ", "))
		} else {
			issue.Description = fmt.Sprintf("%d thread(s) waited on lock %s", len(ids), lock)
		}
		out = append(out, pendingIssue{line: g.line, issue: issue})
	}
	return out
}

func joinInts(ids []int) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = strconv.Itoa(id)
	}
	return strings.Join(s, ",")
}

// waitEdge is a waiter blocked on a lock held by holder.
type waitEdge struct {
	to   int
	lock string
}

// waitGraph is a wait-for graph between threads.
type waitGraph struct {
	nodes []int
	edges map[int][]waitEdge
}

func newWaitGraph() *waitGraph {
	return &waitGraph{edges: map[int][]waitEdge{}}
}

func (g *waitGraph) addNode(n int) {
	if _, ok := g.edges[n]; !ok {
		g.edges[n] = nil
		g.nodes = append(g.nodes, n)
	}
}

func (g *waitGraph) addEdge(from, to int, lock string) {
	g.addNode(from)
	g.addNode(to)
	g.edges[from] = append(g.edges[from], waitEdge{to: to, lock: lock})
}

// cycleLocks maps every lock taking part in a wait cycle to the sorted
// locks of its cycle.
func (g *waitGraph) cycleLocks() map[string][]string {
	comp := g.components()
	out := map[string][]string{}

	locksByComp := map[int][]string{}
	for _, from := range g.nodes {
		for _, e := range g.edges[from] {
			if comp[from] != comp[e.to] {
				continue
			}
			// Same strongly connected component, or a self wait.
			locks := locksByComp[comp[from]]
			if !slices.Contains(locks, e.lock) {
				locksByComp[comp[from]] = append(locks, e.lock)
			}
		}
	}
	for _, locks := range locksByComp {
		slices.Sort(locks)
		for _, l := range locks {
			out[l] = locks
		}
	}
	return out
}

// components labels nodes with their strongly connected component using
// Tarjan's algorithm. Components of a single node without a self edge get
// a unique label each, so no edge ever joins them.
func (g *waitGraph) components() map[int]int {
	var stack []int
	var (
		index   = 0
		next    = 0
		onStack = map[int]bool{}
		indices = map[int]int{}
		lowlink = map[int]int{}
		comp    = map[int]int{}
	)

	var visit func(v int)
	visit = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.edges[v] {
			if _, seen := indices[e.to]; !seen {
				visit(e.to)
				lowlink[v] = min(lowlink[v], lowlink[e.to])
			} else if onStack[e.to] {
				lowlink[v] = min(lowlink[v], indices[e.to])
			}
		}

		if lowlink[v] == indices[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp[w] = next
				if w == v {
					break
				}
			}
			next++
		}
	}

	for _, n := range g.nodes {
		if _, seen := indices[n]; !seen {
			visit(n)
		}
	}
	return comp
}
