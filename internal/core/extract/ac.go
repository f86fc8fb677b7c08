package extract

// Aho-Corasick over normalized keys. Keys are ASCII-heavy lowercase UTF-8, so a
// fixed 256-way transition table per node keeps the scan free of map lookups

type acNode struct {
	// trans[b] = next state or -1 if absent
	trans  [256]int
	fail   int
	output []int // term indexes ending at this node
}

type acAutomaton struct {
	nodes []acNode
	lens  []int // byte length per term index
}

func newAutomaton() *acAutomaton {
	a := &acAutomaton{nodes: make([]acNode, 1)}
	for i := range a.nodes[0].trans {
		a.nodes[0].trans[i] = -1
	}
	return a
}

// add inserts pat under id
func (a *acAutomaton) add(pat string, id int) {
	if pat == "" {
		return
	}
	for len(a.lens) <= id {
		a.lens = append(a.lens, 0)
	}
	a.lens[id] = len(pat)

	state := 0
	for i := 0; i < len(pat); i++ {
		b := pat[i]
		nxt := a.nodes[state].trans[b]
		if nxt == -1 {
			nxt = len(a.nodes)
			a.nodes[state].trans[b] = nxt
			var n acNode
			for j := range n.trans {
				n.trans[j] = -1
			}
			a.nodes = append(a.nodes, n)
		}
		state = nxt
	}
	a.nodes[state].output = append(a.nodes[state].output, id)
}

// build computes failure links breadth first
func (a *acAutomaton) build() {
	q := make([]int, 0, 64)
	for b := range 256 {
		if s := a.nodes[0].trans[b]; s != -1 {
			a.nodes[s].fail = 0
			q = append(q, s)
		}
	}

	for qi := 0; qi < len(q); qi++ {
		r := q[qi]
		for b := range 256 {
			s := a.nodes[r].trans[b]
			if s == -1 {
				continue
			}
			q = append(q, s)

			f := a.nodes[r].fail
			for f != 0 && a.nodes[f].trans[b] == -1 {
				f = a.nodes[f].fail
			}
			if nxt := a.nodes[f].trans[b]; nxt != -1 {
				a.nodes[s].fail = nxt
			} else {
				a.nodes[s].fail = 0
			}
			a.nodes[s].output = append(a.nodes[s].output, a.nodes[a.nodes[s].fail].output...)
		}
	}
}

// span is one match as [start,end) byte offsets plus the term index
type span struct {
	start, end int
	id         int
}

// scan returns every match of text that sits on token boundaries, in end order
func (a *acAutomaton) scan(text string) []span {
	var out []span
	state := 0
	for i := 0; i < len(text); i++ {
		b := text[i]
		for state != 0 && a.nodes[state].trans[b] == -1 {
			state = a.nodes[state].fail
		}
		if nxt := a.nodes[state].trans[b]; nxt != -1 {
			state = nxt
		}
		for _, id := range a.nodes[state].output {
			end := i + 1
			start := end - a.lens[id]
			if onBoundary(text, start, end) {
				out = append(out, span{start: start, end: end, id: id})
			}
		}
	}
	return out
}

// leftmostLongest picks the earliest match, the longest one when several start together
func leftmostLongest(ms []span) (span, bool) {
	if len(ms) == 0 {
		return span{}, false
	}
	best := ms[0]
	for _, m := range ms[1:] {
		if m.start < best.start || (m.start == best.start && m.end > best.end) {
			best = m
		}
	}
	return best, true
}

// rightmostLongest picks the match ending last, the longest one when several end together
func rightmostLongest(ms []span) (span, bool) {
	if len(ms) == 0 {
		return span{}, false
	}
	best := ms[0]
	for _, m := range ms[1:] {
		if m.end > best.end || (m.end == best.end && m.start < best.start) {
			best = m
		}
	}
	return best, true
}
