package topic

import "sync"

// Matcher indexes subscription patterns in a segment trie so that the
// patterns matching a concrete topic can be found in O(k) for k segments
// plus the wildcard branches. It is safe for concurrent use.
type Matcher struct {
	mu   sync.RWMutex
	root *trieNode
}

type trieNode struct {
	children map[string]*trieNode
	patterns []Topic
}

func newTrieNode() *trieNode {
	return &trieNode{
		children: make(map[string]*trieNode),
	}
}

func (n *trieNode) isEmpty() bool {
	return len(n.children) == 0 && len(n.patterns) == 0
}

// NewMatcher creates an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		root: newTrieNode(),
	}
}

// Add indexes a pattern. Adding the same pattern twice is a no-op.
func (m *Matcher) Add(pattern Topic) {
	if pattern == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root == nil {
		m.root = newTrieNode()
	}

	node := m.root
	for _, seg := range pattern.Segments() {
		if node.children[seg] == nil {
			node.children[seg] = newTrieNode()
		}
		node = node.children[seg]
	}

	for _, p := range node.patterns {
		if p == pattern {
			return
		}
	}
	node.patterns = append(node.patterns, pattern)
}

type pathEntry struct {
	node *trieNode
	key  string
}

// Remove drops a pattern and prunes trie nodes left empty.
// It reports whether the pattern was present.
func (m *Matcher) Remove(pattern Topic) bool {
	if pattern == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.root == nil {
		return false
	}

	segments := pattern.Segments()
	path := make([]pathEntry, 0, len(segments)+1)
	path = append(path, pathEntry{node: m.root})

	node := m.root
	for _, seg := range segments {
		child := node.children[seg]
		if child == nil {
			return false
		}
		path = append(path, pathEntry{node: child, key: seg})
		node = child
	}

	found := false
	for i, p := range node.patterns {
		if p == pattern {
			node.patterns = append(node.patterns[:i], node.patterns[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false
	}

	for i := len(path) - 1; i > 0; i-- {
		if !path[i].node.isEmpty() {
			break
		}
		delete(path[i-1].node.children, path[i].key)
	}
	return true
}

// Has reports whether the exact pattern is indexed.
func (m *Matcher) Has(pattern Topic) bool {
	if pattern == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.root == nil {
		return false
	}

	node := m.root
	for _, seg := range pattern.Segments() {
		if node.children[seg] == nil {
			return false
		}
		node = node.children[seg]
	}

	for _, p := range node.patterns {
		if p == pattern {
			return true
		}
	}
	return false
}

type matchState struct {
	seen    map[Topic]struct{}
	matches []Topic
	visited map[visitKey]struct{}
}

type visitKey struct {
	node  *trieNode
	depth int
}

// Match returns the unique patterns matching a concrete topic.
func (m *Matcher) Match(eventTopic Topic) []Topic {
	if eventTopic == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.root == nil {
		return nil
	}

	state := &matchState{
		seen:    make(map[Topic]struct{}),
		visited: make(map[visitKey]struct{}),
	}
	m.match(m.root, eventTopic.Segments(), 0, state)
	return state.matches
}

// match walks the trie; visited memoizes (node, depth) so "**" chains stay
// polynomial.
func (m *Matcher) match(node *trieNode, segments []string, depth int, state *matchState) {
	if node == nil {
		return
	}

	key := visitKey{node: node, depth: depth}
	if _, ok := state.visited[key]; ok {
		return
	}
	state.visited[key] = struct{}{}

	if depth == len(segments) {
		for _, p := range node.patterns {
			if _, ok := state.seen[p]; !ok {
				state.seen[p] = struct{}{}
				state.matches = append(state.matches, p)
			}
		}
		if child := node.children[WildcardMulti]; child != nil {
			m.match(child, segments, depth, state)
		}
		return
	}

	if child := node.children[segments[depth]]; child != nil {
		m.match(child, segments, depth+1, state)
	}
	if child := node.children[WildcardSingle]; child != nil {
		m.match(child, segments, depth+1, state)
	}
	if child := node.children[WildcardMulti]; child != nil {
		for i := depth; i <= len(segments); i++ {
			m.match(child, segments, i, state)
		}
	}
}

// Count returns the number of indexed patterns.
func (m *Matcher) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	var walk func(*trieNode)
	walk = func(n *trieNode) {
		if n == nil {
			return
		}
		count += len(n.patterns)
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(m.root)
	return count
}

// Clear removes every pattern.
func (m *Matcher) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.root = newTrieNode()
}
