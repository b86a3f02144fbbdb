package modwire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// A Filter is a parsed LDAP-style match expression, the grammar a
// Requirement uses to select among same-namespace Capabilities by
// attribute. Supported operators: =, >=, <=, ~= (case/whitespace-insensitive
// approximate match), ! negation, & conjunction, | disjunction, and the "*"
// wildcard in both values (substring match) and as a bare value (presence
// test).
type Filter struct {
	root filterNode
	raw  string
}

// ParseFilter parses s. An empty string is a valid "match everything"
// filter and ParseFilter(s) returns a nil *Filter in that case.
func ParseFilter(s string) (*Filter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	p := &filterParser{s: s}
	node, err := p.parseFilter()
	if err != nil {
		return nil, fmt.Errorf("modwire: invalid filter %q: %w", s, err)
	}
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("modwire: trailing characters in filter %q at position %d", s, p.pos)
	}
	return &Filter{root: node, raw: s}, nil
}

// Match reports whether attrs satisfies f. A nil *Filter matches everything.
func (f *Filter) Match(attrs map[string]any) bool {
	if f == nil {
		return true
	}
	return f.root.match(attrs)
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.raw
}

type filterNode interface {
	match(attrs map[string]any) bool
}

type andNode struct{ children []filterNode }
type orNode struct{ children []filterNode }
type notNode struct{ child filterNode }
type presentNode struct{ attr string }
type equalNode struct{ attr, value string }
type approxNode struct{ attr, value string }
type greaterEqNode struct{ attr, value string }
type lessEqNode struct{ attr, value string }

func (n *andNode) match(attrs map[string]any) bool {
	for _, c := range n.children {
		if !c.match(attrs) {
			return false
		}
	}
	return true
}

func (n *orNode) match(attrs map[string]any) bool {
	for _, c := range n.children {
		if c.match(attrs) {
			return true
		}
	}
	return false
}

func (n *notNode) match(attrs map[string]any) bool { return !n.child.match(attrs) }

func (n *presentNode) match(attrs map[string]any) bool {
	_, ok := attrs[n.attr]
	return ok
}

func (n *equalNode) match(attrs map[string]any) bool {
	v, ok := attrs[n.attr]
	if !ok {
		return false
	}
	return attrValueMatches(v, n.value)
}

func (n *approxNode) match(attrs map[string]any) bool {
	v, ok := attrs[n.attr]
	if !ok {
		return false
	}
	return normalizeApprox(valueToString(v)) == normalizeApprox(n.value)
}

func (n *greaterEqNode) match(attrs map[string]any) bool {
	v, ok := attrs[n.attr]
	if !ok {
		return false
	}
	return compareValues(valueToString(v), n.value) >= 0
}

func (n *lessEqNode) match(attrs map[string]any) bool {
	v, ok := attrs[n.attr]
	if !ok {
		return false
	}
	return compareValues(valueToString(v), n.value) <= 0
}

func normalizeApprox(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// compareValues orders a and b as semver versions when both parse as such
// (the common case for the "version" attribute), falling back to numeric
// and finally lexicographic comparison.
func compareValues(a, b string) int {
	if va, err := semver.NewVersion(a); err == nil {
		if vb, err2 := semver.NewVersion(b); err2 == nil {
			return va.Compare(vb)
		}
	}
	if fa, err := strconv.ParseFloat(a, 64); err == nil {
		if fb, err2 := strconv.ParseFloat(b, 64); err2 == nil {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(a, b)
}

func valueToString(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case fmt.Stringer:
		return vv.String()
	default:
		return fmt.Sprint(v)
	}
}

func attrValueMatches(v any, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if vs, ok := v.([]string); ok {
		for _, s := range vs {
			if wildcardMatch(s, pattern) {
				return true
			}
		}
		return false
	}
	return wildcardMatch(valueToString(v), pattern)
}

func wildcardMatch(s, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return s == pattern
	}
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	return strings.HasSuffix(s, parts[len(parts)-1])
}

// filterParser is a recursive-descent parser over the fully-parenthesized
// LDAP filter grammar: filter = "(" filtercomp ")"; filtercomp = and | or |
// not | item.
type filterParser struct {
	s   string
	pos int
}

func (p *filterParser) peek() byte {
	if p.pos >= len(p.s) {
		return 0
	}
	return p.s[p.pos]
}

func (p *filterParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("expected %q at position %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *filterParser) parseFilter() (filterNode, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	node, err := p.parseFilterComp()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *filterParser) parseFilterComp() (filterNode, error) {
	switch p.peek() {
	case '&':
		p.pos++
		children, err := p.parseFilterList()
		if err != nil {
			return nil, err
		}
		return &andNode{children}, nil
	case '|':
		p.pos++
		children, err := p.parseFilterList()
		if err != nil {
			return nil, err
		}
		return &orNode{children}, nil
	case '!':
		p.pos++
		child, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		return &notNode{child}, nil
	default:
		return p.parseItem()
	}
}

func (p *filterParser) parseFilterList() ([]filterNode, error) {
	var children []filterNode
	for p.peek() == '(' {
		c, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	if len(children) == 0 {
		return nil, fmt.Errorf("empty filter list at position %d", p.pos)
	}
	return children, nil
}

func (p *filterParser) parseItem() (filterNode, error) {
	start := p.pos
	for p.pos < len(p.s) {
		switch p.s[p.pos] {
		case '=', '<', '>', '~', ')':
			goto gotAttr
		}
		p.pos++
	}
gotAttr:
	attr := strings.TrimSpace(p.s[start:p.pos])
	if attr == "" {
		return nil, fmt.Errorf("missing attribute at position %d", start)
	}
	if p.pos >= len(p.s) {
		return nil, fmt.Errorf("unterminated filter item %q", attr)
	}
	switch p.s[p.pos] {
	case '>':
		p.pos++
		if err := p.expect('='); err != nil {
			return nil, err
		}
		return &greaterEqNode{attr, p.readValue()}, nil
	case '<':
		p.pos++
		if err := p.expect('='); err != nil {
			return nil, err
		}
		return &lessEqNode{attr, p.readValue()}, nil
	case '~':
		p.pos++
		if err := p.expect('='); err != nil {
			return nil, err
		}
		return &approxNode{attr, p.readValue()}, nil
	case '=':
		p.pos++
		val := p.readValue()
		if val == "*" {
			return &presentNode{attr}, nil
		}
		return &equalNode{attr, val}, nil
	default:
		return nil, fmt.Errorf("unexpected operator %q at position %d", p.s[p.pos], p.pos)
	}
}

func (p *filterParser) readValue() string {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] != ')' {
		p.pos++
	}
	return p.s[start:p.pos]
}
