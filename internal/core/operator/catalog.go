package operator

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type catalogKey struct {
	pluginType PluginType
	pluginID   string
}

// Catalog holds the operators available in one editing session.
// The two path input operators are always present.
type Catalog struct {
	operators []RuleOperator
	index     map[catalogKey]int
}

// NewCatalog creates a catalog from the given operators. Later operators
// replace earlier ones with the same plugin type and ID.
func NewCatalog(ops ...RuleOperator) *Catalog {
	c := &Catalog{index: make(map[catalogKey]int)}
	c.add(SourcePathOperator())
	c.add(TargetPathOperator())
	for _, op := range ops {
		c.add(op)
	}
	return c
}

// FromDescriptors converts every descriptor and builds a catalog.
func FromDescriptors(descriptors []PluginDescriptor, extra ExtraParameterBuilder) *Catalog {
	ops := make([]RuleOperator, 0, len(descriptors))
	for _, d := range descriptors {
		ops = append(ops, ConvertRuleOperator(d, extra))
	}
	return NewCatalog(ops...)
}

func (c *Catalog) add(op RuleOperator) {
	key := catalogKey{op.PluginType, op.PluginID}
	if i, ok := c.index[key]; ok {
		c.operators[i] = op
		return
	}
	c.index[key] = len(c.operators)
	c.operators = append(c.operators, op)
}

// Operators returns all operators in insertion order.
func (c *Catalog) Operators() []RuleOperator {
	return append([]RuleOperator(nil), c.operators...)
}

// Len returns the number of operators.
func (c *Catalog) Len() int {
	return len(c.operators)
}

// Lookup finds an operator by plugin ID and type.
func (c *Catalog) Lookup(pluginID string, pluginType PluginType) (RuleOperator, bool) {
	if c == nil {
		return RuleOperator{}, false
	}
	i, ok := c.index[catalogKey{pluginType, pluginID}]
	if !ok {
		return RuleOperator{}, false
	}
	return c.operators[i], true
}

// LookupID finds the first operator with the given plugin ID, whatever its type.
func (c *Catalog) LookupID(pluginID string) (RuleOperator, bool) {
	if c == nil {
		return RuleOperator{}, false
	}
	for _, op := range c.operators {
		if op.PluginID == pluginID {
			return op, true
		}
	}
	return RuleOperator{}, false
}

// Tab is a sidebar tab that filters and sorts the operator list
type Tab struct {
	ID            string
	Label         string
	FilterAndSort func(ops []RuleOperator) []RuleOperator
}

// SidebarTabs returns the operator sidebar tabs.
func SidebarTabs() []Tab {
	return []Tab{
		{ID: "all", Label: "All", FilterAndSort: func(ops []RuleOperator) []RuleOperator { return ops }},
		{ID: "transform", Label: "Transform", FilterAndSort: filterByType(PluginTypeTransform)},
		{ID: "comparison", Label: "Comparison", FilterAndSort: filterByType(PluginTypeComparison)},
		{ID: "aggregation", Label: "Aggregation", FilterAndSort: filterByType(PluginTypeAggregation)},
	}
}

func filterByType(t PluginType) func([]RuleOperator) []RuleOperator {
	return func(ops []RuleOperator) []RuleOperator {
		var out []RuleOperator
		for _, op := range ops {
			if op.PluginType == t {
				out = append(out, op)
			}
		}
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Label) < strings.ToLower(out[j].Label)
		})
		return out
	}
}

// SearchResult is an operator matching a text query
type SearchResult struct {
	Operator RuleOperator
	// Snippet is the description starting at the word of the first match.
	Snippet string
}

// Search returns the operators where every word of the query occurs in the
// label, description, tags or categories. Matching is case-insensitive.
func (c *Catalog) Search(query string) []SearchResult {
	words := strings.Fields(strings.ToLower(query))
	var results []SearchResult
	for _, op := range c.operators {
		if !matchesAll(op, words) {
			continue
		}
		r := SearchResult{Operator: op}
		if len(words) > 0 {
			r.Snippet = SearchSnippet(op.Description, words)
		}
		results = append(results, r)
	}
	return results
}

func matchesAll(op RuleOperator, words []string) bool {
	text := strings.ToLower(strings.Join(append(append([]string{op.Label, op.Description}, op.Tags...), op.Categories...), " "))
	for _, w := range words {
		if !strings.Contains(text, w) {
			return false
		}
	}
	return true
}

// SearchSnippet returns text starting at the beginning of the word containing
// the first match of any search word, or "" when nothing matches. Matching is
// case-insensitive on the original text, so offsets stay valid for runes
// whose lower case form has a different length.
func SearchSnippet(text string, words []string) string {
	first := -1
	for _, w := range words {
		if w == "" {
			continue
		}
		loc := regexp.MustCompile("(?i)" + regexp.QuoteMeta(w)).FindStringIndex(text)
		if loc != nil && (first < 0 || loc[0] < first) {
			first = loc[0]
		}
	}
	if first < 0 {
		return ""
	}
	start := first
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(text[:start])
		if unicode.IsSpace(r) {
			break
		}
		start -= size
	}
	return text[start:]
}
