package gesture

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownLabel is returned for class indices outside the label table.
const UnknownLabel = "?"

// DefaultLabels is the supported alphabet, in class index order.
var DefaultLabels = []string{"A", "B", "C", "D", "E", "F"}

// LabelTable maps 1-based classifier class indices to sign symbols.
// It is built once at startup and only read afterwards.
type LabelTable struct {
	byIndex  map[int]string
	bySymbol map[string]int
}

// NewLabelTable builds a table assigning symbols[i] to class index i+1.
func NewLabelTable(symbols []string) (LabelTable, error) {
	t := LabelTable{
		byIndex:  make(map[int]string, len(symbols)),
		bySymbol: make(map[string]int, len(symbols)),
	}
	for i, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			return LabelTable{}, fmt.Errorf("label %d is empty", i+1)
		}
		if _, dup := t.bySymbol[s]; dup {
			return LabelTable{}, fmt.Errorf("duplicate label %q", s)
		}
		t.byIndex[i+1] = s
		t.bySymbol[s] = i + 1
	}
	return t, nil
}

// ParseLabelTable builds a table from a comma-separated symbol list, e.g. "A,B,C".
func ParseLabelTable(list string) (LabelTable, error) {
	if strings.TrimSpace(list) == "" {
		return LabelTable{}, fmt.Errorf("empty label list")
	}
	return NewLabelTable(strings.Split(list, ","))
}

// Lookup returns the symbol for a 1-based class index, or UnknownLabel.
func (t LabelTable) Lookup(index int) string {
	if s, ok := t.byIndex[index]; ok {
		return s
	}
	return UnknownLabel
}

// Index returns the 1-based class index of a symbol.
func (t LabelTable) Index(symbol string) (int, bool) {
	i, ok := t.bySymbol[symbol]
	return i, ok
}

// Len returns the number of classes in the table.
func (t LabelTable) Len() int {
	return len(t.byIndex)
}

// Symbols returns the symbols ordered by class index.
func (t LabelTable) Symbols() []string {
	indexes := make([]int, 0, len(t.byIndex))
	for i := range t.byIndex {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	out := make([]string, len(indexes))
	for i, idx := range indexes {
		out[i] = t.byIndex[idx]
	}
	return out
}
