// Package migrate converts stored and imported payloads, including the
// legacy shapes written by older releases, into the canonical collection.
//
// Three shapes are accepted:
//
//	{"lists": {...}, "listOrder": [...]}   current (also "order")
//	{"lists": {...}}                       no explicit order
//	{"Name": [...], ...}                   bare mapping, oldest
//
// When no order is stored it is rebuilt from the key order of the lists
// object as it appears in the document. That is best effort only: data that
// passed through a serializer which sorts or shuffles keys cannot recover the
// user's original order.
package migrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/bunchhieng/gdaes/internal/model"
)

// Normalize parses raw JSON into a canonical collection. It fails with
// model.ErrFormat only when raw is not a JSON object or a list entry is not
// an array of links.
func Normalize(raw []byte) (model.Collection, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil || top == nil {
		return model.Collection{}, fmt.Errorf("%w: expected a JSON object", model.ErrFormat)
	}

	listsRaw, wrapped := top["lists"]
	if wrapped && !isObject(listsRaw) {
		// A list literally named "lists" holds an array, so this is a bare mapping.
		wrapped = false
	}

	if !wrapped {
		names, lists, err := decodeLists(raw)
		if err != nil {
			return model.Collection{}, err
		}
		return model.Collection{Lists: lists, Order: names}, nil
	}

	names, lists, err := decodeLists(listsRaw)
	if err != nil {
		return model.Collection{}, err
	}

	order := decodeOrder(top["listOrder"])
	if order == nil {
		order = decodeOrder(top["order"])
	}

	return model.Collection{
		Lists: lists,
		Order: repairOrder(order, names, lists),
	}, nil
}

// NormalizeMapping parses raw as a bare name -> links mapping without
// looking for the wrapper shape. Legacy mirror and export data use it.
func NormalizeMapping(raw []byte) (model.Collection, error) {
	names, lists, err := decodeLists(raw)
	if err != nil {
		return model.Collection{}, err
	}
	return model.Collection{Lists: lists, Order: names}, nil
}

// Repair applies the same order repair as Normalize to an in-memory value:
// unknown and duplicate names are dropped, lists missing from the order are
// appended in name order, and nil lists become empty.
func Repair(c model.Collection) model.Collection {
	lists := make(map[string]model.List, len(c.Lists))
	names := make([]string, 0, len(c.Lists))
	for name, links := range c.Lists {
		if links == nil {
			links = model.List{}
		}
		lists[name] = links.Clone()
		names = append(names, name)
	}
	sort.Strings(names)
	return model.Collection{
		Lists: lists,
		Order: repairOrder(c.Order, names, lists),
	}
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// decodeLists reads an object of name -> links, returning the names in
// document order.
func decodeLists(raw json.RawMessage) ([]string, map[string]model.List, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrFormat, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("%w: lists must be an object", model.ErrFormat)
	}

	names := []string{}
	lists := make(map[string]model.List)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", model.ErrFormat, err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("%w: unexpected token %v", model.ErrFormat, tok)
		}

		var links model.List
		if err := dec.Decode(&links); err != nil {
			return nil, nil, fmt.Errorf("%w: list %q: %v", model.ErrFormat, name, err)
		}
		if links == nil {
			links = model.List{}
		}
		if _, dup := lists[name]; !dup {
			names = append(names, name)
		}
		lists[name] = links
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", model.ErrFormat, err)
	}

	return names, lists, nil
}

// decodeOrder returns nil when raw is absent or not an array of strings.
func decodeOrder(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var order []string
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil
	}
	return order
}

func repairOrder(order, names []string, lists map[string]model.List) []string {
	out := make([]string, 0, len(lists))
	seen := make(map[string]bool, len(lists))
	for _, name := range order {
		if _, ok := lists[name]; !ok || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, name := range names {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
