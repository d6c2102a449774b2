package btf

import (
	"regexp"
	"slices"
)

// IDsByRegex returns the ids of all types whose name matches re, base
// ids first. Within each blob ids are in ascending order. An empty
// result is not an error.
func (b *Btf) IDsByRegex(re *regexp.Regexp) ([]TypeID, error) {
	var ids []TypeID
	if b.base != nil {
		ids = append(ids, matchIDs(b.base.obj, re)...)
	}
	ids = append(ids, matchIDs(b.obj, re)...)
	return ids, nil
}

// TypesByRegex returns all types whose name matches re, base types
// first. An empty result is not an error.
func (b *Btf) TypesByRegex(re *regexp.Regexp) ([]Type, error) {
	ids, err := b.IDsByRegex(re)
	if err != nil {
		return nil, err
	}

	types := make([]Type, 0, len(ids))
	for _, id := range ids {
		typ, err := b.TypeByID(id)
		if err != nil {
			return nil, err
		}
		types = append(types, typ)
	}
	return types, nil
}

// IDsByRegex returns all ids whose name matches re across the
// collection, base matches first.
func (c *Collection) IDsByRegex(re *regexp.Regexp) ([]IDMatch, error) {
	var matches []IDMatch

	for _, id := range matchIDs(c.base.obj, re) {
		matches = append(matches, IDMatch{Btf: &c.base, ID: id})
	}

	for i := range c.split {
		split := &c.split[i]
		for _, id := range matchIDs(split.obj, re) {
			matches = append(matches, IDMatch{Btf: split, ID: id})
		}
	}

	return matches, nil
}

// TypesByRegex returns all types whose name matches re across the
// collection, base matches first.
func (c *Collection) TypesByRegex(re *regexp.Regexp) ([]TypeMatch, error) {
	ids, err := c.IDsByRegex(re)
	if err != nil {
		return nil, err
	}

	matches := make([]TypeMatch, 0, len(ids))
	for _, m := range ids {
		typ, err := m.Btf.TypeByID(m.ID)
		if err != nil {
			return nil, err
		}
		matches = append(matches, TypeMatch{Btf: m.Btf, Type: typ})
	}
	return matches, nil
}

// matchIDs scans a blob's name index. The index iterates in map order,
// so the collected ids are sorted to keep results deterministic.
func matchIDs(obj backend, re *regexp.Regexp) []TypeID {
	var ids []TypeID
	obj.names(func(name string, owners []TypeID) bool {
		if re.MatchString(name) {
			ids = append(ids, owners...)
		}
		return true
	})
	slices.Sort(ids)
	return ids
}
