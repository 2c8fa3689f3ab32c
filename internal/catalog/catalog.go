// Package catalog holds the closed mapping from expense category to its
// allowed sub-categories, plus the set of known submitters.
package catalog

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownCategory is returned when a category is not part of the catalog.
var ErrUnknownCategory = errors.New("unknown category")

// Category is a catalog entry with its ordered sub-categories.
type Category struct {
	Name          string   `yaml:"name"`
	SubCategories []string `yaml:"subcategories"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	users      []string
	misc       string
	categories []Category
	index      map[string]int
}

// New builds a catalog and checks it for empty or duplicate names.
// misc must name one of the categories.
func New(users []string, misc string, categories []Category) (*Catalog, error) {
	c := &Catalog{
		users: slices.Clone(users),
		misc:  misc,
		index: make(map[string]int, len(categories)),
	}
	for _, cat := range categories {
		if cat.Name == "" {
			return nil, errors.New("category with empty name")
		}
		if _, dup := c.index[cat.Name]; dup {
			return nil, fmt.Errorf("duplicate category %q", cat.Name)
		}
		if len(cat.SubCategories) == 0 {
			return nil, fmt.Errorf("category %q has no sub-categories", cat.Name)
		}
		seen := make(map[string]struct{}, len(cat.SubCategories))
		for _, sub := range cat.SubCategories {
			if sub == "" {
				return nil, fmt.Errorf("category %q has an empty sub-category", cat.Name)
			}
			if _, dup := seen[sub]; dup {
				return nil, fmt.Errorf("category %q lists %q twice", cat.Name, sub)
			}
			seen[sub] = struct{}{}
		}
		c.index[cat.Name] = len(c.categories)
		c.categories = append(c.categories, Category{Name: cat.Name, SubCategories: slices.Clone(cat.SubCategories)})
	}
	if len(c.categories) == 0 {
		return nil, errors.New("catalog has no categories")
	}
	if _, ok := c.index[misc]; !ok {
		return nil, fmt.Errorf("miscellaneous category %q is not in the catalog", misc)
	}
	return c, nil
}

// Categories returns category names in catalog order.
func (c *Catalog) Categories() []string {
	out := make([]string, len(c.categories))
	for i, cat := range c.categories {
		out[i] = cat.Name
	}
	return out
}

// SubCategories returns the ordered sub-categories of category.
func (c *Catalog) SubCategories(category string) ([]string, error) {
	i, ok := c.index[category]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return slices.Clone(c.categories[i].SubCategories), nil
}

func (c *Catalog) HasCategory(category string) bool {
	_, ok := c.index[category]
	return ok
}

func (c *Catalog) HasSubCategory(category, subCategory string) bool {
	i, ok := c.index[category]
	if !ok {
		return false
	}
	return slices.Contains(c.categories[i].SubCategories, subCategory)
}

// Miscellaneous is the sentinel category that asks for a free-text description.
func (c *Catalog) Miscellaneous() string {
	return c.misc
}

// Users returns the known submitters.
func (c *Catalog) Users() []string {
	return slices.Clone(c.users)
}

// HasUser reports whether name is a known submitter. An empty user list accepts anyone.
func (c *Catalog) HasUser(name string) bool {
	if len(c.users) == 0 {
		return name != ""
	}
	return slices.Contains(c.users, name)
}
