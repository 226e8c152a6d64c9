package core

import (
	"slices"
	"strings"

	"github.com/sumandas0/catalog/internal/models"
	"github.com/sumandas0/catalog/pkg/utils"
)

const (
	FieldOwner   = "owner"
	FieldService = "service"
	FieldTasks   = "tasks"
	FieldTags    = "tags"
)

// SupportedFields is the field mask vocabulary, in display order.
var SupportedFields = []string{FieldOwner, FieldService, FieldTasks, FieldTags}

// relationLoaders clear one optional relation each when the mask leaves it
// out. The service reference has no entry: it is always returned.
var relationLoaders = []struct {
	name  string
	clear func(*models.Pipeline)
}{
	{FieldOwner, func(p *models.Pipeline) { p.Owner = nil }},
	{FieldTasks, func(p *models.Pipeline) { p.Tasks = nil }},
	{FieldTags, func(p *models.Pipeline) { p.Tags = nil }},
}

// Fields is a parsed field mask.
type Fields struct {
	names map[string]struct{}
}

// AllFields requests every relation.
func AllFields() Fields {
	f := Fields{names: make(map[string]struct{}, len(SupportedFields))}
	for _, name := range SupportedFields {
		f.names[name] = struct{}{}
	}
	return f
}

// ParseFields parses a comma separated mask such as "owner,tags". Blank
// entries are ignored; unknown names are rejected.
func ParseFields(raw string) (Fields, error) {
	f := Fields{names: map[string]struct{}{}}
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !slices.Contains(SupportedFields, name) {
			return Fields{}, utils.NewAppError(utils.CodeInvalidInput, "Invalid field name "+name, utils.ErrInvalidInput).
				WithDetail("field", name).
				WithDetail("supported", SupportedFields)
		}
		f.names[name] = struct{}{}
	}
	return f, nil
}

func (f Fields) Has(name string) bool {
	_, ok := f.names[name]
	return ok
}

func (f Fields) String() string {
	var names []string
	for _, name := range SupportedFields {
		if f.Has(name) {
			names = append(names, name)
		}
	}
	return strings.Join(names, ",")
}

// Apply returns a copy of p with every relation outside the mask cleared.
func (f Fields) Apply(p *models.Pipeline) *models.Pipeline {
	out := p.Clone()
	if out == nil {
		return nil
	}
	for _, loader := range relationLoaders {
		if !f.Has(loader.name) {
			loader.clear(out)
		}
	}
	return out
}
