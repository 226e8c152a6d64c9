package diff

import (
	"github.com/sumandas0/catalog/internal/models"
)

// Kind selects how two values of a field are compared.
type Kind int

const (
	// KindScalar compares with deep equality.
	KindScalar Kind = iota
	// KindOrdered compares sequences element by element; order matters.
	KindOrdered
	// KindSet compares sequences as unordered sets keyed by FieldSpec.SetKey.
	KindSet
	// KindReference compares entity references by target id and type only.
	KindReference
)

// Category drives the version bump a change to the field causes.
type Category int

const (
	CategoryContent Category = iota
	CategoryMetadata
	CategoryStructural
)

func (c Category) String() string {
	switch c {
	case CategoryMetadata:
		return "metadata"
	case CategoryStructural:
		return "structural"
	default:
		return "content"
	}
}

type FieldSpec struct {
	Name     string
	Kind     Kind
	Category Category
	SetKey   string
}

// Schema declares the comparable fields of an entity type, in the order they
// are reported.
type Schema struct {
	EntityType string
	Fields     []FieldSpec
}

func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ReadOnlyFields are derived or server-managed and never produce a change,
// even if a schema lists them.
var ReadOnlyFields = map[string]struct{}{
	"id":                 {},
	"href":               {},
	"fullyQualifiedName": {},
	"version":            {},
	"updatedAt":          {},
	"updatedBy":          {},
	"changeDescription":  {},
}

var PipelineSchema = Schema{
	EntityType: models.EntityTypePipeline,
	Fields: []FieldSpec{
		{Name: "name", Kind: KindScalar, Category: CategoryContent},
		{Name: "displayName", Kind: KindScalar, Category: CategoryContent},
		{Name: "description", Kind: KindScalar, Category: CategoryContent},
		{Name: "pipelineUrl", Kind: KindScalar, Category: CategoryContent},
		{Name: "concurrency", Kind: KindScalar, Category: CategoryContent},
		{Name: "pipelineLocation", Kind: KindScalar, Category: CategoryContent},
		{Name: "startDate", Kind: KindScalar, Category: CategoryContent},
		{Name: "tasks", Kind: KindOrdered, Category: CategoryContent},
		{Name: "service", Kind: KindReference, Category: CategoryContent},
		{Name: "owner", Kind: KindReference, Category: CategoryMetadata},
		{Name: "tags", Kind: KindSet, Category: CategoryMetadata, SetKey: "tagFQN"},
	},
}
