package domain

import "fmt"

// EntityTag identifies one of the catalog entity kinds.
type EntityTag string

// Catalog entity kinds.
const (
	EntityDataset EntityTag = "dataset"
	EntityTask    EntityTag = "task"
	EntityFlow    EntityTag = "flow"
	EntityRun     EntityTag = "run"
	EntityMeasure EntityTag = "measure"
	EntityUser    EntityTag = "user"
)

// Entities lists every entity kind in display order.
var Entities = []EntityTag{
	EntityDataset, EntityTask, EntityFlow, EntityRun, EntityMeasure, EntityUser,
}

// ParseEntity validates an entity tag.
func ParseEntity(s string) (EntityTag, error) {
	for _, e := range Entities {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
}

func (e EntityTag) String() string { return string(e) }
