package mapping

import (
	"fmt"

	"github.com/revlog/revlog/internal/meta"
)

// Identifiable is implemented by live objects that expose their own
// identity. The default mapper checks it before falling back to map access.
type Identifiable interface {
	EntityID() string
}

// defaultIDMapper builds the identity resolver wired into CUE-loaded
// bindings: Identifiable objects answer directly; plain map objects (the
// shape scenario files decode to) are read through the id property.
func defaultIDMapper(entityName, idProperty string) meta.IDMapperFunc {
	return func(obj any) (string, error) {
		switch o := obj.(type) {
		case nil:
			return "", fmt.Errorf("%s: cannot map nil object to id", entityName)

		case Identifiable:
			return o.EntityID(), nil

		case map[string]any:
			raw, ok := o[idProperty]
			if !ok {
				return "", fmt.Errorf("%s: object has no %q property", entityName, idProperty)
			}
			switch id := raw.(type) {
			case string:
				return id, nil
			case int:
				return fmt.Sprintf("%d", id), nil
			case int64:
				return fmt.Sprintf("%d", id), nil
			default:
				return "", fmt.Errorf("%s: %q property has unsupported type %T", entityName, idProperty, raw)
			}

		default:
			return "", fmt.Errorf("%s: cannot map %T to id", entityName, obj)
		}
	}
}
