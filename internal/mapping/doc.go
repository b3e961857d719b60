// Package mapping loads entity mapping metadata from CUE files.
//
// Mappings declare entities, their persistent properties, inheritance, and
// relations, plus the audit options for the whole registry:
//
//	entity: Order: {
//		id: "id"
//		properties: ["customer", "total"]
//		relation: items: {
//			target:    "OrderLine"
//			mapped_by: "order"
//		}
//	}
//	options: revision_field: "revtype"
//
// Compilation is strict: unknown relation kinds, map-keyed collections, and
// mapped_by on to-one relations are rejected with source positions. The
// loader hands validated bindings to the meta registry builder, which does
// the cross-entity checks (parent cycles, relation targets, mapped_by
// resolution).
package mapping
