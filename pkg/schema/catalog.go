package schema

// DefaultCatalog returns the reference tables the admin grid manages out of
// the box. Every table carries the same backbone: a unique machine code, a
// translatable display name and a soft-delete flag. Tables that classify
// another table add a foreign-key column resolved through that table's
// lookup.
func DefaultCatalog() []TableDef {
	base := func(name string) TableDef {
		return TableDef{
			Name: name,
			Columns: []Column{
				{Key: "code", Kind: KindText, Sortable: true, Filterable: true, Editable: true, Required: true},
				{Key: "name", Kind: KindText, Sortable: true, Filterable: true, Editable: true, Required: true, Translatable: true},
				{Key: "is_active", Kind: KindBool, Sortable: true, Filterable: true},
			},
		}
	}
	withFK := func(def TableDef, key, lookup string) TableDef {
		def.Columns = append(def.Columns, Column{
			Key: key, Kind: KindID, Sortable: true, Filterable: true,
			Editable: true, Required: true, Lookup: lookup,
		})
		return def
	}

	return []TableDef{
		base("countries"),
		base("address_types"),
		base("document_categories"),
		withFK(base("document_types"), "category_id", "document_categories"),
		base("object_types"),
		withFK(base("object_relation_types"), "object_type_id", "object_types"),
	}
}
