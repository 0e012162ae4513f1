package gql

import (
	"fmt"
	"strings"

	lc "github.com/os2mo/loracache"
)

const orgQuery = `query Org { org { uuid } }`

// Intermediate fields, removed before a snapshot is stored.
const (
	rawScope = "_scope"
	rawValue = "_value"
	rawName  = "_name"
)

// kindSpec describes the collection queried for one kind and its mapping.
type kindSpec struct {
	kind       lc.Kind
	collection string
	selection  string
	mapping    lc.Mapping
	finish     func(c *Cache, s lc.Snapshot) (lc.Snapshot, error)
}

// query renders the paginated document. The history variant filters the
// validities by the window; actual state leaves the dates to the server.
func (k kindSpec) query(history bool) string {
	params := "$limit: int, $cursor: Cursor"
	args := "limit: $limit, cursor: $cursor"
	if history {
		params += ", $from_date: DateTime, $to_date: DateTime"
		args += ", filter: {from_date: $from_date, to_date: $to_date}"
	}

	return fmt.Sprintf(`query Page(%s) {
  page: %s(%s) {
    objects {
      uuid
      validities {
        %s
        validity { from to }
      }
    }
    page_info { next_cursor }
  }
}`, params, k.collection, args, strings.Join(strings.Fields(k.selection), "\n        "))
}

func field(target, path string) lc.Field {
	return lc.Field{Target: target, Path: path}
}

func extensionFields() ([]lc.Field, string) {
	fields := make([]lc.Field, 0, 10)
	names := make([]string, 0, 10)
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("extension_%d", i)
		fields = append(fields, field(name, name))
		names = append(names, name)
	}

	return fields, strings.Join(names, " ")
}

var kindSpecs = buildKindSpecs()

func buildKindSpecs() map[lc.Kind]kindSpec {
	extFields, extSelection := extensionFields()

	specs := map[lc.Kind]kindSpec{
		lc.KindFacet: {
			collection: "facets",
			selection:  "user_key",
			mapping:    lc.Mapping{Fields: []lc.Field{field("user_key", "user_key")}},
		},
		lc.KindClass: {
			collection: "classes",
			selection:  "user_key name scope facet_uuid",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("user_key", "user_key"),
				field("title", "name"),
				field("scope", "scope"),
				field("facet", "facet_uuid"),
			}},
		},
		lc.KindUser: {
			collection: "employees",
			selection:  "user_key given_name surname nickname_given_name nickname_surname cpr_number",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("user_key", "user_key"),
				field("given_name", "given_name"),
				field("surname", "surname"),
				field("nickname_given_name", "nickname_given_name"),
				field("nickname_surname", "nickname_surname"),
				field("cpr", "cpr_number"),
			}},
		},
		lc.KindUnit: {
			collection: "org_units",
			selection:  "user_key name unit_type_uuid org_unit_level_uuid org_unit_hierarchy parent_uuid",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("user_key", "user_key"),
				field("name", "name"),
				field("unit_type", "unit_type_uuid"),
				field("level", "org_unit_level_uuid"),
				field("org_unit_hierarchy", "org_unit_hierarchy"),
				field("parent", "parent_uuid"),
			}},
			finish: finishUnit,
		},
		lc.KindEngagement: {
			collection: "engagements",
			selection:  "user_key employee_uuid org_unit_uuid engagement_type_uuid primary_uuid job_function_uuid fraction is_primary " + extSelection,
			mapping: lc.Mapping{Fields: append([]lc.Field{
				field("user_key", "user_key"),
				field("user", "employee_uuid"),
				field("unit", "org_unit_uuid"),
				field("engagement_type", "engagement_type_uuid"),
				field("primary_type", "primary_uuid"),
				field("job_function", "job_function_uuid"),
				{Target: "fraction", Path: "fraction", Type: lc.TypeInt},
				{Target: lc.FieldPrimaryBoolean, Path: "is_primary", Type: lc.TypeBool},
			}, extFields...)},
		},
		lc.KindAddress: {
			collection: "addresses",
			selection:  "value name employee_uuid org_unit_uuid address_type_uuid visibility_uuid address_type { scope }",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("user", "employee_uuid"),
				field("unit", "org_unit_uuid"),
				field("adresse_type", "address_type_uuid"),
				field("visibility", "visibility_uuid"),
				field(rawScope, "address_type.scope"),
				field(rawValue, "value"),
				field(rawName, "name"),
			}},
			finish: finishAddress,
		},
		lc.KindManager: {
			collection: "managers",
			selection:  "user_key employee_uuid org_unit_uuid manager_type_uuid manager_level_uuid responsibility_uuids",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("user_key", "user_key"),
				field("user", "employee_uuid"),
				field("unit", "org_unit_uuid"),
				field("manager_type", "manager_type_uuid"),
				field("manager_level", "manager_level_uuid"),
				{Target: "manager_responsibility", Path: "responsibility_uuids", Type: lc.TypeStrings},
			}},
		},
		lc.KindAssociation: {
			collection: "associations",
			selection:  "user_key employee_uuid org_unit_uuid association_type_uuid it_user_uuid job_function_uuid primary_uuid dynamic_class_uuid",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("user_key", "user_key"),
				field("user", "employee_uuid"),
				field("unit", "org_unit_uuid"),
				field("association_type", "association_type_uuid"),
				field("it_user", "it_user_uuid"),
				field("job_function", "job_function_uuid"),
				field("primary_type", "primary_uuid"),
				field("dynamic_class", "dynamic_class_uuid"),
			}},
		},
		lc.KindLeave: {
			collection: "leaves",
			selection:  "user_key employee_uuid leave_type_uuid engagement_uuid",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("user_key", "user_key"),
				field("user", "employee_uuid"),
				field("leave_type", "leave_type_uuid"),
				field("engagement", "engagement_uuid"),
			}},
		},
		lc.KindRole: {
			collection: "roles",
			selection:  "employee_uuid org_unit_uuid role_type_uuid",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("user", "employee_uuid"),
				field("unit", "org_unit_uuid"),
				field("role_type", "role_type_uuid"),
			}},
		},
		lc.KindITSystem: {
			collection: "itsystems",
			selection:  "user_key name",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("user_key", "user_key"),
				field("name", "name"),
			}},
		},
		lc.KindITConnection: {
			collection: "itusers",
			selection:  "user_key employee_uuid org_unit_uuid itsystem_uuid primary_uuid",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("username", "user_key"),
				field("user", "employee_uuid"),
				field("unit", "org_unit_uuid"),
				field("itsystem", "itsystem_uuid"),
				field("primary_type", "primary_uuid"),
			}},
			finish: finishOwned,
		},
		lc.KindKLE: {
			collection: "kles",
			selection:  "user_key org_unit_uuid kle_number_uuid kle_aspect_uuids",
			mapping: lc.Mapping{
				Fields: []lc.Field{
					field("user_key", "user_key"),
					field("unit", "org_unit_uuid"),
					field("kle_number", "kle_number_uuid"),
					{Target: "kle_aspect", Path: "kle_aspect_uuids", Type: lc.TypeStrings},
				},
				Expand: "kle_aspect",
			},
		},
		lc.KindRelatedUnit: {
			collection: "related_units",
			selection:  "org_unit_uuids",
			mapping: lc.Mapping{Fields: []lc.Field{
				field("unit1_uuid", "org_unit_uuids.0"),
				field("unit2_uuid", "org_unit_uuids.1"),
			}},
		},
	}

	for kind, spec := range specs {
		spec.kind = kind
		spec.mapping.Kind = kind
		specs[kind] = spec
	}

	return specs
}
