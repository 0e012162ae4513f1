package lora

import (
	"fmt"
	"net/url"

	lc "github.com/os2mo/loracache"
)

const (
	funktionEgenskaber = "organisationfunktionegenskaber"
	funktionUdvidelser = "organisationfunktionudvidelser"
	funktionGyldighed  = "organisationfunktiongyldighed"
)

func attr(target, section, name string) lc.Field {
	return lc.Field{Target: target, Path: "attributter." + section + ".0." + name}
}

func rel(target, name string) lc.Field {
	return lc.Field{Target: target, Path: "relationer." + name, First: true, Key: "uuid"}
}

// task picks the first opgaver entry of one object type.
func task(target, objekttype string) lc.Field {
	return lc.Field{Target: target, Path: opgaver(objekttype), First: true, Key: "uuid"}
}

func tasks(target, objekttype string) lc.Field {
	return lc.Field{Target: target, Path: opgaver(objekttype), Key: "uuid", Type: lc.TypeStrings}
}

func opgaver(objekttype string) string {
	return fmt.Sprintf(`relationer.opgaver.#(objekttype=="%s")#`, objekttype)
}

// kindSpec describes how one kind is queried from the registry and mapped.
type kindSpec struct {
	kind          lc.Kind
	path          string
	funktionsnavn string
	validityState string
	mapping       lc.Mapping
	// finish post-processes a mapped snapshot; a nil snapshot drops it.
	finish func(c *Cache, s lc.Snapshot) (lc.Snapshot, error)
}

func (k kindSpec) params() url.Values {
	params := url.Values{}
	if k.funktionsnavn != "" {
		params.Set("funktionsnavn", k.funktionsnavn)
	}

	return params
}

func extensions() []lc.Field {
	out := make([]lc.Field, 0, 10)
	for i := 1; i <= 10; i++ {
		out = append(out, attr(fmt.Sprintf("extension_%d", i), funktionUdvidelser, fmt.Sprintf("udvidelse_%d", i)))
	}

	return out
}

var kindSpecs = map[lc.Kind]kindSpec{
	lc.KindFacet: {
		path:          "klassifikation/facet",
		validityState: "facetpubliceret",
		mapping: lc.Mapping{Fields: []lc.Field{
			attr("user_key", "facetegenskaber", "brugervendtnoegle"),
		}},
	},
	lc.KindClass: {
		path:          "klassifikation/klasse",
		validityState: "klassepubliceret",
		mapping: lc.Mapping{Fields: []lc.Field{
			attr("user_key", "klasseegenskaber", "brugervendtnoegle"),
			attr("title", "klasseegenskaber", "titel"),
			attr("scope", "klasseegenskaber", "omfang"),
			rel("facet", "facet"),
		}},
	},
	lc.KindUser: {
		path:          "organisation/bruger",
		validityState: "brugergyldighed",
		mapping: lc.Mapping{Fields: []lc.Field{
			attr("user_key", "brugeregenskaber", "brugervendtnoegle"),
			attr("given_name", "brugerudvidelser", "fornavn"),
			attr("surname", "brugerudvidelser", "efternavn"),
			attr("nickname_given_name", "brugerudvidelser", "kaldenavn_fornavn"),
			attr("nickname_surname", "brugerudvidelser", "kaldenavn_efternavn"),
			{Target: "cpr", Path: "relationer.tilknyttedepersoner", First: true, Key: "urn", TrimPrefix: "urn:dk:cpr:person:"},
		}},
	},
	lc.KindUnit: {
		path:          "organisation/organisationenhed",
		validityState: "organisationenhedgyldighed",
		mapping: lc.Mapping{Fields: []lc.Field{
			attr("user_key", "organisationenhedegenskaber", "brugervendtnoegle"),
			attr("name", "organisationenhedegenskaber", "enhedsnavn"),
			rel("unit_type", "enhedstype"),
			rel("level", "niveau"),
			rel("org_unit_hierarchy", "opmærkning"),
			rel("parent", "overordnet"),
		}},
		finish: finishUnit,
	},
	lc.KindEngagement: {
		path:          "organisation/organisationfunktion",
		funktionsnavn: "Engagement",
		validityState: funktionGyldighed,
		mapping: lc.Mapping{Fields: append([]lc.Field{
			attr("user_key", funktionEgenskaber, "brugervendtnoegle"),
			rel("user", "tilknyttedebrugere"),
			rel("unit", "tilknyttedeenheder"),
			rel("engagement_type", "organisatoriskfunktionstype"),
			rel("primary_type", "primær"),
			task("job_function", "stillingsbetegnelse"),
			{Target: "fraction", Path: "attributter." + funktionUdvidelser + ".0.fraktion", Type: lc.TypeInt},
		}, extensions()...)},
	},
	lc.KindAddress: {
		path:          "organisation/organisationfunktion",
		funktionsnavn: "Adresse",
		validityState: funktionGyldighed,
		mapping: lc.Mapping{Fields: []lc.Field{
			rel("user", "tilknyttedebrugere"),
			rel("unit", "tilknyttedeenheder"),
			rel("adresse_type", "organisatoriskfunktionstype"),
			task("visibility", "synlighed"),
			{Target: rawURN, Path: "relationer.adresser", First: true, Key: "urn"},
			{Target: rawObjectType, Path: "relationer.adresser", First: true, Key: "objekttype"},
			rel(rawDAR, "adresser"),
		}},
		finish: finishAddress,
	},
	lc.KindManager: {
		path:          "organisation/organisationfunktion",
		funktionsnavn: "Leder",
		validityState: funktionGyldighed,
		mapping: lc.Mapping{Fields: []lc.Field{
			attr("user_key", funktionEgenskaber, "brugervendtnoegle"),
			rel("user", "tilknyttedebrugere"),
			rel("unit", "tilknyttedeenheder"),
			rel("manager_type", "organisatoriskfunktionstype"),
			task("manager_level", "lederniveau"),
			tasks("manager_responsibility", "lederansvar"),
		}},
	},
	lc.KindAssociation: {
		path:          "organisation/organisationfunktion",
		funktionsnavn: "Tilknytning",
		validityState: funktionGyldighed,
		mapping: lc.Mapping{Fields: []lc.Field{
			attr("user_key", funktionEgenskaber, "brugervendtnoegle"),
			rel("user", "tilknyttedebrugere"),
			rel("unit", "tilknyttedeenheder"),
			rel("association_type", "organisatoriskfunktionstype"),
			rel("it_user", "tilknyttedefunktioner"),
			task("job_function", "stillingsbetegnelse"),
			rel("primary_type", "primær"),
			rel("dynamic_class", "tilknyttedeklasser"),
		}},
	},
	lc.KindLeave: {
		path:          "organisation/organisationfunktion",
		funktionsnavn: "Orlov",
		validityState: funktionGyldighed,
		mapping: lc.Mapping{Fields: []lc.Field{
			attr("user_key", funktionEgenskaber, "brugervendtnoegle"),
			rel("user", "tilknyttedebrugere"),
			rel("leave_type", "organisatoriskfunktionstype"),
			rel("engagement", "tilknyttedefunktioner"),
		}},
	},
	lc.KindRole: {
		path:          "organisation/organisationfunktion",
		funktionsnavn: "Rolle",
		validityState: funktionGyldighed,
		mapping: lc.Mapping{Fields: []lc.Field{
			rel("user", "tilknyttedebrugere"),
			rel("unit", "tilknyttedeenheder"),
			rel("role_type", "organisatoriskfunktionstype"),
		}},
	},
	lc.KindITSystem: {
		path:          "organisation/itsystem",
		validityState: "itsystemgyldighed",
		mapping: lc.Mapping{Fields: []lc.Field{
			attr("user_key", "itsystemegenskaber", "brugervendtnoegle"),
			attr("name", "itsystemegenskaber", "itsystemnavn"),
		}},
	},
	lc.KindITConnection: {
		path:          "organisation/organisationfunktion",
		funktionsnavn: "IT-system",
		validityState: funktionGyldighed,
		mapping: lc.Mapping{Fields: []lc.Field{
			attr("username", funktionEgenskaber, "brugervendtnoegle"),
			rel("user", "tilknyttedebrugere"),
			rel("unit", "tilknyttedeenheder"),
			rel("itsystem", "tilknyttedeitsystemer"),
			rel("primary_type", "primær"),
		}},
		finish: finishOwned,
	},
	lc.KindKLE: {
		path:          "organisation/organisationfunktion",
		funktionsnavn: "KLE",
		validityState: funktionGyldighed,
		mapping: lc.Mapping{
			Fields: []lc.Field{
				attr("user_key", funktionEgenskaber, "brugervendtnoegle"),
				rel("unit", "tilknyttedeenheder"),
				task("kle_number", "klasse"),
				tasks("kle_aspect", "aspekt"),
			},
			Expand: "kle_aspect",
		},
	},
	lc.KindRelatedUnit: {
		path:          "organisation/organisationfunktion",
		funktionsnavn: "Relateret Enhed",
		validityState: funktionGyldighed,
		mapping: lc.Mapping{Fields: []lc.Field{
			{Target: "unit1_uuid", Path: "relationer.tilknyttedeenheder.0.uuid"},
			{Target: "unit2_uuid", Path: "relationer.tilknyttedeenheder.1.uuid"},
		}},
	},
}

func init() {
	for kind, spec := range kindSpecs {
		spec.kind = kind
		spec.mapping.Kind = kind
		kindSpecs[kind] = spec
	}
}
