// Package catalog holds the fixed set of master-data tables and the integrity
// checks run against each of them.
//
// A check is a query whose non-empty result set means the table violates the
// rule the check is named after.
package catalog

import "fmt"

type Check struct {
	Name  string `json:"name"`
	Query string `json:"query"`
}

type TableSpec struct {
	Name      string  `json:"name"`
	FullQuery string  `json:"full_query"`
	Checks    []Check `json:"checks"`
}

// Permitted values of usuario.sexo.
var SexoDomain = []string{"Masculino", "Femenino", "Intersexual", "No especificado"}

var masterData = []TableSpec{
	{
		Name:      "usuario",
		FullQuery: "SELECT * FROM usuario;",
		Checks: []Check{
			{
				Name:  "documento_id uniqueness",
				Query: "SELECT documento_id, COUNT(*) FROM usuario GROUP BY documento_id HAVING COUNT(*) > 1;",
			},
			{
				Name:  "sexo domain",
				Query: "SELECT DISTINCT sexo FROM usuario WHERE sexo NOT IN ('Masculino','Femenino','Intersexual','No especificado');",
			},
		},
	},
	{
		Name:      "atencion",
		FullQuery: "SELECT * FROM atencion;",
		Checks: []Check{
			{
				Name:  "FK usuario",
				Query: "SELECT a.documento_id FROM atencion a LEFT JOIN usuario u ON a.documento_id=u.documento_id WHERE u.documento_id IS NULL;",
			},
		},
	},
	{
		Name:      "diagnostico",
		FullQuery: "SELECT * FROM diagnostico;",
		Checks:    []Check{orphanAtencion("diagnostico", "d")},
	},
	{
		Name:      "tecnologia_salud",
		FullQuery: "SELECT * FROM tecnologia_salud;",
		Checks:    []Check{orphanAtencion("tecnologia_salud", "t")},
	},
	{
		Name:      "egreso",
		FullQuery: "SELECT * FROM egreso;",
		Checks:    []Check{orphanAtencion("egreso", "e")},
	},
}

func orphanAtencion(table, alias string) Check {
	return Check{
		Name: "FK atencion",
		Query: fmt.Sprintf(
			"SELECT %[2]s.atencion_id FROM %[1]s %[2]s LEFT JOIN atencion a ON %[2]s.atencion_id=a.atencion_id WHERE a.atencion_id IS NULL;",
			table, alias,
		),
	}
}

// MasterData returns the validated tables in report order. The returned slice
// is a copy and may be modified by the caller.
func MasterData() []TableSpec {
	tables := make([]TableSpec, len(masterData))
	for i, t := range masterData {
		t.Checks = append([]Check(nil), t.Checks...)
		tables[i] = t
	}
	return tables
}

// Names returns the table names in report order.
func Names() []string {
	names := make([]string, 0, len(masterData))
	for _, t := range masterData {
		names = append(names, t.Name)
	}
	return names
}

// Lookup returns the spec of the named table.
func Lookup(name string) (TableSpec, bool) {
	for _, t := range MasterData() {
		if t.Name == name {
			return t, true
		}
	}
	return TableSpec{}, false
}

// Select returns the named tables in report order, or every table when names
// is empty.
func Select(names []string) ([]TableSpec, error) {
	if len(names) == 0 {
		return MasterData(), nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := Lookup(name); !ok {
			return nil, fmt.Errorf("unknown table %q (expected one of %v)", name, Names())
		}
		wanted[name] = true
	}

	var tables []TableSpec
	for _, t := range MasterData() {
		if wanted[t.Name] {
			tables = append(tables, t)
		}
	}
	return tables, nil
}
