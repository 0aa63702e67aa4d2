package routes

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableIsValid(t *testing.T) {
	require.NoError(t, Default.Validate())

	r, ok := Default.Lookup("/dni")
	require.True(t, ok)
	assert.Equal(t, []string{"dni"}, r.Parameters())

	_, ok = Default.Lookup("/nope")
	assert.False(t, ok)
}

func TestBindSingle(t *testing.T) {
	r := Route{Path: "/dni", Upstream: "/dni", Required: []string{"dni"}}

	req, err := r.Bind(url.Values{"dni": {"12345678"}, "extra": {"x"}})
	require.NoError(t, err)
	assert.Equal(t, "/dni", req.Route)
	assert.Equal(t, "dni", req.ParamName)
	assert.Equal(t, "12345678", req.ParamValue)
	assert.Equal(t, url.Values{"dni": {"12345678"}}, req.Params)
}

func TestBindComposite(t *testing.T) {
	r := Route{Path: "/dni/nombres", Upstream: "/dni/nombres", Required: []string{"nombres", "ape_paterno", "ape_materno"}}

	req, err := r.Bind(url.Values{"ape_materno": {"DIAZ"}, "nombres": {"ANA"}, "ape_paterno": {"PEREZ"}})
	require.NoError(t, err)
	assert.Equal(t, "nombres_ape_paterno_ape_materno", req.ParamName)
	assert.Equal(t, "ANA_PEREZ_DIAZ", req.ParamValue)
	assert.Equal(t, "PEREZ", req.Params.Get("ape_paterno"))
	assert.Len(t, req.Params, 3)
}

func TestBindOneOf(t *testing.T) {
	r := Route{Path: "/licencia", Upstream: "/licencia", OneOf: []string{"dni", "licencia"}}

	req, err := r.Bind(url.Values{"licencia": {"Q123"}})
	require.NoError(t, err)
	assert.Equal(t, "licencia", req.ParamName)
	assert.Equal(t, "Q123", req.ParamValue)

	req, err = r.Bind(url.Values{"licencia": {"Q123"}, "dni": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "dni", req.ParamName, "first declared parameter wins")
	assert.Equal(t, url.Values{"dni": {"1"}}, req.Params)

	_, err = r.Bind(url.Values{})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"dni", "licencia"}, verr.Params)
	assert.Contains(t, verr.Message, "dni, licencia")
}

func TestBindMissing(t *testing.T) {
	tests := []struct {
		name    string
		route   Route
		query   url.Values
		params  []string
		message string
	}{
		{
			name:    "absent",
			route:   Route{Path: "/dni", Required: []string{"dni"}},
			query:   url.Values{},
			params:  []string{"dni"},
			message: "El parámetro dni es requerido",
		},
		{
			name:    "blank",
			route:   Route{Path: "/dni", Required: []string{"dni"}},
			query:   url.Values{"dni": {"  "}},
			params:  []string{"dni"},
			message: "El parámetro dni es requerido",
		},
		{
			name:    "several",
			route:   Route{Path: "/dni/nombres", Required: []string{"nombres", "ape_paterno", "ape_materno"}},
			query:   url.Values{"nombres": {"ANA"}},
			params:  []string{"ape_paterno", "ape_materno"},
			message: "Los parámetros ape_paterno, ape_materno son requeridos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.route.Bind(tt.query)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.params, verr.Params)
			assert.Equal(t, tt.message, verr.Error())
		})
	}
}

func TestValidate(t *testing.T) {
	ok := Route{Path: "/dni", Upstream: "/dni", Required: []string{"dni"}}

	tests := []struct {
		name  string
		table Table
		err   string
	}{
		{name: "empty", table: Table{}, err: "table is empty"},
		{name: "no slash", table: Table{{Path: "dni", Upstream: "/dni", Required: []string{"dni"}}}, err: "must start with /"},
		{name: "root", table: Table{{Path: "/", Upstream: "/", Required: []string{"dni"}}}, err: "must start with /"},
		{name: "reserved", table: Table{{Path: "/metrics", Upstream: "/m", Required: []string{"x"}}}, err: "reserved"},
		{name: "admin", table: Table{{Path: "/admin/cache", Upstream: "/m", Required: []string{"x"}}}, err: "reserved"},
		{name: "no upstream", table: Table{{Path: "/dni", Required: []string{"dni"}}}, err: "upstream path is required"},
		{name: "no params", table: Table{{Path: "/dni", Upstream: "/dni"}}, err: "exactly one of"},
		{name: "both", table: Table{{Path: "/dni", Upstream: "/dni", Required: []string{"a"}, OneOf: []string{"b"}}}, err: "exactly one of"},
		{name: "blank param", table: Table{{Path: "/dni", Upstream: "/dni", Required: []string{" "}}}, err: "empty parameter"},
		{name: "duplicate", table: Table{ok, ok}, err: "duplicate path /dni"},
		{
			name:  "prefix collision",
			table: Table{{Path: "/a/b", Upstream: "/x", Required: []string{"p"}}, {Path: "/a_b", Upstream: "/y", Required: []string{"p"}}},
			err:   "share storage prefix consultas/a_b/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorContains(t, tt.table.Validate(), tt.err)
		})
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "routes.yaml", `
routes:
  - path: /dni
    upstream: /v1/dni
    required: [dni]
  - path: /licencia
    one_of: [dni, licencia]
`)

	table, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, Route{Path: "/dni", Upstream: "/v1/dni", Required: []string{"dni"}}, table[0])
	assert.Equal(t, "/licencia", table[1].Upstream)
	assert.Equal(t, []string{"dni", "licencia"}, table[1].OneOf)
}

func TestLoadFileJSONAndTOML(t *testing.T) {
	table, err := LoadFile(writeFile(t, "routes.json", `{"routes":[{"path":"/ruc","required":["ruc"]}]}`))
	require.NoError(t, err)
	assert.Equal(t, Table{{Path: "/ruc", Upstream: "/ruc", Required: []string{"ruc"}}}, table)

	table, err = LoadFile(writeFile(t, "routes.toml", "[[routes]]\npath = \"/placa\"\nrequired = [\"placa\"]\n"))
	require.NoError(t, err)
	assert.Equal(t, Table{{Path: "/placa", Upstream: "/placa", Required: []string{"placa"}}}, table)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(writeFile(t, "routes.ini", "x"))
	assert.ErrorContains(t, err, "unsupported file extension")

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "routes: load")

	_, err = LoadFile(writeFile(t, "bad.yaml", "routes:\n  - path: /dni\n"))
	assert.ErrorContains(t, err, "exactly one of")
}

func TestLoad(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default, table)
}
