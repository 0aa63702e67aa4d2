package routes

func required(path string, params ...string) Route {
	return Route{Path: path, Upstream: path, Required: params}
}

// Default is the built-in route table. Gateway paths mirror upstream paths.
var Default = Table{
	required("/dni", "dni"),
	required("/dni/nombres", "nombres", "ape_paterno", "ape_materno"),
	required("/ruc", "ruc"),
	required("/ruc/representantes", "ruc"),
	required("/ruc/locales", "ruc"),
	required("/cee", "cee"),
	required("/placa", "placa"),
	{Path: "/licencia", Upstream: "/licencia", OneOf: []string{"dni", "licencia"}},
	required("/telefonia", "documento"),
	required("/telefonia/numero", "numero"),
	required("/correo", "correo"),
	required("/familiares", "dni"),
	required("/arbol", "dni"),
	required("/foto", "dni"),
	required("/firma", "dni"),
	required("/antecedentes/penales", "dni"),
	required("/antecedentes/policiales", "dni"),
	required("/antecedentes/judiciales", "dni"),
	required("/sunarp", "dni"),
	required("/migraciones", "documento"),
}
