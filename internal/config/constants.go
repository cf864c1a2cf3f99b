package config

// Application constants
const (
	AppName = "sidrapanel"

	// DefaultSidraURL is SIDRA table 1757 (active businesses with five or more
	// employees, per federative unit, first 14 periods)
	DefaultSidraURL = "https://apisidra.ibge.gov.br/values/t/1757/n3/all/v/410/p/first%2014/c319/104030"

	DefaultUserAgent = "sidrapanel/1 (+https://apisidra.ibge.gov.br)"
)

// brazilianStates are the 27 federative units as spelled by IBGE
var brazilianStates = [...]string{
	"Acre",
	"Alagoas",
	"Amapá",
	"Amazonas",
	"Bahia",
	"Ceará",
	"Distrito Federal",
	"Espírito Santo",
	"Goiás",
	"Maranhão",
	"Mato Grosso",
	"Mato Grosso do Sul",
	"Minas Gerais",
	"Pará",
	"Paraíba",
	"Paraná",
	"Pernambuco",
	"Piauí",
	"Rio de Janeiro",
	"Rio Grande do Norte",
	"Rio Grande do Sul",
	"Rondônia",
	"Roraima",
	"Santa Catarina",
	"São Paulo",
	"Sergipe",
	"Tocantins",
}

// BrazilianStates returns a fresh copy of the default state allow-list
func BrazilianStates() []string {
	out := make([]string, len(brazilianStates))
	copy(out, brazilianStates[:])
	return out
}
