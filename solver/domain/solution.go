package domain

// Image é o payload de um pedido pendente: os bytes enviados pelo cliente.
type Image struct {
	Data     []byte
	MIME     string
	Filename string
}

type Step struct {
	Description string `json:"description"`
	Calculation string `json:"calculation"`
	Result      string `json:"result"`
}

// Solution é o resultado validado de uma extração.
//
// Unknowns mapeia o nome da incógnita para o valor; nil significa "não resolvida"
// e é serializado como null.
type Solution struct {
	Title        string              `json:"title"`
	Equations    []string            `json:"equations"`
	Steps        []Step              `json:"steps"`
	Unknowns     map[string]*float64 `json:"solution"`
	Verification string              `json:"verification"`
}
