package application

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"math-solver-gateway/solver/domain"
)

// fencePatterns na ordem em que são tentados. Só o primeiro padrão presente é removido.
var fencePatterns = []struct{ open, close string }{
	{"```json\n", "```"},
	{"```json", "```"},
	{"```\n", "```"},
	{"```", "```"},
	{"`", "`"},
}

// Extract recupera a Solution do texto livre devolvido pelo modelo.
//
// Etapas: remove o cercado de código, localiza o primeiro objeto JSON
// balanceado, faz o parse e valida o schema. Não tem estado; pode rodar em
// paralelo e fora da vaga do gate.
func Extract(raw string) (domain.Solution, error) {
	payload, err := locatePayload(stripFence(strings.TrimSpace(raw)))
	if err != nil {
		return domain.Solution{}, err
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return domain.Solution{}, domain.Wrap(domain.KindMalformedPayload, "invalid JSON", err)
	}
	return validateSolution(doc)
}

func stripFence(text string) string {
	for _, p := range fencePatterns {
		i := strings.Index(text, p.open)
		if i < 0 {
			continue
		}
		text = text[i+len(p.open):]
		// sem delimitador de fechamento segue com o resto, sem falhar.
		if j := strings.LastIndex(text, p.close); j >= 0 {
			text = text[:j]
		}
		return text
	}
	return text
}

// locatePayload devolve o trecho do primeiro '{' até a chave que zera a profundidade.
func locatePayload(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", domain.New(domain.KindNoPayloadFound, "no JSON object in response")
	}

	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", domain.New(domain.KindIncompletePayload, "JSON object is never closed")
}

func validateSolution(doc map[string]any) (domain.Solution, error) {
	var (
		s   domain.Solution
		err error
	)
	if s.Title, err = requireString(doc, "title", "title"); err != nil {
		return domain.Solution{}, err
	}
	if s.Equations, err = requireStrings(doc, "equations"); err != nil {
		return domain.Solution{}, err
	}
	if s.Steps, err = requireSteps(doc); err != nil {
		return domain.Solution{}, err
	}
	if s.Unknowns, err = requireUnknowns(doc); err != nil {
		return domain.Solution{}, err
	}
	if s.Verification, err = requireString(doc, "verification", "verification"); err != nil {
		return domain.Solution{}, err
	}
	return s, nil
}

func requireString(obj map[string]any, key, path string) (string, error) {
	v, ok := obj[key]
	if !ok {
		return "", domain.SchemaViolation(path, "is required")
	}
	s, ok := v.(string)
	if !ok {
		return "", domain.SchemaViolation(path, "must be a string")
	}
	return s, nil
}

func requireArray(obj map[string]any, key string) ([]any, error) {
	v, ok := obj[key]
	if !ok {
		return nil, domain.SchemaViolation(key, "is required")
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, domain.SchemaViolation(key, "must be an array")
	}
	return arr, nil
}

func requireStrings(obj map[string]any, key string) ([]string, error) {
	arr, err := requireArray(obj, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(arr))
	for i, v := range arr {
		s, ok := v.(string)
		if !ok {
			return nil, domain.SchemaViolation(fmt.Sprintf("%s[%d]", key, i), "must be a string")
		}
		out = append(out, s)
	}
	return out, nil
}

func requireSteps(obj map[string]any) ([]domain.Step, error) {
	arr, err := requireArray(obj, "steps")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Step, 0, len(arr))
	for i, v := range arr {
		path := fmt.Sprintf("steps[%d]", i)
		m, ok := v.(map[string]any)
		if !ok {
			return nil, domain.SchemaViolation(path, "must be an object")
		}
		var st domain.Step
		if st.Description, err = requireString(m, "description", path+".description"); err != nil {
			return nil, err
		}
		if st.Calculation, err = requireString(m, "calculation", path+".calculation"); err != nil {
			return nil, err
		}
		if st.Result, err = requireString(m, "result", path+".result"); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// requireUnknowns aceita número, null ou string numérica (o modelo às vezes
// devolve "24.5" entre aspas).
func requireUnknowns(obj map[string]any) (map[string]*float64, error) {
	v, ok := obj["solution"]
	if !ok {
		return nil, domain.SchemaViolation("solution", "is required")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, domain.SchemaViolation("solution", "must be an object")
	}
	out := make(map[string]*float64, len(m))
	for name, raw := range m {
		switch x := raw.(type) {
		case nil:
			out[name] = nil
		case float64:
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, domain.SchemaViolation("solution."+name, "must be a finite number or null")
			}
			out[name] = &x
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if err != nil {
				return nil, domain.SchemaViolation("solution."+name, "must be a number or null")
			}
			// ParseFloat aceita "NaN" e "Inf", que o encoding/json não sabe escrever.
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, domain.SchemaViolation("solution."+name, "must be a finite number or null")
			}
			out[name] = &f
		default:
			return nil, domain.SchemaViolation("solution."+name, "must be a number or null")
		}
	}
	return out, nil
}
