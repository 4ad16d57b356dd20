// Package application contém os casos de uso do solver: o gate de admissão,
// a extração da resposta do modelo, o serviço de resolução e a decisão de rate limit.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: SolveService.Solve(ctx, img) devolve uma domain.Solution ou um *domain.Error.
package application
