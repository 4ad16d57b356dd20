// Package domain define contratos e tipos de domínio do solver.
//
// Este pacote não depende de net/http nem de implementações concretas.
// Gate, extrator e serviço (application) falam apenas com estes contratos;
// backends, pool de vagas, cache e estatísticas ficam em infra.
package domain
