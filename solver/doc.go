// Package solver fornece os adapters HTTP (net/http) do serviço de resolução de equações.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (gate de admissão, extração, resolução, rate limit)
//   - infra: implementações concretas (pool FIFO, backends, cache, estatísticas)
//   - solver (este pacote): handlers e middlewares HTTP + tradução de erro para status
//
// Fluxo de POST /solve-equation:
//
//  1. Request id + log de acesso
//  2. Rate limit por cliente (opcional): 429 antes de tocar na fila do gate
//  3. Validação do upload (tipo image/*, tamanho, vazio)
//  4. SolveService: cache -> gate (vaga única + fila + prazo) -> extração
//  5. Erros viram 429/408/502/500 com corpo {"detail","kind","retryable"}
//
// Variáveis de ambiente do binário (cmd/solver) controlam o comportamento,
// como QUEUE_CAPACITY, CALL_DEADLINE, RATE_RPS e STATS_ENABLED.
package solver
