// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - FIFOPool: vaga única de chamada ao backend com fila de espera limitada
//   - LimiterStore: token bucket por cliente usando golang.org/x/time/rate
//   - OpenAIBackend / GeminiBackend: chamadas ao modelo de visão
//   - PostgresSolutionCache: cache de soluções por hash da imagem
//   - MemoryStatsStore / RedisStatsStore: contadores por resultado
package infra
