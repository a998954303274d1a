// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - ChanPool: semáforo por channel; com capacidade 1 é o lock de incremento do processo
//   - CounterStore: memória, Redis (go-redis), NATS JetStream KV, bbolt
//   - Bus: memória (consumer groups + broadcast + request/reply) e NATS
//   - StatsStore: memória e Redis
//   - LimiterStore: token bucket por chave usando golang.org/x/time/rate
package infra
