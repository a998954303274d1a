// Package tally liga os casos de uso de apuração ao barramento de mensagens.
//
// Visão geral (camadas):
//
//   - domain: tipos, codificação da contagem e contratos (CounterStore, Bus, SlotPool)
//   - application: incremento (lock de processo ou CAS) e snapshot de apuração
//   - infra: stores (memória, Redis, NATS KV, bbolt), buses (memória, NATS), lock
//   - tally (este pacote): workers em consumer group, agregador e helpers de cliente
//
// Fluxo:
//
//  1. Produtores publicam o id do candidato em "vote.save"
//  2. O bus distribui cada evento para um único Worker do grupo
//  3. O Worker aplica +1 no CounterStore sob o lock compartilhado do processo
//  4. Clientes fazem request em "vote.get"; o Aggregator varre o store e responde
//     com {"Candidate-<id>": contagem}
//
// Os dois caminhos só compartilham o store.
package tally
