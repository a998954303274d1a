// Package application contém os casos de uso da apuração: incremento de voto
// (com lock de processo ou compare-and-swap), montagem do snapshot de apuração
// e as regras de admissão da borda (rate limit por eleitor e vagas simultâneas).
//
// Ele depende apenas do pacote domain e não conhece NATS, Redis nem HTTP.
package application
