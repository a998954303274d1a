// Package gateway é a borda HTTP (net/http) do sistema de votação.
//
// Rotas:
//
//   - POST /votes  {"candidate": 7}  publica um "cast vote" no bus (202)
//   - GET  /tally                    faz request/reply no bus e devolve o JSON
//     da apuração (504 quando ninguém responde a tempo)
//
// Middlewares:
//
//  1. RateLimit extrai a chave do eleitor (header, XFF ou RemoteAddr) e pede a
//     decisão para a camada application; recusa com 429 + Retry-After
//  2. Concurrency limita requisições simultâneas; recusa com 503
//
// Variáveis de ambiente do binário (cmd/gateway) controlam o comportamento,
// como RATE_RPS, RATE_BURST, CONCURRENCY_MAX e TALLY_TIMEOUT.
package gateway
