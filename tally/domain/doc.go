// Package domain define tipos e contratos do domínio de apuração de votos.
//
// Este pacote não depende de NATS, Redis nem de qualquer transporte concreto.
// A intenção é permitir testes de unidade puros e desacoplar a regra de
// incremento/agregação dos detalhes de infraestrutura.
package domain
