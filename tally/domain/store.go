package domain

import (
	"context"
	"iter"
)

// CounterStore é o armazenamento durável chave -> bytes onde vivem as contagens.
//
// Get de uma chave inexistente deve devolver um erro que satisfaça
// errors.Is(err, ErrNotFound).
//
// Keys é uma sequência preguiçosa: termina quando as chaves atuais acabam e pode
// ser percorrida de novo (cada range começa uma listagem nova). O conjunto de
// candidatos pode crescer sem limite, então nada é carregado inteiro em memória.
type CounterStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Keys(ctx context.Context) iter.Seq2[string, error]
}

// Entry é um valor com o token de revisão nativo do store.
type Entry struct {
	Value    []byte
	Revision uint64
}

// VersionedStore expõe compare-and-swap por revisão.
//
// Create falha com ErrConflict se a chave já existe.
// Update falha com ErrConflict se a revisão atual não for `revision`.
type VersionedStore interface {
	CounterStore
	Entry(ctx context.Context, key string) (Entry, error)
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Update(ctx context.Context, key string, value []byte, revision uint64) (uint64, error)
}
