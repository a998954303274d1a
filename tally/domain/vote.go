package domain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
)

// CountSize é o tamanho fixo do valor gravado por candidato.
const CountSize = 4

const labelPrefix = "Candidate-"

// CandidateID identifica um candidato. É a chave no CounterStore (texto decimal)
// e a base do rótulo devolvido na apuração.
type CandidateID uint64

// ParseCandidateID interpreta o payload de um evento "cast vote".
// Aceita apenas um inteiro decimal não negativo (com espaços ao redor).
func ParseCandidateID(payload []byte) (CandidateID, error) {
	s := string(bytes.TrimSpace(payload))
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedPayload, s)
	}
	return CandidateID(id), nil
}

// CandidateFromKey faz o caminho inverso de Key.
func CandidateFromKey(key string) (CandidateID, error) {
	id, err := strconv.ParseUint(key, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return CandidateID(id), nil
}

func (id CandidateID) Key() string { return strconv.FormatUint(uint64(id), 10) }

func (id CandidateID) Label() string { return labelPrefix + id.Key() }

func (id CandidateID) Payload() []byte { return []byte(id.Key()) }

// VoteCount é o número de votos de um candidato. Nunca diminui.
type VoteCount uint32

// Next devolve count+1 sem dar a volta em 2^32.
func (c VoteCount) Next() (VoteCount, error) {
	if c == math.MaxUint32 {
		return 0, ErrCountOverflow
	}
	return c + 1, nil
}

// EncodeCount grava a contagem em 4 bytes little-endian.
func EncodeCount(c VoteCount) []byte {
	b := make([]byte, CountSize)
	binary.LittleEndian.PutUint32(b, uint32(c))
	return b
}

// DecodeCount falha rápido em valores que não tenham exatamente 4 bytes:
// nunca assume zero, para não mascarar corrupção.
func DecodeCount(b []byte) (VoteCount, error) {
	if len(b) != CountSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrCorruptCount, len(b))
	}
	return VoteCount(binary.LittleEndian.Uint32(b)), nil
}

// TallySnapshot mapeia rótulo do candidato -> contagem.
// Construído a cada pedido de apuração e descartado após a resposta.
type TallySnapshot map[string]VoteCount
