package domain

import "context"

// Message é uma mensagem recebida de uma assinatura.
// Respond só tem efeito em mensagens de request/reply.
type Message struct {
	Subject string
	Data    []byte
	Header  map[string]string

	respond func(ctx context.Context, data []byte, header map[string]string) error
}

// NewMessage é usado pelas implementações de Bus.
func NewMessage(subject string, data []byte, header map[string]string, respond func(context.Context, []byte, map[string]string) error) Message {
	return Message{Subject: subject, Data: data, Header: header, respond: respond}
}

// CanRespond diz se a mensagem veio de um Request.
func (m Message) CanRespond() bool { return m.respond != nil }

func (m Message) Respond(ctx context.Context, data []byte, header map[string]string) error {
	if m.respond == nil {
		return ErrNoReply
	}
	return m.respond(ctx, data, header)
}

// Reply é a resposta de um Request.
type Reply struct {
	Data   []byte
	Header map[string]string
}

// Handler processa uma mensagem por vez. Erros voltam para o adaptador do Bus,
// que registra em log e segue para a próxima mensagem.
type Handler func(ctx context.Context, msg Message) error

// Bus é o transporte publish/subscribe + request/reply.
//
//   - QueueSubscribe: membro de um consumer group; cada mensagem vai para um só membro.
//   - Subscribe: assinatura broadcast; todo assinante recebe toda mensagem.
//
// As assinaturas vivem até o ctx encerrar.
type Bus interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Request(ctx context.Context, subject string, data []byte) (Reply, error)
	Subscribe(ctx context.Context, subject string, h Handler) error
	QueueSubscribe(ctx context.Context, subject, group string, h Handler) error
}
