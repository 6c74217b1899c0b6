// Package eventbus implementa um publish/subscribe tipado e síncrono usado
// pelas sessões de transporte para separar o I/O da lógica de frota.
package eventbus

import "sync"

// Kind identifica o tipo de evento
type Kind int

const (
	Connection Kind = iota
	Disconnection
	Message
	Error
)

func (k Kind) String() string {
	switch k {
	case Connection:
		return "connection"
	case Disconnection:
		return "disconnection"
	case Message:
		return "message"
	case Error:
		return "error"
	}
	return "unknown"
}

// Event é entregue a cada handler inscrito no seu Kind.
// Payload só é preenchido em eventos Message; Err só em eventos Error.
type Event[T any] struct {
	Kind    Kind
	Payload T
	Err     error
}

// Handler recebe eventos de um Kind
type Handler[T any] func(Event[T])

// Subscription identifica uma inscrição para Unsubscribe
type Subscription struct {
	kind Kind
	id   uint64
}

type entry[T any] struct {
	id uint64
	fn Handler[T]
}

// Bus distribui eventos na ordem de inscrição, na goroutine de quem emite
type Bus[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[Kind][]entry[T]
}

// New cria um Bus vazio
func New[T any]() *Bus[T] {
	return &Bus[T]{handlers: make(map[Kind][]entry[T])}
}

// Subscribe registra fn para eventos do tipo kind
func (b *Bus[T]) Subscribe(kind Kind, fn Handler[T]) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], entry[T]{id: b.nextID, fn: fn})
	return Subscription{kind: kind, id: b.nextID}
}

// Unsubscribe remove a inscrição. Remover duas vezes não tem efeito.
func (b *Bus[T]) Unsubscribe(s Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[s.kind]
	for i, e := range list {
		if e.id == s.id {
			b.handlers[s.kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Emit chama todos os handlers do Kind do evento, em ordem de inscrição.
// Handlers podem se (des)inscrever durante a emissão; a mudança vale para
// a próxima emissão.
func (b *Bus[T]) Emit(ev Event[T]) {
	b.mu.Lock()
	list := b.handlers[ev.Kind]
	b.mu.Unlock()

	for _, e := range list {
		e.fn(ev)
	}
}

// Len retorna o número de handlers inscritos em kind
func (b *Bus[T]) Len(kind Kind) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[kind])
}
