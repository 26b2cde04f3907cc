package sms

import (
	"context"
	"sync"
)

// Message entregado a un Recorder.
type Message struct {
	Phone string
	Text  string
}

// Recorder guarda lo entregado en vez de enviarlo. Err fuerza una falla.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
	Err  error
}

func (r *Recorder) Deliver(ctx context.Context, phone, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.msgs = append(r.msgs, Message{Phone: phone, Text: message})
	return nil
}

// Last retorna el último mensaje entregado.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return Message{}, false
	}
	return r.msgs[len(r.msgs)-1], true
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}
