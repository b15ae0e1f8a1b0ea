// README: FCM notification sink; fire-and-forget lifecycle events for riders.
package notify

import (
	"context"
	"log"

	"firebase.google.com/go/v4/messaging"

	"carpool/internal/types"
)

// Event is a lifecycle notification. Action is the client-side routing key
// (e.g. "carpooling_trip_started").
type Event struct {
	Title  string
	Body   string
	Action string
	Data   map[string]string
}

// TokenSource resolves users' registered device tokens. Users without a token
// are simply absent from the result.
type TokenSource interface {
	FCMTokens(ctx context.Context, users []types.ID) (map[types.ID]string, error)
}

// Sink delivers events over FCM. Delivery is best-effort: failures are logged
// and never surfaced to the caller.
type Sink struct {
	msg    *messaging.Client
	tokens TokenSource
}

func NewSink(msg *messaging.Client, tokens TokenSource) *Sink {
	return &Sink{msg: msg, tokens: tokens}
}

func (s *Sink) Push(ctx context.Context, users []types.ID, ev Event) {
	if s.msg == nil || len(users) == 0 {
		return
	}
	toks, err := s.tokens.FCMTokens(ctx, users)
	if err != nil {
		log.Printf("notify: resolve tokens: %v", err)
		return
	}
	data := map[string]string{"action": ev.Action}
	for k, v := range ev.Data {
		data[k] = v
	}
	for id, tok := range toks {
		_, err := s.msg.Send(ctx, &messaging.Message{
			Token: tok,
			Notification: &messaging.Notification{
				Title: ev.Title,
				Body:  ev.Body,
			},
			Data: data,
		})
		if err != nil {
			log.Printf("notify: send to %s: %v", id, err)
		}
	}
}
