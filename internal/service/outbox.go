package service

import "github.com/Freeeeeet/consultation_bot/internal/notify"

type notice struct {
	kind    notify.Kind
	chatID  int64
	payload notify.Payload
}

// outbox копит уведомления внутри транзакции, отправляются они только после коммита
type outbox struct {
	notices []notice
}

func (o *outbox) add(kind notify.Kind, chatID int64, payload notify.Payload) {
	o.notices = append(o.notices, notice{kind: kind, chatID: chatID, payload: payload})
}

func (o *outbox) flush(gw notify.Gateway) {
	for _, n := range o.notices {
		gw.Notify(n.kind, n.chatID, n.payload)
	}
	o.notices = nil
}
