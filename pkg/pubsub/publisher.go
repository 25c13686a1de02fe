package pubsub

import "context"

type Publisher interface {
	Publish(context.Context, string, *Pack) error
}

type Pack struct {
	Key []byte
	Msg []byte
}
