// Package events 向消息队列发布领域事件；发布失败只记录，不影响主流程。
package events

import (
	"context"
	"time"
)

const TypeUserRegistered = "user.registered"

type UserRegistered struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	RegisteredAt time.Time `json:"registered_at"`
}

type Publisher interface {
	PublishUserRegistered(ctx context.Context, e UserRegistered) error
	Close() error
}

type Nop struct{}

func (Nop) PublishUserRegistered(context.Context, UserRegistered) error { return nil }
func (Nop) Close() error                                                { return nil }
