package domain

import "errors"

// ErrEmailTaken 邮箱唯一约束冲突（含并发注册）
var ErrEmailTaken = errors.New("email already exists")
