package models

import "errors"

var (
	// ErrSessionNotFound 会话不存在错误
	ErrSessionNotFound = errors.New("chat session not found")
)
