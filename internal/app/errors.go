package app

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrPdfFileNotFound      = errors.New("pdf file not found")
)
