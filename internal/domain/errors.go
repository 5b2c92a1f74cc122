package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyLoaded  = errors.New("field is immutable once the trade is loaded")
	ErrSlotOutOfRange = errors.New("trade id outside the known collection")
	ErrUnknownEvent   = errors.New("unknown event topic")
	ErrNoTopics       = errors.New("log has no topics")
	ErrUnknownPhase   = errors.New("unknown trade phase")
)
