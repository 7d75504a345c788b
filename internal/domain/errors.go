package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrEmptySide             = errors.New("book side is empty")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrUnknownSymbol         = errors.New("unknown symbol")
	ErrMalformedDelta        = errors.New("malformed depth delta")
	ErrInvalidParameter      = errors.New("invalid model parameter")
	ErrNotTrained            = errors.New("model not trained")
	ErrAlreadyTrained        = errors.New("model already trained")
	ErrRateLimited           = errors.New("rate limited")
	ErrWSDisconnect          = errors.New("websocket disconnected")
)
