package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrIntervalRequired    = errors.New("interval is required")
	ErrInvalidInterval     = errors.New("invalid interval")
	ErrNoTradingDays       = errors.New("no trading days")
	ErrUnknownStrategy     = errors.New("unknown strategy")
	ErrInsufficientBalance = errors.New("insufficient available balance")
	ErrRunNotFinished      = errors.New("run not finished")
)
