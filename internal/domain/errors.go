package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientDepth   = errors.New("insufficient order book depth")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrZeroFill            = errors.New("order filled zero")
	ErrPartialFill         = errors.New("order partially filled")
	ErrPriceConstraint     = errors.New("price violates exchange constraints")
	ErrRateLimited         = errors.New("rate limited")
)
