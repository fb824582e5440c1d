package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction not active")
	ErrBidTooLow        = errors.New("bid too low")
	ErrInvalidAmount    = errors.New("invalid bid amount")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidDispute   = errors.New("invalid dispute action")
	ErrConflict         = errors.New("concurrent update conflict")
	ErrStorageDisabled  = errors.New("image storage disabled")
	ErrLockHeld         = errors.New("lock already held")
	ErrRateLimited      = errors.New("rate limited")
)
