package domain

import "errors"

var (
	ErrOutOfStock                 = errors.New("title out of stock")
	ErrInvalidDateRange           = errors.New("invalid date range")
	ErrAlreadyReturned            = errors.New("borrow already returned")
	ErrBorrowNotFound             = errors.New("borrow not found")
	ErrTitleNotFound              = errors.New("title not found")
	ErrPaymentNotFound            = errors.New("payment not found")
	ErrPaymentProviderUnavailable = errors.New("payment provider unavailable")
	ErrPaymentAlreadyOpen         = errors.New("pending payment already open")
	ErrInvalidAmount              = errors.New("invalid amount")
	ErrInvalidPaymentKind         = errors.New("invalid payment kind")
	ErrInvalidPaymentStatus       = errors.New("invalid payment status")
	ErrInvalidID                  = errors.New("invalid id")
	ErrBorrowerRequired           = errors.New("borrower id required")
	ErrTitleNameRequired          = errors.New("title name required")
	ErrInvalidStock               = errors.New("invalid stock count")
	ErrInvalidFee                 = errors.New("invalid fee")
	ErrInvalidCover               = errors.New("invalid cover")
)
