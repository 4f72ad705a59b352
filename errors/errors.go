package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrAuth             = fmt.Errorf("session authentication rejected")
	ErrTransientNetwork = fmt.Errorf("transient network failure")
	ErrMalformedEvent   = fmt.Errorf("malformed channel event")
	ErrUnknownEvent     = fmt.Errorf("unknown channel event")
	ErrChannelClosed    = fmt.Errorf("live channel closed")
	ErrEmptyWords       = fmt.Errorf("no words have been found")
)
