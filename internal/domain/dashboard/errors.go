package dashboard

import "errors"

var (
	ErrUnknownTab     = errors.New("unknown tab")
	ErrUnknownList    = errors.New("unknown list")
	ErrUnknownItem    = errors.New("unknown item")
	ErrUnknownSection = errors.New("unknown section")
	ErrUnknownFeed    = errors.New("unknown feed")
	ErrFragmentOwned  = errors.New("fragment already owned by another feed")
	ErrClosed         = errors.New("dashboard closed")
	ErrUnknownMode    = errors.New("unknown resolution mode")
)
