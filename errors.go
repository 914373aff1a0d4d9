package rescache

import (
	"github.com/Borislavv/go-ash-rescache/internal/cache/dump"
	"github.com/Borislavv/go-ash-rescache/internal/coalescer"
)

var (
	// ErrTimeout is returned to every waiter of a request that exceeded its deadline.
	ErrTimeout = coalescer.ErrTimeout
	// ErrOperationFailed wraps the error of the underlying fetch operation.
	ErrOperationFailed = coalescer.ErrOperationFailed
	// ErrMalformedKey is returned when the request key cannot be derived from target and options.
	ErrMalformedKey = coalescer.ErrMalformedKey
	// ErrClosed is returned for requests aborted by Close.
	ErrClosed = coalescer.ErrClosed
	// ErrPersistenceDisabled is returned by Dump and Load without a persistence section.
	ErrPersistenceDisabled = dump.ErrDisabled
	// ErrNoDump is returned by Load when nothing was dumped yet.
	ErrNoDump = dump.ErrNoDump
)
