package usage

import "errors"

// ErrClosed is returned by AsyncLedger.Record after Close.
var ErrClosed = errors.New("usage ledger closed")
