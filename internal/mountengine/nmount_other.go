//go:build !freebsd

package mountengine

import "errors"

var errUnsupported = errors.New("mountengine: not supported on this platform")

func nmount(opts []kv, flags int64) error    { return errUnsupported }
func doUnmount(path string, flags int) error { return errUnsupported }
func isENOTDIR(err error) bool               { return false }
