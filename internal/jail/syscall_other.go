//go:build !freebsd

package jail

import "errors"

const (
	jailFlagCreate = 0x01
	jailFlagUpdate = 0x02
)

var errUnsupported = errors.New("jail: not supported on this platform")

func jailSet(cfg *Config, flags int) (int32, error) { return 0, errUnsupported }
func jailGet(cfg *Config) (int32, error)             { return 0, errUnsupported }
func jailAttach(jid int32) error                     { return errUnsupported }
func jailRemove(jid int32) error                     { return errUnsupported }
func isEINVAL(err error) bool                        { return errors.Is(err, errUnsupported) }
