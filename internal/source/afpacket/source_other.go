//go:build !linux

package afpacket

import (
	"fmt"
	"runtime"

	"firestige.xyz/hmsniff/internal/config"
	"firestige.xyz/hmsniff/internal/source"
)

const Name = config.SourceAFPacket

func init() {
	source.Register(Name, func(cfg config.CaptureConfig) (source.Source, error) {
		return nil, &source.Error{
			Op:        "open",
			Source:    Name,
			Interface: cfg.Interface,
			Err:       fmt.Errorf("%w: afpacket requires linux, running on %s", config.ErrInvalid, runtime.GOOS),
		}
	})
}
