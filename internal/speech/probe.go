package speech

import (
	"errors"
	"fmt"

	"github.com/gen2brain/malgo"
)

var errNoCaptureDevice = errors.New("no audio capture device")

// HasCaptureDevice reports whether the system exposes at least one
// microphone. It opens and releases a miniaudio context.
func HasCaptureDevice() error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("audio context: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("listing capture devices: %w", err)
	}
	if len(devices) == 0 {
		return errNoCaptureDevice
	}
	return nil
}
