package sh

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/teensy.go/pkg/l1"
	"github.com/robotalks/teensy.go/pkg/l1/msgs"
)

func TestFormatInfo(t *testing.T) {
	ref := l1.ControllerRef{Type: "teensy", ID: "abc"}
	require.Equal(t, "teensy/abc", FormatInfo(l1.ControllerInfo{Ref: ref}))
	require.Equal(t, "teensy/abc: Teensy vehicle controller", FormatInfo(l1.ControllerInfo{
		Ref:  ref,
		Meta: l1.ControllerMeta{Description: "Teensy vehicle controller"},
	}))
}

func TestFormatMessage(t *testing.T) {
	out, err := FormatMessage(msgs.NewCommandOK(), false)
	require.NoError(t, err)
	require.Equal(t, "OK", out)

	out, err = FormatMessage(&msgs.VehicleFault{Reason: msgs.FaultLinkLost}, false)
	require.NoError(t, err)
	require.Contains(t, out, "VehicleFault ")
	require.Contains(t, out, `reason:"link-lost"`)

	out, err = FormatMessage(&msgs.VehicleFault{Reason: msgs.FaultLinkLost}, true)
	require.NoError(t, err)
	require.JSONEq(t, `{"reason":"link-lost"}`, out)

	_, err = FormatMessage(&l1.CommandMsg{}, false)
	require.Error(t, err)
}
