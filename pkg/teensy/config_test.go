package teensy

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/teensy.go/pkg/l0/link"
	"github.com/robotalks/teensy.go/pkg/l0/serial"
	"github.com/robotalks/teensy.go/pkg/vehicle"
)

func TestConfigLoad(t *testing.T) {
	conf := Config{
		Serial:       *serial.NewConfig(),
		Link:         *link.NewConfig(),
		LoopInterval: 25 * time.Millisecond,
	}
	require.NoError(t, conf.Load([]byte(`
serial:
  device: /dev/ttyUSB1
link:
  link-timeout: 150ms
  mode: auto
redis: redis://localhost:6379/1
estop: gpiochip0:17:low
`)))
	require.Equal(t, "/dev/ttyUSB1", conf.Serial.Device)
	require.Equal(t, serial.DefaultBaud, conf.Serial.Baud)
	require.Equal(t, 150*time.Millisecond, conf.Link.LinkTimeout)
	require.Equal(t, link.DefaultHostTimeout, conf.Link.HostTimeout)
	require.Equal(t, vehicle.ModeAuto, conf.Link.Mode)
	require.Equal(t, "redis://localhost:6379/1", conf.RedisURL)
	require.NoError(t, conf.Validate())

	require.Error(t, conf.Load([]byte("link:\n  mode: cruise\n")))
}

func TestConfigLoadFile(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "teensy.yaml")
	require.NoError(t, os.WriteFile(fn, []byte("poll-pause: 10ms\n"), 0644))
	var conf Config
	require.NoError(t, conf.LoadFile(fn))
	require.Equal(t, 10*time.Millisecond, conf.PollPause)
	require.Error(t, conf.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestConfigValidate(t *testing.T) {
	conf := Config{
		Link:         link.Config{HostTimeout: 100 * time.Millisecond},
		LoopInterval: 100 * time.Millisecond,
	}
	require.Error(t, conf.Validate())
	conf.LoopInterval = 25 * time.Millisecond
	require.NoError(t, conf.Validate())
	conf.EStop = "gpiochip0"
	require.Error(t, conf.Validate())
}

func TestConfigDefaults(t *testing.T) {
	conf := Default()
	require.Equal(t, DefaultPollPause, conf.PollPause)
	require.Equal(t, 25*time.Millisecond, conf.LoopInterval)
}
