package record

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"
)

// Options selects the capture device.
type Options struct {
	// Device is matched against PortAudio input device names, e.g. "hw:0,0".
	// It is tried with low latency before falling back to the default input.
	Device string
	Log    *zap.Logger
}

type portaudioDevice struct {
	name   string
	stream *portaudio.Stream
	in     []int16
	log    *zap.Logger
}

// Open initializes PortAudio and opens the preferred device, falling back to
// the default input. The returned Device owns the PortAudio session and
// terminates it on Close.
func Open(opts Options) (Device, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}

	in := make([]int16, FrameSamples)
	var primaryErr error
	if opts.Device != "" {
		d, err := openNamed(opts.Device, in, log)
		if err == nil {
			return d, nil
		}
		primaryErr = fmt.Errorf("device %q: %w", opts.Device, err)
		log.Info("preferred device unavailable, using default input", zap.Error(primaryErr))
	}

	d, err := openDefault(in, log)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: %w", ErrNoDevice, errors.Join(primaryErr, fmt.Errorf("default input: %w", err)))
	}
	return d, nil
}

func openNamed(name string, in []int16, log *zap.Logger) (*portaudioDevice, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, info := range devs {
		if info.MaxInputChannels < 1 || !strings.Contains(info.Name, name) {
			continue
		}
		return start(info, portaudio.LowLatencyParameters(info, nil), in, log)
	}
	return nil, fmt.Errorf("no input device matching %q", name)
}

func openDefault(in []int16, log *zap.Logger) (*portaudioDevice, error) {
	info, err := portaudio.DefaultInputDevice()
	if err != nil {
		return nil, err
	}
	return start(info, portaudio.HighLatencyParameters(info, nil), in, log)
}

func start(info *portaudio.DeviceInfo, p portaudio.StreamParameters, in []int16, log *zap.Logger) (*portaudioDevice, error) {
	p.Input.Channels = Channels
	p.SampleRate = SampleRate
	p.FramesPerBuffer = len(in)

	stream, err := portaudio.OpenStream(p, in)
	if err != nil {
		return nil, fmt.Errorf("open stream failed: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("start stream failed: %w", err)
	}
	log.Debug("capture device opened",
		zap.String("device", info.Name),
		zap.Duration("latency", p.Input.Latency),
		zap.Int("frames_per_buffer", p.FramesPerBuffer))
	return &portaudioDevice{name: info.Name, stream: stream, in: in, log: log}, nil
}

func (d *portaudioDevice) Name() string { return d.name }

func (d *portaudioDevice) ReadFrame(frame []int16) error {
	if err := d.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			return fmt.Errorf("%w: %v", ErrOverrun, err)
		}
		return err
	}
	copy(frame, d.in)
	return nil
}

// Recover accepts overruns: PortAudio keeps the stream running and the lost
// samples cannot be retrieved.
func (d *portaudioDevice) Recover(err error) error {
	if errors.Is(err, ErrOverrun) {
		d.log.Debug("input overrun, frame dropped")
		return nil
	}
	return err
}

func (d *portaudioDevice) Close() error {
	stopErr := d.stream.Stop()
	closeErr := d.stream.Close()
	termErr := portaudio.Terminate()
	return errors.Join(stopErr, closeErr, termErr)
}

// DeviceInfo describes an input device.
type DeviceInfo struct {
	Name              string
	HostAPI           string
	MaxInputChannels  int
	DefaultSampleRate float64
	Default           bool
}

// Devices lists the available input devices.
func Devices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init failed: %w", err)
	}
	defer portaudio.Terminate()

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []DeviceInfo
	for _, d := range devs {
		if d.MaxInputChannels < 1 {
			continue
		}
		info := DeviceInfo{
			Name:              d.Name,
			MaxInputChannels:  d.MaxInputChannels,
			DefaultSampleRate: d.DefaultSampleRate,
			Default:           def != nil && def.Index == d.Index,
		}
		if d.HostApi != nil {
			info.HostAPI = d.HostApi.Name
		}
		out = append(out, info)
	}
	return out, nil
}
