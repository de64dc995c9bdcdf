// Package device looks up portaudio host APIs and audio devices by name.
// Callers must have initialized portaudio.
package device

import (
	"fmt"
	"runtime"
	"strings"

	pa "github.com/gordonklaus/portaudio"
)

// Default is the name selecting the default host API or device.
const Default = "default"

// HostAPI takes the name of a supported portaudio host api and returns
// the corresponding portaudio hostApiInfo object. "default" selects WASAPI
// on windows if available, otherwise the default host api.
func HostAPI(name string) (*pa.HostApiInfo, error) {
	if name == Default || name == "" {
		if runtime.GOOS == "windows" {
			// WASAPI provides lower latency than the other windows audio apis
			if ha, err := pa.HostApi(pa.WASAPI); err == nil {
				return ha, nil
			}
		}
		ha, err := pa.DefaultHostApi()
		if err != nil {
			return nil, fmt.Errorf("unable to determine the default host api - please provide a specific host api")
		}
		return ha, nil
	}

	var hostAPIType pa.HostApiType

	switch strings.ToLower(name) {
	case "indevelopment":
		hostAPIType = pa.InDevelopment
	case "directsound":
		hostAPIType = pa.DirectSound
	case "mme":
		hostAPIType = pa.MME
	case "asio":
		hostAPIType = pa.ASIO
	case "soundmanager":
		hostAPIType = pa.SoundManager
	case "coreaudio":
		hostAPIType = pa.CoreAudio
	case "oss":
		hostAPIType = pa.OSS
	case "alsa":
		hostAPIType = pa.ALSA
	case "al":
		hostAPIType = pa.AL
	case "beos":
		hostAPIType = pa.BeOS
	case "wdmks":
		hostAPIType = pa.WDMkS
	case "jack":
		hostAPIType = pa.JACK
	case "wasapi":
		hostAPIType = pa.WASAPI
	case "audiosciencehpi":
		hostAPIType = pa.AudioScienceHPI
	default:
		return nil, fmt.Errorf("unknown host api type: %s", name)
	}

	hostAPIInfo, err := pa.HostApi(hostAPIType)
	if err != nil {
		return nil, fmt.Errorf("unable to load host api %s: %w", name, err)
	}

	return hostAPIInfo, nil
}

// Input returns the input device with the given name of hostAPI.
func Input(name string, hostAPI *pa.HostApiInfo) (*pa.DeviceInfo, error) {
	if name == Default || name == "" {
		if hostAPI.DefaultInputDevice == nil {
			return nil, fmt.Errorf("host api %s has no default input device", hostAPI.Name)
		}
		return hostAPI.DefaultInputDevice, nil
	}
	return lookup(name, hostAPI)
}

// Output returns the output device with the given name of hostAPI.
func Output(name string, hostAPI *pa.HostApiInfo) (*pa.DeviceInfo, error) {
	if name == Default || name == "" {
		if hostAPI.DefaultOutputDevice == nil {
			return nil, fmt.Errorf("host api %s has no default output device", hostAPI.Name)
		}
		return hostAPI.DefaultOutputDevice, nil
	}
	return lookup(name, hostAPI)
}

func lookup(name string, hostAPI *pa.HostApiInfo) (*pa.DeviceInfo, error) {
	for _, device := range hostAPI.Devices {
		if strings.EqualFold(device.Name, name) {
			return device, nil
		}
	}
	return nil, fmt.Errorf("unknown audio device '%s'", name)
}
