package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/hraban/opus.v2"
)

func checkParameterValues() error {

	if viper.GetDuration("graph.interval") <= 0 {
		return &parmError{
			parm: "graph.interval",
			msg:  "value must be > 0",
		}
	}

	switch viper.GetInt("graph.samplerate") {
	case 8000, 16000, 24000, 48000:
	default:
		return &parmError{
			parm: "graph.samplerate",
			msg:  "allowed values are [8000, 16000, 24000, 48000]",
		}
	}

	if chs := viper.GetInt("graph.channels"); chs < 1 || chs > 2 {
		return &parmError{
			parm: "graph.channels",
			msg:  "allowed values are [1 (Mono), 2 (Stereo)]",
		}
	}

	if viper.GetDuration("graph.low-water-mark") < viper.GetDuration("graph.interval") {
		return &parmError{
			parm: "graph.low-water-mark",
			msg:  "value must be >= graph.interval",
		}
	}

	if mb := viper.GetDuration("graph.max-buffered"); mb != 0 &&
		mb < viper.GetDuration("graph.low-water-mark") {
		return &parmError{
			parm: "graph.max-buffered",
			msg:  "value must be 0 (unlimited) or >= graph.low-water-mark",
		}
	}

	if vol := viper.GetFloat64("output.volume"); vol < 0 || vol > 1 {
		return &parmError{
			parm: "output.volume",
			msg:  "allowed values are [0...1]",
		}
	}

	if viper.GetString("nats.subject-in") == viper.GetString("nats.subject-out") &&
		viper.GetString("nats.subject-in") != "" {
		return &parmError{
			parm: "nats.subject-out",
			msg:  "must differ from nats.subject-in",
		}
	}

	opusBw := viper.GetString("opus.max-bandwidth")
	if _, err := getOpusMaxBandwith(opusBw); err != nil {
		return &parmError{
			parm: "opus.max-bandwidth",
			msg:  "allowed values are NARROWBAND, MEDIUMBAND, WIDEBAND, SUPERWIDEBAND, FULLBAND",
		}
	}

	if viper.GetInt("opus.bitrate") < 6000 || viper.GetInt("opus.bitrate") > 510000 {
		return &parmError{
			parm: "opus.bitrate",
			msg:  "allowed values are [6000...510000]",
		}
	}

	if viper.GetInt("opus.complexity") < 0 || viper.GetInt("opus.complexity") > 10 {
		return &parmError{
			parm: "opus.complexity",
			msg:  "allowed values are [0...10]",
		}
	}

	return nil
}

type parmError struct {
	parm string
	msg  string
}

func (p *parmError) Error() string {
	return fmt.Sprintf("%v: %v", p.parm, p.msg)
}

// getOpusMaxBandwith returns the integer representation of an
// Opus max bandwidth value string (typically read from application settings)
func getOpusMaxBandwith(maxBw string) (opus.Bandwidth, error) {
	switch strings.ToLower(maxBw) {
	case "narrowband":
		return opus.Narrowband, nil
	case "mediumband":
		return opus.Mediumband, nil
	case "wideband":
		return opus.Wideband, nil
	case "superwideband":
		return opus.SuperWideband, nil
	case "fullband":
		return opus.Fullband, nil
	}

	return 0, errors.New("unknown opus max bandwidth value")
}
