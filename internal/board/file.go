package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"adc-acquisition/internal/domain"
)

// FileSource reads channel declarations from a JSON board file.
//
//	{"channels": [
//	  {"index": 0, "converter": "adc0", "reference": "vdd", "reference_voltage": 3.3,
//	   "resolution": 12, "gain": "1/6", "acquisition_time": "10us"}
//	]}
type FileSource struct {
	Path string
}

type boardFile struct {
	Channels []channelEntry `json:"channels"`
}

type channelEntry struct {
	Index            int      `json:"index"`
	Name             string   `json:"name"`
	Converter        string   `json:"converter"`
	Input            *int     `json:"input"`
	Reference        string   `json:"reference"`
	ReferenceVoltage float64  `json:"reference_voltage"`
	Resolution       uint8    `json:"resolution"`
	Gain             gain     `json:"gain"`
	AcquisitionTime  duration `json:"acquisition_time"`
	Differential     bool     `json:"differential"`
	Oversampling     uint8    `json:"oversampling"`
	Offset           float64  `json:"offset"`
}

func (s FileSource) Describe(ctx context.Context) ([]domain.ChannelDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Path == "" {
		return nil, errors.New("board file: path is required")
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("board file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a JSON board description.
func Parse(data []byte) ([]domain.ChannelDescriptor, error) {
	var file boardFile
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("board file: decode: %w", err)
	}

	descriptors := make([]domain.ChannelDescriptor, len(file.Channels))
	for i, entry := range file.Channels {
		input := entry.Index
		if entry.Input != nil {
			input = *entry.Input
		}
		gain := float64(entry.Gain)
		if gain == 0 {
			gain = 1
		}
		descriptors[i] = domain.ChannelDescriptor{
			Index:            entry.Index,
			Name:             entry.Name,
			Converter:        entry.Converter,
			Input:            input,
			Reference:        entry.Reference,
			ReferenceVoltage: entry.ReferenceVoltage,
			Resolution:       entry.Resolution,
			Gain:             gain,
			AcquisitionTime:  time.Duration(entry.AcquisitionTime),
			Differential:     entry.Differential,
			Oversampling:     entry.Oversampling,
			Offset:           entry.Offset,
		}
	}
	return descriptors, nil
}

// gain accepts a JSON number or a fraction string such as "1/6".
type gain float64

func (g *gain) UnmarshalJSON(data []byte) error {
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		*g = gain(number)
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("gain: %w", err)
	}
	num, den, isFraction := strings.Cut(strings.TrimSpace(text), "/")
	n, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return fmt.Errorf("gain %q: %w", text, err)
	}
	if !isFraction {
		*g = gain(n)
		return nil
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(den), 64)
	if err != nil || d == 0 {
		return fmt.Errorf("gain %q: invalid denominator", text)
	}
	*g = gain(n / d)
	return nil
}

// duration accepts a Go duration string or a number of microseconds.
type duration time.Duration

func (d *duration) UnmarshalJSON(data []byte) error {
	var micros float64
	if err := json.Unmarshal(data, &micros); err == nil {
		*d = duration(time.Duration(micros * float64(time.Microsecond)))
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("acquisition_time: %w", err)
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("acquisition_time: %w", err)
	}
	*d = duration(parsed)
	return nil
}

var _ domain.DescriptionSource = FileSource{}
