package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wethinkt/go-cdrintel/internal/applog"
)

// ErrInvalidIMEI is returned for identifiers that are not 15 digits.
var ErrInvalidIMEI = errors.New("invalid IMEI")

const unknownValue = "Unknown"

// Device is a decoded IMEI. TAC, serial and check digit come from the
// number itself; manufacturer, model and brand from the resolving
// provider.
type Device struct {
	IMEI         string `json:"imei"`
	TAC          string `json:"tac"`
	Serial       string `json:"serial"`
	CheckDigit   string `json:"check_digit"`
	LuhnValid    bool   `json:"luhn_valid"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Brand        string `json:"brand"`
	Source       Source `json:"source"`
}

// DeviceDecoder decodes IMEIs through the primary provider, then the TAC
// provider, then structural decoding only.
type DeviceDecoder struct {
	primaryURL   string
	secondaryURL string
	client       *http.Client
}

// NewDeviceDecoder creates a decoder from cfg.
func NewDeviceDecoder(cfg Config) *DeviceDecoder {
	return &DeviceDecoder{
		primaryURL:   cfg.IMEIPrimaryURL,
		secondaryURL: cfg.IMEISecondaryURL,
		client:       newHTTPClient(cfg.Timeout),
	}
}

// Decode returns device information for imei. Only a malformed IMEI is an
// error; provider failures fall through to the next provider.
func (d *DeviceDecoder) Decode(ctx context.Context, imei string) (*Device, error) {
	if len(imei) != 15 || !allDigits(imei) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIMEI, imei)
	}
	dev := &Device{
		IMEI:         imei,
		TAC:          imei[:8],
		Serial:       imei[8:14],
		CheckDigit:   imei[14:],
		LuhnValid:    LuhnValid(imei),
		Manufacturer: unknownValue,
		Model:        unknownValue,
		Brand:        unknownValue,
		Source:       SourceUnknown,
	}

	providers := []struct {
		src Source
		url string
	}{
		{SourcePrimary, d.primaryURL},
		{SourceSecondary, d.secondaryURL},
	}
	for _, p := range providers {
		if p.url == "" {
			continue
		}
		key := imei
		if p.src == SourceSecondary {
			key = dev.TAC
		}
		info, err := d.fetch(ctx, fmt.Sprintf(p.url, key))
		if err != nil {
			applog.Log.Debug("IMEI lookup failed", "source", p.src, "tac", dev.TAC, "error", err)
			continue
		}
		dev.apply(info, p.src)
		lookupsTotal.WithLabelValues("imei", string(p.src)).Inc()
		return dev, nil
	}
	lookupsTotal.WithLabelValues("imei", string(SourceUnknown)).Inc()
	return dev, nil
}

type deviceInfo struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Brand        string `json:"brand"`
}

func (dev *Device) apply(info deviceInfo, src Source) {
	dev.Manufacturer = orUnknown(info.Manufacturer)
	dev.Model = orUnknown(info.Model)
	dev.Brand = orUnknown(info.Brand)
	dev.Source = src
}

func (d *DeviceDecoder) fetch(ctx context.Context, url string) (deviceInfo, error) {
	var info deviceInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return info, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return info, fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return info, fmt.Errorf("decode response: %w", err)
	}
	return info, nil
}

// LuhnValid reports whether the digits of s pass the Luhn checksum used by
// IMEI check digits.
func LuhnValid(s string) bool {
	if s == "" || !allDigits(s) {
		return false
	}
	sum := 0
	double := false
	for i := len(s) - 1; i >= 0; i-- {
		n := int(s[i] - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	return sum%10 == 0
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}
