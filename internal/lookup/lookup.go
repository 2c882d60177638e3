// Package lookup resolves identifiers found in CDRs against external
// references: IMEIs to device information and cell identifiers to
// coordinates.
//
// Every lookup walks an ordered chain of providers (primary, secondary,
// local) and ends at a basic or unknown result. Provider failures are
// logged and never returned to the caller.
package lookup

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source records which provider produced a result.
type Source string

const (
	SourcePrimary   Source = "primary"
	SourceSecondary Source = "secondary"
	SourceLocal     Source = "local"
	SourceUnknown   Source = "unknown"
)

// DefaultTimeout bounds every provider request.
const DefaultTimeout = 5 * time.Second

// Default provider endpoints. %s is replaced with the IMEI or TAC.
const (
	DefaultIMEIPrimaryURL   = "https://imei.info/api/imei/%s"
	DefaultIMEISecondaryURL = "https://www.tacdb.info/api/v1/tac/%s"
	DefaultOpenCellIDURL    = "https://opencellid.org/cell/get"
)

// Config configures the lookup providers. Empty URLs disable the
// corresponding provider.
type Config struct {
	Timeout          time.Duration
	IMEIPrimaryURL   string
	IMEISecondaryURL string
	OpenCellIDURL    string
	OpenCellIDKey    string
	CellDBPath       string
}

// DefaultConfig returns the public provider endpoints with the default
// timeout.
func DefaultConfig() Config {
	return Config{
		Timeout:          DefaultTimeout,
		IMEIPrimaryURL:   DefaultIMEIPrimaryURL,
		IMEISecondaryURL: DefaultIMEISecondaryURL,
		OpenCellIDURL:    DefaultOpenCellIDURL,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

var lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cdrintel",
	Subsystem: "lookup",
	Name:      "results_total",
	Help:      "Lookup results by kind and resolving source.",
}, []string{"kind", "source"})
