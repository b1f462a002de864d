package collyfetcher

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JakeFAU/hn-harvester/internal/metrics"
)

// observedTransport counts TLS failures before handing errors back to colly.
type observedTransport struct {
	base *http.Transport
}

func (t *observedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("observed transport received nil request")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		if isTLSFailure(err) {
			metrics.ObserveTLSFailure()
		}
		return nil, fmt.Errorf("roundtrip %s: %w", req.URL.Host, err)
	}
	return resp, nil
}

func isTLSFailure(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		authorityErr x509.UnknownAuthorityError
		hostErr      x509.HostnameError
		recordErr    tls.RecordHeaderError
	)
	switch {
	case errors.As(err, &verifyErr), errors.As(err, &authorityErr),
		errors.As(err, &hostErr), errors.As(err, &recordErr):
		return true
	}
	return strings.Contains(err.Error(), "TLS handshake timeout")
}
