package transport

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// pinnedTLSConfig builds a tls.Config that accepts only the supplied PEM
// certificate, presented as the peer leaf with the expected common name.
// Standard chain verification against system roots is replaced entirely by
// the pin check.
func pinnedTLSConfig(certPEM, commonName string) (*tls.Config, error) {
	if certPEM == "" {
		return nil, errors.New("no certificate configured")
	}
	block, _ := pem.Decode([]byte(certPEM))
	if block == nil {
		return nil, errors.New("certificate is not valid PEM")
	}
	pinned, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}

	return &tls.Config{
		// Verification is done by the pin check below instead.
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return errors.New("no peer certificate presented")
			}
			leaf, err := x509.ParseCertificate(rawCerts[0])
			if err != nil {
				return fmt.Errorf("parse peer certificate: %w", err)
			}
			if !bytes.Equal(leaf.Raw, pinned.Raw) {
				return errors.New("peer certificate does not match pinned certificate")
			}
			if commonName != "" && leaf.Subject.CommonName != commonName {
				return fmt.Errorf("peer certificate common name %q does not match %q",
					leaf.Subject.CommonName, commonName)
			}
			return nil
		},
	}, nil
}
