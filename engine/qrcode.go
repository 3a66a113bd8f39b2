package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// QRCodePrefix tags every code this system issues; scans without it are
	// rejected client-side before reaching the API.
	QRCodePrefix = "AQRO-"

	qrRandomChars  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	qrRandomLength = 6
	qrMaxAttempts  = 5
)

// GenerateQRCode reserves a candidate identifier of the form
// AQRO-<6 base36 chars>-<last 6 digits of epoch ms>. It only produces the
// string; provisioning the container row is a separate step.
func (e *Engine) GenerateQRCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < qrMaxAttempts; attempt++ {
		code, err := newQRCode()
		if err != nil {
			return "", err
		}
		exists, err := e.store.QRCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("could not generate a unique QR code")
}

// IsValidQRCode checks the issued-code shape without touching the store.
func IsValidQRCode(code string) bool {
	return strings.HasPrefix(code, QRCodePrefix) && len(code) == len(QRCodePrefix)+qrRandomLength+1+6
}

func newQRCode() (string, error) {
	buf := make([]byte, qrRandomLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	random := make([]byte, qrRandomLength)
	for i, b := range buf {
		random[i] = qrRandomChars[int(b)%len(qrRandomChars)]
	}

	ms := time.Now().UnixMilli()
	suffix := fmt.Sprintf("%06d", ms%1000000)

	return QRCodePrefix + string(random) + "-" + suffix, nil
}
