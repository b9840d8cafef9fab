package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"

	"zoin_economy/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrMalformedSignature is returned for signatures not shaped "<millis>:<hex>".
var ErrMalformedSignature = errors.New("malformed signature")

// Signer produces the tamper-evidence token stored on every transaction.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer keyed with the process-wide ledger secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns "<unixMillis>:<hex hmac-sha256(userID|amount|type|unixMillis)>".
func (s *Signer) Sign(userID uint, amount decimal.Decimal, txType domain.TransactionType, unixMillis int64) string {
	return strconv.FormatInt(unixMillis, 10) + ":" + hex.EncodeToString(s.mac(userID, amount, txType, unixMillis))
}

// Verify recomputes the signature of an entry and compares it in constant time.
func (s *Signer) Verify(userID uint, amount decimal.Decimal, txType domain.TransactionType, signature string) (bool, error) {
	millis, got, err := parseSignature(signature)
	if err != nil {
		return false, err
	}
	return hmac.Equal(got, s.mac(userID, amount, txType, millis)), nil
}

// SignedAt returns the unix millis a signature was issued at.
func SignedAt(signature string) (int64, error) {
	millis, _, err := parseSignature(signature)
	return millis, err
}

func parseSignature(signature string) (int64, []byte, error) {
	ts, digest, ok := strings.Cut(signature, ":")
	if !ok {
		return 0, nil, ErrMalformedSignature
	}
	millis, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, nil, ErrMalformedSignature
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return 0, nil, ErrMalformedSignature
	}
	return millis, got, nil
}

func (s *Signer) mac(userID uint, amount decimal.Decimal, txType domain.TransactionType, unixMillis int64) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(strconv.FormatUint(uint64(userID), 10)))
	h.Write([]byte("|"))
	h.Write([]byte(amount.StringFixed(Scale)))
	h.Write([]byte("|"))
	h.Write([]byte(txType))
	h.Write([]byte("|"))
	h.Write([]byte(strconv.FormatInt(unixMillis, 10)))
	return h.Sum(nil)
}
