// Package token implements the stateless capability tokens that stand in
// for server-side session storage. A token is a canonical ASCII payload
// followed by a base64 (URL alphabet, so the signature can never contain
// the field separator) HMAC-SHA256 signature over that exact payload:
//
//	ask/<proposal-id>/<sig>              pending token, asserts no identity
//	ses/<proposal-id>/<identity>/<sig>   session token, asserts an identity
//
// Validity is purely a function of the signature; nothing is looked up.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/hkdf"

	"github.com/oiblz/tally/pkg/domain"
)

// Kind tags the two token flavors. The short strings are part of the wire
// format and must not change.
type Kind string

const (
	KindPending Kind = "ask"
	KindSession Kind = "ses"
)

// ErrInvalidToken is the single rejection for every verification failure:
// malformed structure, bad base64, unknown kind, signature mismatch. One
// opaque error keeps the codec from acting as an oracle.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified content of a token. Who is set only for session
// tokens.
type Claims struct {
	Kind       Kind
	ProposalID int64
	Who        domain.Identity
}

// Codec issues and verifies tokens. It is stateless and safe for
// concurrent use.
type Codec struct {
	pendingKey []byte
	sessionKey []byte
}

// New derives one MAC key per token kind from the master secret via
// HKDF-SHA256, so a pending signature can never validate as a session
// signature even over identical payload bytes.
func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token: secret is required")
	}
	pending, err := deriveKey(secret, "tally/token/pending")
	if err != nil {
		return nil, err
	}
	session, err := deriveKey(secret, "tally/token/session")
	if err != nil {
		return nil, err
	}
	return &Codec{pendingKey: pending, sessionKey: session}, nil
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, sha256.Size)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("token: derive key: %w", err)
	}
	return key, nil
}

// IssuePending returns a pending token bound to the proposal id.
func (c *Codec) IssuePending(proposalID int64) string {
	payload := fmt.Sprintf("%s/%d", KindPending, proposalID)
	return payload + "/" + c.sign(c.pendingKey, payload)
}

// IssueSession returns a session token bound to the proposal id and the
// resolved identity.
func (c *Codec) IssueSession(proposalID int64, who domain.Identity) string {
	payload := fmt.Sprintf("%s/%d/%s", KindSession, proposalID, who)
	return payload + "/" + c.sign(c.sessionKey, payload)
}

// Verify checks a wire string and returns its claims. Any failure is
// ErrInvalidToken; callers learn nothing else.
func (c *Codec) Verify(wire string) (Claims, error) {
	payload, sigPart, ok := cutLast(wire)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	// Strict decoding rejects nonzero trailing bits, so no two distinct
	// encoded signatures decode to the same bytes.
	sig, err := base64.RawURLEncoding.Strict().DecodeString(sigPart)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}

	fields := strings.Split(payload, "/")
	var claims Claims
	var key []byte
	switch {
	case len(fields) == 2 && fields[0] == string(KindPending):
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Claims{}, ErrInvalidToken
		}
		claims = Claims{Kind: KindPending, ProposalID: id}
		key = c.pendingKey
	case len(fields) == 3 && fields[0] == string(KindSession):
		id, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Claims{}, ErrInvalidToken
		}
		who, err := domain.ParseIdentity(fields[2])
		if err != nil {
			return Claims{}, ErrInvalidToken
		}
		claims = Claims{Kind: KindSession, ProposalID: id, Who: who}
		key = c.sessionKey
	default:
		return Claims{}, ErrInvalidToken
	}

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func (c *Codec) sign(key []byte, payload string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// cutLast splits the wire string at its final separator.
func cutLast(wire string) (payload, sig string, ok bool) {
	i := strings.LastIndexByte(wire, '/')
	if i <= 0 || i == len(wire)-1 {
		return "", "", false
	}
	return wire[:i], wire[i+1:], true
}
