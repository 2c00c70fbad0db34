// Package callback crafts and verifies the correlation tokens attached to
// confirmation messages.
//
// A token has the form
//
//	v1:<doorID>:<userID>:<unix millis>:<signature>
//
// where the signature is a BLAKE3 keyed hash of everything before the last
// colon. The key is derived once per process start and never persisted, so
// tokens issued before a restart no longer verify.
package callback

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"
)

const (
	version   = "v1"
	separator = ":"
	keySize   = 32
)

var (
	// ErrInvalid covers every way a token can fail: shape, version or signature.
	ErrInvalid = errors.New("callback: invalid token")

	ErrBadField = errors.New("callback: door and user ids must be non-empty and colon-free")
)

// Claims are the signed fields of a token.
type Claims struct {
	DoorID   string
	UserID   string
	IssuedAt time.Time
}

type Codec struct {
	key [keySize]byte
}

// NewCodec derives the signing key from the configured secret, the process
// start time and fresh randomness.
func NewCodec(secret string, startedAt time.Time) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("callback: empty signing secret")
	}

	salt := make([]byte, keySize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("callback: reading salt: %w", err)
	}
	info := []byte("doorgate callback " + version + " " + strconv.FormatInt(startedAt.UnixNano(), 10))

	c := &Codec{}
	reader := hkdf.New(sha256.New, []byte(secret), salt, info)
	if _, err := io.ReadFull(reader, c.key[:]); err != nil {
		return nil, fmt.Errorf("callback: deriving key: %w", err)
	}
	return c, nil
}

// NewCodecWithKey uses key directly. It must be exactly 32 bytes.
func NewCodecWithKey(key []byte) (*Codec, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("callback: key must be %d bytes, got %d", keySize, len(key))
	}
	c := &Codec{}
	copy(c.key[:], key)
	return c, nil
}

// Craft signs (doorID, userID, issuedAt) into a token.
func (c *Codec) Craft(doorID, userID string, issuedAt time.Time) (string, error) {
	if !validField(doorID) || !validField(userID) {
		return "", ErrBadField
	}
	unsigned := strings.Join([]string{
		version, doorID, userID, strconv.FormatInt(issuedAt.UnixMilli(), 10),
	}, separator)
	return unsigned + separator + c.sign(unsigned), nil
}

// Verify checks the token's signature against the current process key and
// returns its claims. Malformed input yields ErrInvalid, never a panic.
func (c *Codec) Verify(token string) (Claims, error) {
	parts := strings.Split(token, separator)
	if len(parts) != 5 || parts[0] != version {
		return Claims{}, ErrInvalid
	}
	if !validField(parts[1]) || !validField(parts[2]) {
		return Claims{}, ErrInvalid
	}
	ms, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return Claims{}, ErrInvalid
	}

	unsigned := strings.Join(parts[:4], separator)
	want := c.sign(unsigned)
	if subtle.ConstantTimeCompare([]byte(want), []byte(parts[4])) != 1 {
		return Claims{}, ErrInvalid
	}

	return Claims{
		DoorID:   parts[1],
		UserID:   parts[2],
		IssuedAt: time.UnixMilli(ms),
	}, nil
}

func (c *Codec) sign(unsigned string) string {
	hasher, err := blake3.NewKeyed(c.key[:])
	if err != nil {
		panic("callback: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write([]byte(unsigned))
	return hex.EncodeToString(hasher.Sum(nil))
}

func validField(s string) bool {
	return s != "" && !strings.Contains(s, separator)
}
