package authsvc

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidHash is returned when a stored hash is not a PHC encoded argon2id hash.
	ErrInvalidHash = errors.New("invalid password hash")
	// ErrInvalidArgon2Config is returned for cost parameters argon2 cannot run with.
	ErrInvalidArgon2Config = errors.New("invalid argon2 parameters")
)

const (
	argon2SaltLength = 16
	argon2KeyLength  = 32
)

// PasswordHasher hashes passwords for storage and checks them against stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// Argon2Config holds the argon2id cost parameters.
type Argon2Config struct {
	Time    uint32 `env:"TIME" default:"1"`
	Memory  uint32 `env:"MEMORY" default:"65536"` // KiB
	Threads uint8  `env:"THREADS" default:"4"`
}

// Argon2Hasher implements PasswordHasher with argon2id and the PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
type Argon2Hasher struct {
	cfg Argon2Config
}

var _ PasswordHasher = (*Argon2Hasher)(nil)

// Validate rejects zero iterations and zero threads.
func (cfg Argon2Config) Validate() error {
	if cfg.Time == 0 || cfg.Threads == 0 {
		return fmt.Errorf("%w: time and threads must be positive, got t=%d p=%d",
			ErrInvalidArgon2Config, cfg.Time, cfg.Threads)
	}

	return nil
}

func NewArgon2Hasher(cfg Argon2Config) *Argon2Hasher {
	return &Argon2Hasher{cfg: cfg}
}

// Hash derives a key from password with a fresh random salt.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.cfg.Time, h.cfg.Memory, h.cfg.Threads, argon2KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Memory,
		h.cfg.Time,
		h.cfg.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters stored in encoded and
// compares in constant time.
func (h *Argon2Hasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, errors.Join(ErrInvalidHash, err)
	}

	if version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	var (
		memory, time uint32
		threads      uint8
	)

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, errors.Join(ErrInvalidHash, err)
	}

	if time == 0 || threads == 0 {
		return false, fmt.Errorf("%w: t=%d p=%d", ErrInvalidHash, time, threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errors.Join(ErrInvalidHash, err)
	}

	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, errors.Join(ErrInvalidHash, err)
	}

	//nolint:gosec
	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
