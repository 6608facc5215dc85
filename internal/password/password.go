// Package password はパスワードのハッシュ化と検証を提供します。
package password

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// Algorithm は新規ハッシュに使うアルゴリズムです。
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmPBKDF2   Algorithm = "pbkdf2"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

const saltCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Options はハッシュ計算のパラメータです。ゼロ値の項目は既定値で補われます。
type Options struct {
	Algorithm  Algorithm
	SaltLength int

	// argon2id
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	KeyLength   uint32

	// pbkdf2 (Werkzeug 互換)
	PBKDF2Iterations int

	// bcrypt
	BcryptCost int
}

// DefaultOptions は本番向けの既定値を返します。
func DefaultOptions() Options {
	return Options{
		Algorithm:        AlgorithmArgon2id,
		SaltLength:       16,
		Memory:           64 * 1024,
		Iterations:       3,
		Parallelism:      2,
		KeyLength:        32,
		PBKDF2Iterations: 600000,
		BcryptCost:       bcrypt.DefaultCost,
	}
}

// Hasher はソルト付き一方向ハッシュの生成と検証を行います。
type Hasher struct {
	opts Options
}

// NewHasher は Hasher を作成します。
func NewHasher(opts Options) (*Hasher, error) {
	def := DefaultOptions()
	if opts.Algorithm == "" {
		opts.Algorithm = def.Algorithm
	}
	if opts.SaltLength <= 0 {
		opts.SaltLength = def.SaltLength
	}
	if opts.Memory == 0 {
		opts.Memory = def.Memory
	}
	if opts.Iterations == 0 {
		opts.Iterations = def.Iterations
	}
	if opts.Parallelism == 0 {
		opts.Parallelism = def.Parallelism
	}
	if opts.KeyLength == 0 {
		opts.KeyLength = def.KeyLength
	}
	if opts.PBKDF2Iterations <= 0 {
		opts.PBKDF2Iterations = def.PBKDF2Iterations
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = def.BcryptCost
	}

	switch opts.Algorithm {
	case AlgorithmArgon2id, AlgorithmPBKDF2, AlgorithmBcrypt:
	default:
		return nil, fmt.Errorf("unsupported password algorithm: %s", opts.Algorithm)
	}
	return &Hasher{opts: opts}, nil
}

// Hash は平文からダイジェストを生成します。同じ平文でも呼び出しごとに異なる値になります。
func (h *Hasher) Hash(plaintext string) (string, error) {
	switch h.opts.Algorithm {
	case AlgorithmPBKDF2:
		return h.hashPBKDF2(plaintext)
	case AlgorithmBcrypt:
		digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.opts.BcryptCost)
		if err != nil {
			return "", err
		}
		return string(digest), nil
	default:
		return h.hashArgon2id(plaintext)
	}
}

// Verify は平文がダイジェストと一致するかを返します。
// 形式が不正なダイジェストは不一致として扱います。
func (h *Hasher) Verify(plaintext, digest string) bool {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return verifyArgon2id(plaintext, digest)
	case strings.HasPrefix(digest, "pbkdf2:"):
		return verifyPBKDF2(plaintext, digest)
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
	default:
		return false
	}
}

func (h *Hasher) hashArgon2id(plaintext string) (string, error) {
	salt := make([]byte, h.opts.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, h.opts.Iterations, h.opts.Memory, h.opts.Parallelism, h.opts.KeyLength)
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.opts.Memory,
		h.opts.Iterations,
		h.opts.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// ダイジェストに埋め込まれたコストの上限です。これを超える値は不正として照合しません。
const (
	maxArgon2Memory      = 1 << 20 // KiB (1GiB)
	maxArgon2Iterations  = 16
	maxArgon2Parallelism = 64
	maxKeyLength         = 128
	maxPBKDF2Iterations  = 10_000_000
)

func verifyArgon2id(plaintext, digest string) bool {
	// ["", "argon2id", "v=19", "m=X,t=Y,p=Z", salt, hash]
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return false
	}

	var (
		memory, iterations uint32
		parallelism        uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false
	}
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false
	}
	if memory > maxArgon2Memory || iterations > maxArgon2Iterations || parallelism > maxArgon2Parallelism {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 || len(expected) > maxKeyLength {
		return false
	}

	computed := argon2.IDKey([]byte(plaintext), salt, iterations, memory, parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// hashPBKDF2 は Werkzeug の generate_password_hash と同じ
// "pbkdf2:sha256:<iter>$<salt>$<hex>" 形式で出力します。
func (h *Hasher) hashPBKDF2(plaintext string) (string, error) {
	salt, err := randomSalt(h.opts.SaltLength)
	if err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(plaintext), []byte(salt), h.opts.PBKDF2Iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", h.opts.PBKDF2Iterations, salt, hex.EncodeToString(key)), nil
}

func verifyPBKDF2(plaintext, digest string) bool {
	method, rest, ok := strings.Cut(digest, "$")
	if !ok {
		return false
	}
	salt, encoded, ok := strings.Cut(rest, "$")
	if !ok || salt == "" {
		return false
	}

	fields := strings.Split(method, ":")
	if len(fields) != 3 || fields[0] != "pbkdf2" || fields[1] != "sha256" {
		return false
	}
	iterations, err := strconv.Atoi(fields[2])
	if err != nil || iterations <= 0 || iterations > maxPBKDF2Iterations {
		return false
	}

	expected, err := hex.DecodeString(encoded)
	if err != nil || len(expected) == 0 || len(expected) > maxKeyLength {
		return false
	}

	computed := pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

func randomSalt(length int) (string, error) {
	salt := make([]byte, length)
	limit := big.NewInt(int64(len(saltCharset)))
	for i := range salt {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate salt: %w", err)
		}
		salt[i] = saltCharset[n.Int64()]
	}
	return string(salt), nil
}
