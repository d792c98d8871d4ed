package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	ErrEmptyKey          = errors.New("encryption key is empty")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
)

// Cipher 对字符串和可序列化对象做对称加解密。密钥在构造时注入，
// 进程内只读。密文格式为 base64(nonce || AES-256-GCM密文)。
type Cipher struct {
	key  []byte
	aead cipher.AEAD
}

// New derives a 32-byte key from the configured passphrase and builds the
// AEAD. Any passphrase works; the raw value never leaves this package.
func New(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrEmptyKey
	}

	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Cipher{key: key[:], aead: aead}, nil
}

// Encrypt 加密字符串。失败时返回错误，绝不回退为明文。
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt 解密字符串。密钥不匹配或密文损坏时返回 ErrInvalidCiphertext。
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(raw) < c.aead.NonceSize() {
		return "", ErrInvalidCiphertext
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	return string(plain), nil
}

// EncryptObject 先JSON序列化再加密。
func (c *Cipher) EncryptObject(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return c.Encrypt(string(data))
}

// DecryptObject 先解密再反序列化到 out。
func (c *Cipher) DecryptObject(ciphertext string, out any) error {
	plain, err := c.Decrypt(ciphertext)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(plain), out); err != nil {
		return fmt.Errorf("unmarshal object: %w", err)
	}
	return nil
}

// HashPassword 返回 password+key 的 SHA-256 十六进制摘要。确定性、单向。
func (c *Cipher) HashPassword(password string) string {
	sum := sha256.Sum256(append([]byte(password), c.key...))
	return hex.EncodeToString(sum[:])
}

// GenerateToken 生成32字节随机token的十六进制表示。
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// SecureCompare compares two strings accumulating XOR over bytes so equal
// lengths take constant time. The early return on length mismatch leaks the
// fact that lengths differ; kept to match existing callers.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var result byte
	for i := 0; i < len(a); i++ {
		result |= a[i] ^ b[i]
	}
	return result == 0
}
