package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// TokenBytes is the amount of randomness behind a room token.
const TokenBytes = 8

// NewToken returns a hex encoded random token of n bytes.
func NewToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// TokenSource hands out room tokens and never repeats one it already issued.
type TokenSource struct {
	mu     sync.Mutex
	size   int
	issued map[string]struct{}
	read   func(int) (string, error)
}

// NewTokenSource builds a source producing tokens of the given byte size.
func NewTokenSource(size int) *TokenSource {
	if size <= 0 {
		size = TokenBytes
	}
	return &TokenSource{
		size:   size,
		issued: make(map[string]struct{}),
		read:   NewToken,
	}
}

// Next returns a token that has never been issued by this source.
// It panics if the system random source is broken, since no safe token can be produced.
func (s *TokenSource) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		token, err := s.read(s.size)
		if err != nil {
			panic(err)
		}
		if _, dup := s.issued[token]; dup {
			continue
		}
		s.issued[token] = struct{}{}
		return token
	}
}

// Issued reports whether token was ever handed out.
func (s *TokenSource) Issued(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.issued[token]
	return ok
}
