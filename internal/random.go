package internal

import (
	"crypto/rand"
	"math/big"
)

const (
	codeSpace = 900000
	codeFloor = 100000
)

// NewCode draws a uniformly random six-digit passcode from
// [100000, 999999]. The floor keeps the first digit non-zero so the code
// survives being handled as a number by downstream tooling.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", err
	}

	code := n.Int64() + codeFloor

	buf := [6]byte{}
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = byte('0' + code%10)
		code /= 10
	}
	return string(buf[:]), nil
}
