package main

import (
	"os"
	"strings"

	"github.com/lexintellectus/knowledgepack/internal/sign"
)

func readPrivateKey(path string) (sign.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return sign.DecodePrivateKeyB64(strings.TrimSpace(string(b)))
}

func readPublicKey(path string) (sign.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return sign.DecodePublicKeyB64(strings.TrimSpace(string(b)))
}
