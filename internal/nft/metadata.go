package nft

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// ErrDecode reports token metadata that is not hex encoded UTF-8 JSON.
// It never leaves this package: decoding falls back to a display value.
var ErrDecode = errors.New("token metadata decode failed")

// TokenRecord is a display-ready token
type TokenRecord struct {
	NFTokenID   string `json:"nftoken_id"`
	Issuer      string `json:"issuer,omitempty"`
	Owner       string `json:"owner,omitempty"`
	URI         string `json:"uri,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type metadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// DecodeMetadata turns a hex URI into name, description and image. Text that
// is not a JSON object becomes the name; bytes that are not UTF-8 leave the
// raw hex as the name.
func DecodeMetadata(uriHex string) (name, description, image string) {
	text, err := decodeText(uriHex)
	if err != nil {
		return uriHex, "", ""
	}

	var md metadata
	if err := json.Unmarshal([]byte(text), &md); err != nil || !strings.HasPrefix(strings.TrimSpace(text), "{") {
		return text, "", ""
	}
	return md.Name, md.Description, md.Image
}

func decodeText(uriHex string) (string, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(uriHex))
	if err != nil {
		return "", errors.Wrap(ErrDecode, err.Error())
	}
	if !utf8.Valid(raw) {
		return "", errors.Wrap(ErrDecode, "not utf-8")
	}
	return string(raw), nil
}
