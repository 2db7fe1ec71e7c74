// internal/avatar/avatar.go
package avatar

import (
	"context"
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	// MaxDataURLLength caps the encoded upload.
	MaxDataURLLength = 2_000_000
	// MaxImageBytes caps the decoded image.
	MaxImageBytes = 1_500_000

	// PathPrefix is where stored avatars are served from.
	PathPrefix = "/avatars/"
)

var (
	ErrNotFound      = errors.New("avatar not found")
	ErrInvalidImage  = errors.New("expected a base64 image data URL")
	ErrImageTooLarge = errors.New("image is too large")
)

// Image is a stored avatar.
type Image struct {
	ContentType string
	Data        []byte
	UpdatedAt   time.Time
}

// Store keeps one avatar per player id.
type Store interface {
	Put(ctx context.Context, playerID string, img Image) error
	Get(ctx context.Context, playerID string) (Image, error)
	Has(ctx context.Context, playerID string) (bool, error)
}

// ParseDataURL decodes a "data:image/<type>;base64,<data>" upload.
func ParseDataURL(s string) (Image, error) {
	if len(s) > MaxDataURLLength {
		return Image{}, ErrImageTooLarge
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok {
		return Image{}, ErrInvalidImage
	}
	header = strings.TrimPrefix(header, "data:")
	if header == "" || !strings.HasSuffix(header, ";base64") {
		return Image{}, ErrInvalidImage
	}
	contentType := strings.ToLower(strings.TrimSuffix(header, ";base64"))
	if !strings.HasPrefix(contentType, "image/") || len(contentType) == len("image/") {
		return Image{}, ErrInvalidImage
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageBytes+2 {
		return Image{}, ErrImageTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return Image{}, ErrInvalidImage
	}
	if len(data) > MaxImageBytes {
		return Image{}, ErrImageTooLarge
	}
	return Image{ContentType: contentType, Data: data}, nil
}

// URLFor returns the path a player's stored avatar is served at.
func URLFor(playerID string) string {
	return PathPrefix + url.PathEscape(playerID)
}

// Source adapts a Store to the lookup lobbies use: the avatar URL of a
// player, or "" when none is stored.
type Source struct {
	Store Store
}

func (s Source) AvatarURL(ctx context.Context, playerID string) (string, error) {
	if s.Store == nil {
		return "", nil
	}
	ok, err := s.Store.Has(ctx, playerID)
	if err != nil || !ok {
		return "", err
	}
	return URLFor(playerID), nil
}
