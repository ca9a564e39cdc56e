// Package blob defines the image storage port used by catalog administration.
//
// Images arrive from the admin dashboard either as data URIs
// ("data:image/png;base64,...") which must be uploaded, or as absolute
// http(s) URLs which are stored untouched.
package blob

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Folders used for catalog images.
const (
	FolderCategories    = "categories"
	FolderSubcategories = "categories/subcategories"
	FolderProducts      = "products"
)

// ErrInvalidImage is returned when an image reference is neither a data URI
// nor an http(s) URL.
var ErrInvalidImage = errors.New("image must be a data URI or an http(s) URL")

// Object is a decoded image ready for upload.
type Object struct {
	ContentType string
	Data        []byte
}

// Store uploads and removes image objects.
type Store interface {
	// Upload stores obj under folder and returns its public URL.
	Upload(ctx context.Context, folder string, obj Object) (string, error)
	// Destroy removes the object behind a URL previously returned by Upload.
	// URLs the store does not own are ignored.
	Destroy(ctx context.Context, url string) error
}

// IsDataURI reports whether s looks like a base64 data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// DecodeDataURI parses a base64 data URI into an Object.
func DecodeDataURI(s string) (*Object, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, ErrInvalidImage
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrInvalidImage
	}
	contentType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, ErrInvalidImage
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidImage, "decode base64 payload")
	}
	if len(data) == 0 {
		return nil, ErrInvalidImage
	}
	return &Object{ContentType: contentType, Data: data}, nil
}

// Resolve turns an image reference from a request into a stored URL.
// Data URIs are uploaded to folder, http(s) URLs are returned as is and an
// empty reference stays empty.
func Resolve(ctx context.Context, store Store, folder, image string) (string, error) {
	switch {
	case image == "":
		return "", nil
	case IsDataURI(image):
		obj, err := DecodeDataURI(image)
		if err != nil {
			return "", err
		}
		url, err := store.Upload(ctx, folder, *obj)
		if err != nil {
			return "", errors.Wrap(err, "upload image")
		}
		return url, nil
	case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"):
		return image, nil
	default:
		return "", ErrInvalidImage
	}
}

// DestroyQuietly removes url from store, logging instead of failing.
func DestroyQuietly(ctx context.Context, store Store, url string) {
	if url == "" {
		return
	}
	if err := store.Destroy(ctx, url); err != nil {
		zctx.From(ctx).Warn("Failed to destroy image",
			zap.String("url", url),
			zap.Error(err),
		)
	}
}
