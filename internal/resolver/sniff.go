package resolver

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"beershop/pkg/customerrors"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of a payload is inspected for its signature.
const sniffLen = 3072

// imageTypes maps allowed sniffed types to the extensions they may carry.
var imageTypes = map[string][]string{
	"image/jpeg": {".jpg", ".jpeg"},
	"image/png":  {".png"},
}

var errContentMismatch = customerrors.New(customerrors.KindContentTypeMismatch, "Invalid file content")

// SniffImage classifies content by its leading bytes and checks that the
// result is an allowed image type matching ext. The client-declared content
// type is never consulted. The returned reader replays the sniffed bytes.
func SniffImage(content io.Reader, ext string) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(content, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, fmt.Errorf("read upload head: %w", err)
	}
	head = head[:n]

	contentType, err := VerifyImage(head, ext)
	if err != nil {
		return "", nil, err
	}
	return contentType, io.MultiReader(bytes.NewReader(head), content), nil
}

// VerifyImage is SniffImage for an in-memory prefix.
func VerifyImage(head []byte, ext string) (string, error) {
	if len(head) == 0 {
		return "", errContentMismatch
	}
	detected := mimetype.Detect(head)
	contentType := detected.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	exts, ok := imageTypes[contentType]
	if !ok {
		return "", errContentMismatch
	}
	for _, e := range exts {
		if e == strings.ToLower(ext) {
			return contentType, nil
		}
	}
	return "", errContentMismatch
}
