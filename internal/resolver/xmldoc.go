package resolver

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"beershop/pkg/customerrors"
)

var (
	errUnsafeDocument  = customerrors.New(customerrors.KindUnsafeDocument, "Unsafe XML document rejected")
	errInvalidDocument = customerrors.Validation("Invalid XML file")
)

// DecodeXML parses a document that must not declare a DTD. Any DOCTYPE or
// ENTITY directive rejects the whole document, so nothing is ever resolved
// from outside the payload. Undeclared entity references fail parsing.
func DecodeXML(data []byte, v any) error {
	if err := scanDirectives(data); err != nil {
		return err
	}

	dec := newDecoder(data)
	if err := dec.Decode(v); err != nil {
		return errInvalidDocument
	}
	return nil
}

func scanDirectives(data []byte) error {
	dec := newDecoder(data)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errInvalidDocument
		}
		switch t := tok.(type) {
		case xml.Directive:
			d := strings.ToUpper(string(t))
			if strings.Contains(d, "DOCTYPE") || strings.Contains(d, "ENTITY") ||
				strings.Contains(d, "SYSTEM") || strings.Contains(d, "PUBLIC") {
				return errUnsafeDocument
			}
			return errInvalidDocument
		case xml.ProcInst:
			if !strings.EqualFold(t.Target, "xml") {
				return errInvalidDocument
			}
		}
	}
}

func newDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true
	dec.Entity = nil
	dec.CharsetReader = nil
	return dec
}

// BeerDocument is the accepted XML shape for a new beer.
type BeerDocument struct {
	Name  string `xml:"name"`
	Price string `xml:"price"`
}
