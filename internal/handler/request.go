package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/apperr"
)

const maxBodyBytes = 1 << 20

var errMalformedBody = apperr.New(apperr.Validation, "request body must be a JSON object")

// decodeObject reads the request body as one JSON object and calls field for
// every key. An empty body is treated as {} when optional is set.
func decodeObject(w http.ResponseWriter, r *http.Request, optional bool, field func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.New(apperr.Validation, "request body too large")
		}
		return errors.Wrap(err, "read body")
	}
	if len(body) == 0 && optional {
		return nil
	}

	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return errMalformedBody
	}
	if err := d.Obj(field); err != nil {
		var kerr *apperr.Error
		if errors.As(err, &kerr) {
			return kerr
		}
		return errMalformedBody
	}
	return nil
}

// decodeString reads a string value. null is read as "".
func decodeString(d *jx.Decoder, name string) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Null:
		return "", d.Null()
	default:
		return "", apperr.New(apperr.Validation, name+" must be a string")
	}
}

// decodeDecimal reads a JSON number, or a string holding one.
func decodeDecimal(d *jx.Decoder, name string) (decimal.Decimal, error) {
	invalid := apperr.New(apperr.Validation, name+" must be a number")
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, invalid
		}
		raw = string(n)
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, invalid
		}
		raw = s
	default:
		return decimal.Zero, invalid
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, invalid
	}
	return v, nil
}
