package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/academy-commerce/internal/domain/coupon"
)

// Feed columns, in order. Columns after code are optional only where noted.
const (
	colCode = iota
	colType
	colValue
	colMinPurchase // optional
	colMaxDiscount // optional
	colValidFrom
	colValidUntil
	colUsageLimit // optional
	numColumns
)

// couponNamespace derives stable coupon ids from codes so re-imports address
// the same rows.
var couponNamespace = uuid.MustParse("6f1d8c1e-5b0a-4c3e-9a57-3c1f2b7d9e40")

// position locates a record in the feed set.
type position struct {
	file int
	line int
}

func (p position) before(o position) bool {
	return p.file < o.file || (p.file == o.file && p.line < o.line)
}

// scanFeed streams a gzip CSV feed and calls fn with every data record and
// its 1-based line number. A header row starting with "code" is skipped.
func scanFeed(ctx context.Context, path string, fn func(line int, rec []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", path)
		}
		line, _ := r.FieldPos(0)
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

// normalizeCode is the dedup key of a code. Codes are unique
// case-insensitively.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// parseRecord turns a feed record into an active coupon.
func parseRecord(rec []string) (*coupon.Coupon, error) {
	if len(rec) != numColumns {
		return nil, errors.Errorf("want %d columns, got %d", numColumns, len(rec))
	}
	field := func(i int) string { return strings.TrimSpace(rec[i]) }

	code := normalizeCode(rec[colCode])
	if code == "" {
		return nil, errors.New("empty code")
	}
	c := &coupon.Coupon{
		ID:       uuid.NewSHA1(couponNamespace, []byte(code)).String(),
		Code:     code,
		Type:     coupon.DiscountType(strings.ToLower(field(colType))),
		IsActive: true,
	}
	if !c.Type.Valid() {
		return nil, errors.Errorf("unknown discount type %q", field(colType))
	}

	var err error
	if c.Value, err = decimal.NewFromString(field(colValue)); err != nil {
		return nil, errors.Wrap(err, "value")
	}
	if !c.Value.IsPositive() {
		return nil, errors.New("value must be positive")
	}
	if c.Type == coupon.DiscountPercentage && c.Value.GreaterThan(decimal.NewFromInt(100)) {
		return nil, errors.New("percentage above 100")
	}
	if c.MinPurchase, err = optDecimal(field(colMinPurchase)); err != nil {
		return nil, errors.Wrap(err, "min_purchase")
	}
	if c.MaxDiscount, err = optDecimal(field(colMaxDiscount)); err != nil {
		return nil, errors.Wrap(err, "max_discount")
	}
	if c.ValidFrom, err = parseTime(field(colValidFrom)); err != nil {
		return nil, errors.Wrap(err, "valid_from")
	}
	if c.ValidUntil, err = parseTime(field(colValidUntil)); err != nil {
		return nil, errors.Wrap(err, "valid_until")
	}
	if !c.ValidUntil.After(c.ValidFrom) {
		return nil, errors.New("valid_until must be after valid_from")
	}
	if raw := field(colUsageLimit); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return nil, errors.Errorf("usage_limit %q must be a positive integer", raw)
		}
		c.UsageLimit = &limit
	}
	return c, nil
}

func optDecimal(raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, errors.New("must not be negative")
	}
	return decimal.NewNullDecimal(d), nil
}

// parseTime accepts RFC 3339 timestamps and plain dates (midnight UTC).
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}
