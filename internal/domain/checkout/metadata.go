package checkout

import (
	"fmt"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/partstore/storefront/internal/domain/order"
)

// Session metadata keys.
const (
	MetaUserID          = "userId"
	MetaCouponCode      = "couponCode"
	MetaProducts        = "products"
	MetaShippingAddress = "shippingAddress"
)

// metadataValueLimit is the gateway limit for a single metadata value, in
// characters.
const metadataValueLimit = 500

// snapshotItem is a cart line as carried through the payment session.
type snapshotItem struct {
	ID       string
	Name     string
	Quantity int
	Price    decimal.Decimal
}

func encodeProducts(items []LineItem) string {
	var e jx.Encoder
	e.ArrStart()
	for _, it := range items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(it.ID)
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("price")
		e.Str(it.Price.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.String()
}

func decodeProducts(raw string) ([]snapshotItem, error) {
	var items []snapshotItem
	err := jx.DecodeStr(raw).Arr(func(d *jx.Decoder) error {
		var it snapshotItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				it.ID, err = d.Str()
			case "name":
				it.Name, err = d.Str()
			case "quantity":
				it.Quantity, err = d.Int()
			case "price":
				it.Price, err = decodePrice(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		items = append(items, it)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return items, nil
}

// decodePrice accepts both the string form written by encodeProducts and a
// bare JSON number.
func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	default:
		return decimal.Zero, errors.Errorf("unexpected price type %s", d.Next())
	}
	return decimal.NewFromString(raw)
}

func encodeAddress(a order.Address) string {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("street")
	e.Str(a.Street)
	e.FieldStart("city")
	e.Str(a.City)
	e.FieldStart("postal_code")
	e.Str(a.PostalCode)
	e.FieldStart("country")
	e.Str(a.Country)
	if a.Phone != "" {
		e.FieldStart("phone")
		e.Str(a.Phone)
	}
	e.ObjEnd()
	return e.String()
}

func decodeAddress(raw string) (order.Address, error) {
	var a order.Address
	err := jx.DecodeStr(raw).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "street":
			a.Street, err = d.Str()
		case "city":
			a.City, err = d.Str()
		case "postal_code":
			a.PostalCode, err = d.Str()
		case "country":
			a.Country, err = d.Str()
		case "phone":
			a.Phone, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return order.Address{}, errors.Wrap(err, "decode address")
	}
	return a, nil
}

// putChunked stores value under key, splitting it into key_0..key_n plus a
// key_chunks count when it exceeds the per-value limit.
func putChunked(md map[string]string, key, value string) {
	runes := []rune(value)
	if len(runes) <= metadataValueLimit {
		md[key] = value
		return
	}
	n := 0
	for start := 0; start < len(runes); start += metadataValueLimit {
		end := min(start+metadataValueLimit, len(runes))
		md[fmt.Sprintf("%s_%d", key, n)] = string(runes[start:end])
		n++
	}
	md[key+"_chunks"] = strconv.Itoa(n)
}

// getChunked reverses putChunked.
func getChunked(md map[string]string, key string) (string, error) {
	raw, ok := md[key+"_chunks"]
	if !ok {
		return md[key], nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return "", errors.Wrapf(ErrInvalidMetadata, "%s_chunks=%q", key, raw)
	}
	var out []byte
	for i := range n {
		part, ok := md[fmt.Sprintf("%s_%d", key, i)]
		if !ok {
			return "", errors.Wrapf(ErrInvalidMetadata, "missing %s_%d", key, i)
		}
		out = append(out, part...)
	}
	return string(out), nil
}
