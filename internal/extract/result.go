package extract

import "time"

const (
	// DefaultBrand is used when no merchant could be recognized.
	DefaultBrand = "기타"
	// DefaultProductName is used when no product name could be recognized.
	DefaultProductName = "상품명 미인식"
	// BasicProductName names a voucher saved without any recognized text.
	BasicProductName = "기프티콘"
)

// Result holds the fields read off one voucher scan.
type Result struct {
	Brand          string    `json:"brand"`
	ProductName    string    `json:"product_name"`
	ExpirationDate time.Time `json:"expiration_date"`
	ImageData      []byte    `json:"-"`
}

// NewResult returns an empty Result whose expiration date is already the
// 30-day default for a scan made at now.
func NewResult(now time.Time) Result {
	return Result{ExpirationDate: DefaultExpirationDate(now)}
}

// BasicInfo is the Result recorded when recognition produced nothing usable.
func BasicInfo(now time.Time) Result {
	return Result{
		Brand:          DefaultBrand,
		ProductName:    BasicProductName,
		ExpirationDate: DefaultExpirationDate(now),
	}
}

func (r *Result) applyDefaults() {
	if r.Brand == "" {
		r.Brand = DefaultBrand
	}
	if r.ProductName == "" {
		r.ProductName = DefaultProductName
	}
}
