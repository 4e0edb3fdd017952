package scrape

// UnknownSeller is the sentinel stored when no seller name is found.
const UnknownSeller = "Unknown"

// Record is one normalized listing snapshot. URL is the identity; every
// other field is best-effort and may carry its zero/absent value.
type Record struct {
	URL         string
	Title       string
	PriceUSD    int
	OdometerKm  int
	SellerName  string
	Phone       *int64
	ImageURL    *string
	ImagesCount int
	PlateNumber *string
	VIN         *string
}

// Result is the outcome of one listing scrape attempt. Exactly one of
// Record and Skipped is set; skipped listings carry the drop reason.
type Result struct {
	Record  *Record
	Skipped string
}
