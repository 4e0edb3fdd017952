package scrape

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// The detail page embeds a JSON config for the "show phone" control:
// `"id":"autoPhone" ... "actionData": { ... }`. Posting that actionData
// to the popup endpoint returns the seller's phone number.
const (
	phoneControlMarker = `"id":"autoPhone"`
	actionDataKey      = `"actionData":`
	phonePopupPath     = "/bff/final-page/public/auto/popUp/"
	riaSourceTag       = "vue3-1.41.10"
)

var (
	telLinkRe     = regexp.MustCompile(`tel:\s*\(?\+?\d[\d\s()-]{8,}`)
	phoneFormatRe = regexp.MustCompile(`\(0\d{2}\)\s*\d{3}\s*\d{2}\s*\d{2}`)
	nonDigitRe    = regexp.MustCompile(`\D`)
)

// Ukrainian mobile operator codes, for digit strings missing the
// leading zero.
var mobileOperatorCodes = map[string]struct{}{
	"39": {}, "50": {}, "63": {}, "66": {}, "67": {}, "68": {}, "73": {},
	"91": {}, "92": {}, "93": {}, "94": {}, "95": {}, "96": {}, "97": {},
	"98": {}, "99": {},
}

// ExtractPhonePayload locates the autoPhone control's actionData object
// in raw detail page markup. It reports false when the marker or the
// object boundary cannot be resolved, or the object is not valid JSON.
func ExtractPhonePayload(html string) (map[string]any, bool) {
	idx := strings.Index(html, phoneControlMarker)
	if idx < 0 {
		return nil, false
	}
	actionIdx := strings.Index(html[idx:], actionDataKey)
	if actionIdx < 0 {
		return nil, false
	}
	obj, ok := extractJSONObject(html, idx+actionIdx)
	if !ok {
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// phoneFromPopupResponse scans the raw popup response for a phone
// number, preferring tel: links over the formatted "(0XX) XXX XX XX"
// idiom, and normalizes the digits. Returns nil when nothing resolves.
func phoneFromPopupResponse(raw []byte) *int64 {
	text := string(raw)

	if m := telLinkRe.FindString(text); m != "" {
		if phone, ok := normalizePhoneDigits(nonDigitRe.ReplaceAllString(m, "")); ok {
			return &phone
		}
	}
	if m := phoneFormatRe.FindString(text); m != "" {
		if phone, ok := normalizePhoneDigits(nonDigitRe.ReplaceAllString(m, "")); ok {
			return &phone
		}
	}
	return nil
}

// normalizePhoneDigits converts a digit string into the canonical
// 12-digit international form (380XXXXXXXXX). Anything it cannot
// normalize unambiguously is rejected rather than stored as a guess.
func normalizePhoneDigits(digits string) (int64, bool) {
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "380"):
		// Already canonical.
	case len(digits) == 10 && strings.HasPrefix(digits, "0"):
		digits = "38" + digits
	case len(digits) == 9:
		if _, ok := mobileOperatorCodes[digits[:2]]; !ok {
			return 0, false
		}
		digits = "380" + digits
	case len(digits) >= 11 && len(digits) <= 13 && strings.HasPrefix(digits, "380"):
		if len(digits) > 12 {
			digits = digits[:12]
		}
	default:
		return 0, false
	}

	phone, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return phone, true
}
