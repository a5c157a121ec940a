// Package utils holds small helpers shared across domains.
package utils

// MaskPhone redacts a phone number for log output, leaving the country
// prefix and the last four digits visible. Numbers too short to mask
// meaningfully collapse to "****".
func MaskPhone(phone string) string {
	if len(phone) <= 6 {
		return "****"
	}
	return phone[:3] + "****" + phone[len(phone)-4:]
}
