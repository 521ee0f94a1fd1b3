package payments

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/angelmondragon/harvestlink-backend/pkg/types"
)

const qrImageSize = 256

// upiLink builds a upi://pay deep link. Parameters keep the order UPI apps
// document: pa, pn, am, cu, tn.
func upiLink(payeeID, payeeName string, amountPaise int64, note string) string {
	params := [][2]string{
		{"pa", payeeID},
		{"pn", payeeName},
		{"am", types.Paise(amountPaise).Rupees()},
		{"cu", "INR"},
		{"tn", note},
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		parts = append(parts, p[0]+"="+escapeUPI(p[1]))
	}
	return "upi://pay?" + strings.Join(parts, "&")
}

func escapeUPI(v string) string {
	escaped := url.QueryEscape(v)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	return strings.ReplaceAll(escaped, "%40", "@")
}

func orderNote(orderID uuid.UUID) string {
	return fmt.Sprintf("HarvestLink order %s", strings.ToUpper(orderID.String()[:8]))
}

func renderQR(link string) ([]byte, error) {
	return qrcode.Encode(link, qrcode.Medium, qrImageSize)
}
