// pkg/templates/render.go
package templates

import (
	"fmt"
	"regexp"

	"leadflow/internal/models"
)

var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render substitutes {{field}} placeholders in a template body with values
// from the lead. Unknown placeholders are left in place so a bad template is
// visible in the output instead of silently blank.
func Render(body string, lead models.Lead) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(match string) string {
		field := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := leadField(lead, field); ok {
			return v
		}
		return match
	})
}

func leadField(l models.Lead, field string) (string, bool) {
	switch field {
	case "address":
		return l.Address, true
	case "city":
		return l.City, true
	case "state":
		return l.State, true
	case "zip":
		return l.Zip, true
	case "sellerPhone":
		return l.SellerPhone, true
	case "status":
		return string(l.Status), true
	case "followUpDate":
		return l.FollowUpDate, true
	case "listingPrice":
		return formatAmount(l.ListingPrice), true
	case "arv":
		return formatAmount(l.ARV.Value), true
	case "rehab":
		return formatAmount(l.Rehab.Value), true
	case "rent":
		return formatAmount(l.Rent.Value), true
	case "mao":
		return formatAmount(l.MAO), true
	case "spreadPercent":
		return formatAmount(l.SpreadPercent), true
	case "leadScore":
		return fmt.Sprintf("%d", l.LeadScore), true
	}
	return "", false
}

// formatAmount prints whole dollars without a decimal tail.
func formatAmount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
