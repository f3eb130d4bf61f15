package notify

import (
	"fmt"
	"strconv"
)

// Notification is a rendered outbound message: what the scanners hand
// to the dispatcher, one copy per recipient. Data carries stable string
// fields for client-side deep links.
type Notification struct {
	Type    string
	Title   string
	Message string
	Data    map[string]string
}

// BuildPregnancyCheckDue renders the per-tenant aggregate the pending
// pregnancy-check scan produces.
func BuildPregnancyCheckDue(count int) Notification {
	noun := "inseminations"
	if count == 1 {
		noun = "insemination"
	}
	return Notification{
		Type:    TypePregnancyCheckDue,
		Title:   "Pregnancy checks due",
		Message: fmt.Sprintf("%d %s due for a pregnancy check", count, noun),
		Data: map[string]string{
			"count": strconv.Itoa(count),
		},
	}
}

// BuildCalvingExpectedSoon renders the per-tenant aggregate the
// upcoming-calving scan produces.
func BuildCalvingExpectedSoon(count, daysAhead int) Notification {
	noun := "calvings"
	if count == 1 {
		noun = "calving"
	}
	return Notification{
		Type:    TypeCalvingExpectedSoon,
		Title:   "Calvings expected soon",
		Message: fmt.Sprintf("%d %s expected within the next %d days", count, noun, daysAhead),
		Data: map[string]string{
			"count": strconv.Itoa(count),
			"days":  strconv.Itoa(daysAhead),
		},
	}
}

// BuildSemenStockLow renders a low-stock warning for one straw batch.
func BuildSemenStockLow(sireName string, currentQuantity int, batchCode string) Notification {
	if sireName == "" {
		sireName = "Unknown sire"
	}
	msg := fmt.Sprintf("Only %d straws left for %s", currentQuantity, sireName)
	if batchCode != "" {
		msg += fmt.Sprintf(" (batch %s)", batchCode)
	}
	return Notification{
		Type:    TypeSemenStockLow,
		Title:   "Semen stock low",
		Message: msg,
		Data: map[string]string{
			"sire_name":        sireName,
			"current_quantity": strconv.Itoa(currentQuantity),
			"batch_code":       batchCode,
		},
	}
}
