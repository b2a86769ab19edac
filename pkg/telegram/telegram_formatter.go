package telegram

import (
	"fmt"
)

// FormatEntryAlert builds the Markdown alert for a newly opened position.
func FormatEntryAlert(ticker string, qty int, fillPrice, initialStop float64) string {
	return fmt.Sprintf("📈 *BUY %s* — %d shares @ $%.2f | stop $%.2f", ticker, qty, fillPrice, initialStop)
}

// FormatExitAlert builds the Markdown alert for a closed position.
func FormatExitAlert(ticker string, qty int, fillPrice float64, reason string) string {
	return fmt.Sprintf("📉 *SELL %s* — %d shares @ $%.2f | reason: %s", ticker, qty, fillPrice, reason)
}
