package utils

import (
	"time"

	"github.com/dustin/go-humanize"
)

// FormatAddress shortens an address to 0x1234...5678.
func FormatAddress(address string) string {
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// FormatHash shortens a content address to its first and last 8 characters.
func FormatHash(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-8:]
}

func FormatTxHash(txHash string) string {
	if len(txHash) <= 18 {
		return txHash
	}
	return txHash[:10] + "..." + txHash[len(txHash)-8:]
}

// FormatFileSize renders bytes with binary units, e.g. "1.5 KiB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatTimestamp renders a ledger timestamp in UTC.
func FormatTimestamp(timestamp int64) string {
	if timestamp == 0 {
		return ""
	}
	return time.Unix(timestamp, 0).UTC().Format("Jan 2, 2006, 15:04 UTC")
}

// FormatAge renders a ledger timestamp relative to now, e.g. "3 hours ago".
func FormatAge(timestamp int64) string {
	if timestamp == 0 {
		return ""
	}
	return humanize.Time(time.Unix(timestamp, 0))
}

// TruncateText cuts text to maxLength runes and appends an ellipsis.
func TruncateText(text string, maxLength int) string {
	runes := []rune(text)
	if maxLength <= 0 || len(runes) <= maxLength {
		return text
	}
	return string(runes[:maxLength]) + "..."
}
