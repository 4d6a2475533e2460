package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

// Group messages run in Vietnamese and use Telegram's HTML parse mode.
// IMEIs are always masked before they reach the chat.

const timeLayout = "02/01/2006 15:04"

// FormatShipmentReceived builds the message announcing a new device in the
// pipeline.
func FormatShipmentReceived(s *domain.Shipment) string {
	var b strings.Builder
	b.WriteString("📦 <b>Đã nhận hàng</b>\n")
	fmt.Fprintf(&b, "Mã QR: <code>%s</code>\n", html.EscapeString(s.QRCode))
	fmt.Fprintf(&b, "Thiết bị: %s\n", html.EscapeString(s.DeviceName))
	fmt.Fprintf(&b, "IMEI: <code>%s</code>\n", domain.MaskIMEI(s.IMEI))
	fmt.Fprintf(&b, "Lỗi: %s\n", html.EscapeString(s.Capacity))
	fmt.Fprintf(&b, "NCC: %s\n", html.EscapeString(s.Supplier))
	fmt.Fprintf(&b, "Loại yêu cầu: %s\n", html.EscapeString(string(s.RequestType)))
	if s.StoreName != "" {
		fmt.Fprintf(&b, "Cửa hàng: %s\n", html.EscapeString(s.StoreName))
	}
	fmt.Fprintf(&b, "Thời gian: %s", s.SentTime.Format(timeLayout))
	return b.String()
}

// FormatShipmentImages builds the caption for newly uploaded device photos.
func FormatShipmentImages(s *domain.Shipment, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📷 <b>Ảnh thiết bị</b> (%d ảnh)\n", count)
	fmt.Fprintf(&b, "Mã QR: <code>%s</code>\n", html.EscapeString(s.QRCode))
	fmt.Fprintf(&b, "Thiết bị: %s\n", html.EscapeString(s.DeviceName))
	fmt.Fprintf(&b, "Trạng thái: %s", html.EscapeString(string(s.Status)))
	return b.String()
}

// FormatImageLinks appends Drive links to a caption for the text fallback
// when photo upload fails.
func FormatImageLinks(caption string, urls []string) string {
	var b strings.Builder
	b.WriteString(caption)
	for i, u := range urls {
		fmt.Fprintf(&b, "\n<a href=\"%s\">Ảnh %d</a>", html.EscapeString(u), i+1)
	}
	return b.String()
}

// FormatTransferCompleted builds the message announcing a completed transfer
// slip with its member devices.
func FormatTransferCompleted(slip *domain.TransferSlip, shipments []domain.Shipment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ <b>Hoàn thành phiếu chuyển</b> <code>%s</code>\n", html.EscapeString(slip.TransferCode))
	fmt.Fprintf(&b, "Số máy: %d\n", len(shipments))
	for i, s := range shipments {
		fmt.Fprintf(&b, "%d. %s - <code>%s</code>\n", i+1, html.EscapeString(s.DeviceName), domain.MaskIMEI(s.IMEI))
	}
	if slip.Notes != "" {
		fmt.Fprintf(&b, "Ghi chú: %s\n", html.EscapeString(slip.Notes))
	}
	completedAt := time.Now()
	if slip.CompletedAt != nil {
		completedAt = *slip.CompletedAt
	}
	fmt.Fprintf(&b, "Thời gian: %s", completedAt.Format(timeLayout))
	return b.String()
}
