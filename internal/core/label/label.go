// Package label renders printable shipment labels: a QR code plus the
// device identifiers, sized for thermal label stock.
package label

import (
	"bytes"
	"encoding/base64"
	"html/template"

	qrcode "github.com/skip2/go-qrcode"
)

// Default label stock dimensions in millimetres.
const (
	DefaultWidthMM  = 50
	DefaultHeightMM = 30
)

// qrImageSize is the rendered QR PNG edge in pixels. The printer downscales;
// a generous size keeps handheld scanners reliable.
const qrImageSize = 256

// Label is a rendered printable label.
type Label struct {
	QRCode     string  `json:"qr_code"`
	DeviceName string  `json:"device_name"`
	IMEIShort  string  `json:"imei_short"`
	Capacity   string  `json:"capacity"`
	WidthMM    float64 `json:"width_mm"`
	HeightMM   float64 `json:"height_mm"`
	PNGBase64  string  `json:"png_base64"`
	HTML       string  `json:"html"`
}

// Options control label rendering.
type Options struct {
	WidthMM  float64
	HeightMM float64
}

var labelTmpl = template.Must(template.New("label").Parse(`<div style="font-family:Arial,sans-serif;">
  <div class="shiptrack-label" style="width:{{.WidthMM}}mm;height:{{.HeightMM}}mm;padding:3mm;box-sizing:border-box;border:1px dashed #d1d5db;display:flex;gap:4px;align-items:center;page-break-inside:avoid;">
    <div style="flex:0 0 50%;">
      <img src="data:image/png;base64,{{.PNGBase64}}" style="width:100%;height:auto;max-width:100%;" />
    </div>
    <div style="flex:1 1 50%;font-size:9px;line-height:1.2;">
      <div style="margin-bottom:2px;"><strong>QR:</strong> {{.QRCode}}</div>
      <div style="margin-bottom:2px;"><strong>TB:</strong> {{.DeviceName}}</div>
      <div style="margin-bottom:2px;"><strong>IMEI:</strong> {{.IMEIShort}}</div>
      <div><strong>Lỗi / Tình trạng:</strong> {{.Capacity}}</div>
    </div>
  </div>
</div>
`))

// Render builds the label for a shipment's identifiers. Only the last six
// IMEI digits print on the label.
func Render(qrCode, deviceName, imei, capacity string, opts Options) (*Label, error) {
	if opts.WidthMM <= 0 {
		opts.WidthMM = DefaultWidthMM
	}
	if opts.HeightMM <= 0 {
		opts.HeightMM = DefaultHeightMM
	}

	png, err := qrcode.Encode(qrCode, qrcode.Medium, qrImageSize)
	if err != nil {
		return nil, err
	}

	l := &Label{
		QRCode:     qrCode,
		DeviceName: deviceName,
		IMEIShort:  ShortIMEI(imei),
		Capacity:   capacity,
		WidthMM:    opts.WidthMM,
		HeightMM:   opts.HeightMM,
		PNGBase64:  base64.StdEncoding.EncodeToString(png),
	}

	var buf bytes.Buffer
	if err := labelTmpl.Execute(&buf, l); err != nil {
		return nil, err
	}
	l.HTML = buf.String()
	return l, nil
}

// ShortIMEI returns the last six digits of an IMEI, or the whole value when
// it is shorter than that.
func ShortIMEI(imei string) string {
	if len(imei) >= 6 {
		return imei[len(imei)-6:]
	}
	return imei
}
