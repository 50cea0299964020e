package report

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/skip2/go-qrcode"
)

// PrintReportQR writes an ASCII QR code encoding reportPath to w, for an
// engineer standing next to the physical rig to scan with a phone
// instead of typing the path. Gated on stdout being a terminal by the
// caller (see ShouldDrawQR); PrintReportQR itself just draws.
func PrintReportQR(w io.Writer, reportPath string) error {
	qr, err := qrcode.New(reportPath, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("report: build qr code: %w", err)
	}
	fmt.Fprintln(w, qr.ToSmallString(false))
	return nil
}

// ShouldDrawQR reports whether stdout is an interactive terminal, so a
// run piped into a log file or CI artifact doesn't get ANSI QR noise.
func ShouldDrawQR() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}
