package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"github.com/jung-kurt/gofpdf"
)

// Generates local attachment fixtures so the media kind sniffing and
// the send-message flow can be exercised without real user files.
func main() {
	outputDir := "./test_data"
	err := os.MkdirAll(outputDir, 0755)
	if err != nil {
		panic(fmt.Sprintf("Unable to create output dir: %v", err))
	}

	fmt.Println("🚀 Booking-Sync : generating attachment fixtures...")

	// 1. A real PDF, sniffed as a generic file attachment
	pdfPath := filepath.Join(outputDir, "booking_invoice.pdf")
	genPDF(pdfPath)

	// 2. A PNG image, sniffed as an image attachment
	imgPath := filepath.Join(outputDir, "venue_photo.png")
	genImage(imgPath)

	// 3. A plain text fallback
	txtPath := filepath.Join(outputDir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("seat row 12, aisle side\n"), 0644); err != nil {
		panic(fmt.Sprintf("Unable to write text fixture: %v", err))
	}

	fmt.Println("\n✅ Done. Point ATTACHMENT fixtures at ./test_data")
}

// genPDF creates a small invoice-looking document
func genPDF(path string) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 20)
	pdf.Cell(40, 20, "Booking invoice")
	pdf.Ln(20)

	pdf.SetFont("Arial", "", 12)
	content := "Event: sample booking\n" +
		"This document exists only to exercise attachment sniffing."
	pdf.MultiCell(0, 10, content, "", "", false)

	err := pdf.OutputFileAndClose(path)
	if err != nil {
		panic(fmt.Sprintf("PDF generation failed: %v", err))
	}
	fmt.Printf("  📄 %s\n", path)
}

// genImage draws a flat color swatch, enough for MIME detection
func genImage(path string) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for x := 0; x < 64; x++ {
		for y := 0; y < 64; y++ {
			img.Set(x, y, color.RGBA{R: 30, G: 144, B: 255, A: 255})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		panic(fmt.Sprintf("Unable to create image: %v", err))
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		panic(fmt.Sprintf("PNG encoding failed: %v", err))
	}
	fmt.Printf("  🖼️  %s\n", path)
}
