// Package receipts renders pickup QR codes and payment slips for
// orders awaiting cash or offline payment.
package receipts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"tienda/models"
)

var (
	ErrNoSlip   = errors.New("receipts: order has no pending offline charge")
	ErrNoPickup = errors.New("receipts: order is not a cash order")
)

// Store loads the order record behind a receipt.
type Store interface {
	GetMeta(ctx context.Context, cartID string) (*models.CartMeta, error)
	ListItems(ctx context.Context, cartID string) ([]models.LineItem, error)
}

// Service signs pickup payloads and renders documents.
type Service struct {
	store  Store
	secret []byte
}

func NewService(store Store, secret []byte) *Service {
	return &Service{store: store, secret: secret}
}

// pickupPayload is what store staff scan at the counter. The HMAC
// proves the code came from us and was not hand-typed.
func (s *Service) pickupPayload(meta *models.CartMeta) string {
	data := fmt.Sprintf("%s|%s|%d", meta.CartID, meta.Status, time.Now().Unix())
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(data))
	sig := base64.StdEncoding.EncodeToString(h.Sum(nil))
	return data + "|" + sig
}

// PickupQR returns a PNG QR code for a cash order. Cancelled orders
// and card orders have nothing to present at the counter.
func (s *Service) PickupQR(ctx context.Context, orderID string) ([]byte, error) {
	meta, err := s.store.GetMeta(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !meta.PayInCash || meta.Status == models.StatusCancelled {
		return nil, ErrNoPickup
	}
	return qrcode.Encode(s.pickupPayload(meta), qrcode.Medium, 256)
}

// PaymentSlip renders a PDF with the SPEI or OXXO payment details of
// a pending offline order.
func (s *Service) PaymentSlip(ctx context.Context, orderID string) ([]byte, error) {
	meta, err := s.store.GetMeta(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if meta.BankInfo == nil && meta.OxxoInfo == nil {
		return nil, ErrNoSlip
	}

	items, err := s.store.ListItems(ctx, orderID)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, "Ficha de pago")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Pedido: %s", meta.CartID))
	pdf.Ln(8)

	switch {
	case meta.BankInfo != nil:
		info := meta.BankInfo
		pdf.Cell(0, 8, fmt.Sprintf("Banco: %s", info.Bank))
		pdf.Ln(8)
		pdf.Cell(0, 8, fmt.Sprintf("CLABE: %s", info.CLABE))
		pdf.Ln(8)
		pdf.Cell(0, 8, fmt.Sprintf("Monto: %s MXN", formatAmount(info.Amount)))
		pdf.Ln(8)
		pdf.Cell(0, 8, fmt.Sprintf("Pagar antes de: %s", info.ExpiresAt.Format("02/01/2006 15:04")))
	case meta.OxxoInfo != nil:
		info := meta.OxxoInfo
		pdf.Cell(0, 8, fmt.Sprintf("Referencia OXXO: %s", info.Reference))
		pdf.Ln(8)
		pdf.Cell(0, 8, fmt.Sprintf("Monto: %s MXN", formatAmount(info.Amount)))
		pdf.Ln(8)
		pdf.Cell(0, 8, fmt.Sprintf("Pagar antes de: %s", info.ExpiresAt.Format("02/01/2006 15:04")))
	}
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Articulos")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 11)
	for _, item := range items {
		pdf.Cell(0, 7, fmt.Sprintf("%s x%d  %s MXN",
			item.Name, item.Quantity, formatAmount(item.UnitPrice()*int64(item.Quantity))))
		pdf.Ln(7)
	}

	if meta.OxxoInfo != nil && meta.OxxoInfo.BarcodeURL == "" {
		// No hosted barcode; embed a QR of the reference instead.
		png, err := qrcode.Encode(meta.OxxoInfo.Reference, qrcode.Medium, 256)
		if err == nil {
			opts := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader("ref", opts, bytes.NewReader(png))
			pdf.ImageOptions("ref", 150, 30, 40, 40, false, opts, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}
