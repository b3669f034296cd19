package services

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/logging"
	"github.com/anjiri1684/hotel_booking/models"
	"github.com/anjiri1684/hotel_booking/utils"
)

//go:embed templates/receipt.html
var receiptTemplateSource string

var receiptTemplate = template.Must(template.New("receipt").Parse(receiptTemplateSource))

type receiptData struct {
	ReferenceCode string
	IssuedOn      string
	GuestName     string
	RoomNumber    string
	RoomType      string
	CheckIn       string
	CheckOut      string
	Nights        int
	TransactionID string
	Currency      string
	TotalAmount   float64
	AdvancePaid   float64
	BalanceDue    float64
}

type PDFRenderer func(ctx context.Context, html string) ([]byte, error)

type Uploader func(ctx context.Context, data []byte, publicID string) (string, error)

type ReceiptService struct {
	db     *gorm.DB
	render PDFRenderer
	upload Uploader
}

func NewReceiptService(db *gorm.DB, render PDFRenderer, upload Uploader) *ReceiptService {
	return &ReceiptService{db: db, render: render, upload: upload}
}

// GenerateReceipt renders a PDF receipt for a paid booking and returns the
// URL it was uploaded to.
func (s *ReceiptService) GenerateReceipt(ctx context.Context, admin models.Actor, bookingID uuid.UUID) (string, error) {
	if !admin.IsAdmin() {
		return "", apperr.ErrForbidden
	}
	if s.render == nil || s.upload == nil {
		return "", apperr.Validation("receipt generation is not configured")
	}

	var b models.Booking
	if err := s.db.WithContext(ctx).Preload("Room").First(&b, "id = ?", bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.ErrBookingNotFound
		}
		return "", apperr.Persistence(err)
	}
	if st, _ := b.State(); st != models.StateConfirmed && st != models.StateCheckedIn {
		return "", apperr.Validation("receipts are only issued for paid bookings")
	}

	var p models.Payment
	if err := s.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", b.ID, models.PaymentCompleted).
		Order("processed_at DESC").First(&p).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperr.Persistence(err)
	}

	html, err := RenderReceiptHTML(&b, &p, time.Now())
	if err != nil {
		return "", err
	}
	pdf, err := s.render(ctx, html)
	if err != nil {
		logging.Log.Errorf("🔥 Failed to generate PDF: %v", err)
		return "", apperr.With(apperr.ErrPersistence, err)
	}
	url, err := s.upload(ctx, pdf, fmt.Sprintf("receipts/%s_%s", b.ReferenceCode, uuid.NewString()))
	if err != nil {
		logging.Log.Errorf("🔥 Failed to upload receipt to Cloudinary: %v", err)
		return "", apperr.With(apperr.ErrPersistence, err)
	}

	logging.Log.Infof("✅ Generated receipt for booking %s", b.ReferenceCode)
	return url, nil
}

func RenderReceiptHTML(b *models.Booking, p *models.Payment, issued time.Time) (string, error) {
	currency := p.Currency
	if currency == "" {
		currency = "INR"
	}
	data := receiptData{
		ReferenceCode: b.ReferenceCode,
		IssuedOn:      issued.Format("January 2, 2006"),
		GuestName:     b.GuestName,
		RoomNumber:    b.Room.Number,
		RoomType:      b.Room.RoomType,
		CheckIn:       b.CheckIn.Format(utils.DateLayout),
		CheckOut:      b.CheckOut.Format(utils.DateLayout),
		Nights:        b.Nights,
		TransactionID: p.TransactionID,
		Currency:      currency,
		TotalAmount:   b.TotalAmount,
		AdvancePaid:   b.AdvancePaid,
		BalanceDue:    b.BalanceDue,
	}
	var out bytes.Buffer
	if err := receiptTemplate.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}

// ChromePDFRenderer prints HTML with headless Chrome, either a local browser
// or the remote debugging endpoint in remoteURL.
func ChromePDFRenderer(remoteURL string) PDFRenderer {
	return func(ctx context.Context, htmlContent string) ([]byte, error) {
		allocCtx, cancelAlloc := context.WithCancel(ctx)
		defer cancelAlloc()
		if remoteURL != "" {
			allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(allocCtx, remoteURL)
			defer cancelAlloc()
		}
		cctx, cancel := chromedp.NewContext(allocCtx)
		defer cancel()
		cctx, cancelTimeout := context.WithTimeout(cctx, 30*time.Second)
		defer cancelTimeout()

		var pdfBuffer []byte
		err := chromedp.Run(cctx,
			chromedp.Navigate("about:blank"),
			chromedp.ActionFunc(func(ctx context.Context) error {
				frameTree, err := page.GetFrameTree().Do(ctx)
				if err != nil {
					return err
				}
				return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
			}),
			chromedp.ActionFunc(func(ctx context.Context) error {
				pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
				if err != nil {
					return err
				}
				pdfBuffer = pdf
				return nil
			}),
		)
		if err != nil {
			return nil, err
		}
		return pdfBuffer, nil
	}
}

func CloudinaryUploader(cloudinaryURL string) (Uploader, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, data []byte, publicID string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		res, err := cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
			PublicID:     publicID,
			Folder:       "hotel_booking_receipts",
			ResourceType: "raw",
		})
		if err != nil {
			return "", err
		}
		return res.SecureURL, nil
	}, nil
}
