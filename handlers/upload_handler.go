package handlers

import (
	"net/url"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/gofiber/fiber/v2"

	"github.com/anjiri1684/hotel_booking/apperr"
	"github.com/anjiri1684/hotel_booking/logging"
)

const paymentProofFolder = "hotel_booking_payment_proofs"

// PaymentProofSignature signs a direct browser upload of a payment
// screenshot. The resulting URL is then submitted with mark_paid.
func (h *Handler) PaymentProofSignature(c *fiber.Ctx) error {
	if h.CloudinaryURL == "" {
		return apperr.Validation("uploads are not configured")
	}
	cld, err := cloudinary.NewFromURL(h.CloudinaryURL)
	if err != nil {
		logging.Log.Errorf("🔥 Failed to initialize Cloudinary: %v", err)
		return apperr.Persistence(err)
	}

	parsedURL, err := url.Parse(h.CloudinaryURL)
	if err != nil {
		return apperr.Persistence(err)
	}
	secret, _ := parsedURL.User.Password()

	paramsToSign, err := api.StructToParams(uploader.UploadParams{
		Folder: paymentProofFolder,
	})
	if err != nil {
		return apperr.Persistence(err)
	}

	timestamp := time.Now().Unix()
	paramsToSign.Set("timestamp", strconv.FormatInt(timestamp, 10))

	signature, err := api.SignParameters(paramsToSign, secret)
	if err != nil {
		return apperr.Persistence(err)
	}

	return c.JSON(fiber.Map{
		"signature":  signature,
		"timestamp":  timestamp,
		"api_key":    cld.Config.Cloud.APIKey,
		"cloud_name": cld.Config.Cloud.CloudName,
		"folder":     paymentProofFolder,
	})
}
