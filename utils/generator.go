package utils

import (
	"errors"
	"math/rand"
	"time"

	"github.com/anjiri1684/hotel_booking/models"
	"gorm.io/gorm"
)

const referenceCodeLength = 8
const referencePrefix = "BK"
const letterBytes = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const maxCodeAttempts = 10

var ErrReferenceExhausted = errors.New("could not generate a unique booking reference")

// GenerateUniqueReferenceCode returns a booking reference such as
// BK7Q2M9XZA that is not yet used by any booking visible to tx.
func GenerateUniqueReferenceCode(tx *gorm.DB) (string, error) {
	seededRand := rand.New(rand.NewSource(time.Now().UnixNano()))

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		b := make([]byte, referenceCodeLength)
		for i := range b {
			b[i] = letterBytes[seededRand.Intn(len(letterBytes))]
		}
		code := referencePrefix + string(b)

		var count int64
		if err := tx.Model(&models.Booking{}).Where("reference_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", ErrReferenceExhausted
}
