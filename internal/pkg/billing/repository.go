package billing

import (
	"errors"
	"strings"
	"time"

	"github.com/shravanlabs/shravan/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides DB operations used by the billing service.
type Repository interface {
	UpsertSubscription(update SubscriptionUpdate) (*models.Subscription, bool, error)
	UpdateSubscriptionStatus(subscriptionID, status string, extra map[string]interface{}) (*models.Subscription, error)
	GetSubscriptionByExternalID(subscriptionID string) (*models.Subscription, error)
	ListSubscriptionsByUser(userID uint) ([]models.Subscription, error)
	SavePayment(payment *models.Payment) (bool, error)
	UpdatePaymentStatus(paymentID, status, metadata string) error
	GetPaymentByExternalID(paymentID string) (*models.Payment, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// UpsertSubscription applies a normalized update onto the row identified by
// the provider's external subscription id. Absent row: create with the fields
// as given. Present row: shallow-merge, leaving fields the update does not
// carry untouched so a sparse later event never erases previously known data.
// Applying the same update twice yields the same stored state both times.
func (r *gormRepository) UpsertSubscription(update SubscriptionUpdate) (*models.Subscription, bool, error) {
	externalID := strings.TrimSpace(update.SubscriptionID)
	if externalID == "" {
		return nil, false, ErrMissingSubscriptionID
	}

	var sub models.Subscription
	err := r.db.Where("subscription_id = ?", externalID).First(&sub).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}

		sub = models.Subscription{
			SubscriptionID:  externalID,
			UserID:          update.UserID,
			PlanID:          update.PlanID,
			Status:          update.Status,
			Provider:        update.Provider,
			StartDate:       update.StartDate,
			EndDate:         update.EndDate,
			NextBillingDate: update.NextBillingDate,
			IsTrial:         update.IsTrial,
			TrialEndDate:    update.TrialEndDate,
			UserCancelled:   update.UserCancelled,
			CancelledAt:     update.CancelledAt,
			Metadata:        update.Metadata,
		}
		if sub.Status == "" {
			sub.Status = models.SubStatusPending
		}
		if err := r.db.Create(&sub).Error; err != nil {
			return nil, false, err
		}
		return &sub, true, nil
	}

	mergeSubscription(&sub, update)
	if err := r.db.Save(&sub).Error; err != nil {
		return nil, false, err
	}
	return &sub, false, nil
}

// mergeSubscription overwrites only the fields the update actually carries.
// The two derived booleans are recomputed on every event and always win.
func mergeSubscription(sub *models.Subscription, update SubscriptionUpdate) {
	if update.UserID != nil {
		sub.UserID = update.UserID
	}
	if strings.TrimSpace(update.PlanID) != "" {
		sub.PlanID = update.PlanID
	}
	if strings.TrimSpace(update.Status) != "" {
		sub.Status = update.Status
	}
	if strings.TrimSpace(update.Provider) != "" {
		sub.Provider = update.Provider
	}
	if update.StartDate != nil {
		sub.StartDate = update.StartDate
	}
	if update.EndDate != nil {
		sub.EndDate = update.EndDate
	}
	if update.NextBillingDate != nil {
		sub.NextBillingDate = update.NextBillingDate
	}
	if update.TrialEndDate != nil {
		sub.TrialEndDate = update.TrialEndDate
	}
	if update.CancelledAt != nil {
		sub.CancelledAt = update.CancelledAt
	}
	if strings.TrimSpace(update.Metadata) != "" {
		sub.Metadata = update.Metadata
	}
	sub.IsTrial = update.IsTrial
	sub.UserCancelled = update.UserCancelled
}

// UpdateSubscriptionStatus flips status plus a small set of side attributes
// without re-deriving a full update. Restricted case of UpsertSubscription.
func (r *gormRepository) UpdateSubscriptionStatus(subscriptionID, status string, extra map[string]interface{}) (*models.Subscription, error) {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	for k, v := range extra {
		updates[k] = v
	}

	if err := r.db.Model(&models.Subscription{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(updates).Error; err != nil {
		return nil, err
	}

	return r.GetSubscriptionByExternalID(subscriptionID)
}

func (r *gormRepository) GetSubscriptionByExternalID(subscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("subscription_id = ?", subscriptionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("updated_at DESC").Find(&subs).Error
	return subs, err
}

// SavePayment inserts a charge attempt or, when the provider redelivers the
// same payment id, overwrites the authoritative fields in place.
func (r *gormRepository) SavePayment(payment *models.Payment) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "payment_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"amount",
			"currency",
			"user_id",
			"subscription_id",
			"method",
			"metadata",
			"updated_at",
		}),
	}).Create(payment)
	if tx.Error != nil {
		return false, tx.Error
	}
	created := tx.RowsAffected > 0

	// Ensure ID is populated after upsert.
	if err := r.db.Where("payment_id = ?", payment.PaymentID).First(payment).Error; err != nil {
		return false, err
	}
	return created, nil
}

func (r *gormRepository) UpdatePaymentStatus(paymentID, status, metadata string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if strings.TrimSpace(metadata) != "" {
		updates["metadata"] = metadata
	}
	return r.db.Model(&models.Payment{}).
		Where("payment_id = ?", paymentID).
		Updates(updates).Error
}

func (r *gormRepository) GetPaymentByExternalID(paymentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("payment_id = ?", paymentID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
