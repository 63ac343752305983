package checkout

import (
	"context"
	"errors"
	"time"

	"tienda/events"
	"tienda/identity"
	"tienda/models"
	"tienda/utils"
)

// ErrUnknownPayment rejects an unrecognized confirmation kind.
var ErrUnknownPayment = errors.New("unknown payment kind")

// Confirm finalizes a paid cart. Card payments convert the current
// line items into immutable purchase records and mark the cart paid;
// cash and bank transfers are confirmed out of band when the money
// actually clears, so only the cart id rotates. Either way the caller
// ends up with a fresh empty cart, whose id is returned.
func (s *Service) Confirm(ctx context.Context, id identity.Identity, paymentKind string) (string, *identity.Issued, error) {
	switch paymentKind {
	case models.PaymentCard, models.PaymentCash, models.PaymentBankTransfer:
	default:
		return "", nil, ErrUnknownPayment
	}

	if paymentKind == models.PaymentCard {
		if err := s.finalizePurchases(ctx, id); err != nil {
			return "", nil, err
		}
	}

	f := &flow{id: id, issued: &identity.Issued{}}
	newCartID, err := s.rotateCart(ctx, f)
	if err != nil {
		return "", nil, err
	}

	issued := f.issued
	if issued.Access == "" && issued.Refresh == "" && issued.Session == nil {
		issued = nil
	}
	return newCartID, issued, nil
}

func (s *Service) finalizePurchases(ctx context.Context, id identity.Identity) error {
	items, err := s.store.ListItems(ctx, id.CartID)
	if err != nil {
		return err
	}

	now := time.Now()
	purchases := make([]models.Purchase, 0, len(items))
	for _, item := range items {
		purchases = append(purchases, models.Purchase{
			PurchaseID:    utils.NewPurchaseID(),
			CartID:        item.CartID,
			UserID:        id.UserID,
			VariantID:     item.VariantID,
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			Price:         item.Price,
			DiscountPrice: item.DiscountPrice,
			Name:          item.Name,
			SKU:           item.SKU,
			BoughtAt:      now,
		})
	}
	if err := s.store.InsertPurchases(ctx, purchases); err != nil {
		return err
	}

	meta, err := s.store.GetMeta(ctx, id.CartID)
	if err != nil {
		return err
	}
	meta.Status = models.StatusPaid
	meta.ExpireDate = nil
	if err := s.store.SaveMeta(ctx, meta); err != nil {
		return err
	}

	if err := s.store.DeleteItems(ctx, id.CartID); err != nil {
		return err
	}
	if err := s.store.DeleteReservations(ctx, id.CartID); err != nil {
		return err
	}

	s.emitter.Emit(ctx, events.OrderPaid, events.Message{CartID: id.CartID, UserID: id.UserID})
	return nil
}
