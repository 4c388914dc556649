package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kirinyoku/tix-auction/internal/domain"
	"github.com/kirinyoku/tix-auction/internal/money"
)

// Receipt is the archived form of a settlement.
type Receipt struct {
	domain.SettlementResult
	FinalPriceDisplay string `json:"final_price_display"`
}

type ReceiptArchiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

func NewReceiptArchiver(client ObjectPutter, bucket, prefix string) *ReceiptArchiver {
	if prefix == "" {
		prefix = "settlements"
	}
	return &ReceiptArchiver{client: client, bucket: bucket, prefix: prefix}
}

// ReceiptKey is the object key for an auction's receipt. Settled auctions are
// grouped by month.
func (a *ReceiptArchiver) ReceiptKey(res domain.SettlementResult) string {
	return fmt.Sprintf("%s/%s/%s.json", a.prefix, res.SettledAt.UTC().Format("2006-01"), res.AuctionID)
}

// Archive uploads the receipt. Re-archiving the same auction overwrites it.
func (a *ReceiptArchiver) Archive(ctx context.Context, res domain.SettlementResult) error {
	const op = "s3blob.ReceiptArchiver.Archive"

	body, err := json.Marshal(Receipt{
		SettlementResult:  res,
		FinalPriceDisplay: money.Format(res.FinalPrice),
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	key := a.ReceiptKey(res)

	if _, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	}); err != nil {
		return fmt.Errorf("%s: put %s: %w", op, key, err)
	}

	return nil
}
