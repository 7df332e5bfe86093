package services

import (
	"context"
	"fmt"

	"github.com/zvmsbackend/zvms3/pkg/core/model"
	"github.com/zvmsbackend/zvms3/pkg/db"
)

// DetectKind classifies a volunteer from its status and quota rows. The quota rows
// are returned for class-quota volunteers only.
func DetectKind(ctx context.Context, tx db.QuotaQueries, volunteerID int64, status model.VolStatus) (model.VolKind, []db.ClassQuota, error) {
	if status == model.VolStatusSpecial {
		return model.VolKindSpecial, nil, nil
	}

	quotas, err := tx.ListClassQuotas(ctx, volunteerID)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to fetch class quotas: %w", err)
	}
	if len(quotas) > 0 {
		return model.VolKindInside, quotas, nil
	}
	return model.VolKindAppointed, nil, nil
}
