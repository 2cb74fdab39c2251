package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/domain/types"
	"github.com/secmon-lab/dermis/pkg/service/vision"
	"github.com/secmon-lab/dermis/pkg/utils/async"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

// SkinUseCase derives visual skin signals from photos
type SkinUseCase struct {
	photos interfaces.PhotoStore
}

// NewSkinUseCase creates a SkinUseCase. photos may be nil, in which case photos are
// not archived.
func NewSkinUseCase(photos interfaces.PhotoStore) *SkinUseCase {
	return &SkinUseCase{photos: photos}
}

// Analyze estimates a visual signal from images and archives them in the background
func (uc *SkinUseCase) Analyze(ctx context.Context, userID types.UserID, images [][]byte) (*model.VisualSignal, error) {
	signal := uc.estimate(ctx, userID, images)
	if signal == nil {
		return nil, goerr.Wrap(ErrNoImages, "every image is empty", goerr.V("count", len(images)))
	}
	return signal, nil
}

// estimate returns nil when no image carries data
func (uc *SkinUseCase) estimate(ctx context.Context, userID types.UserID, images [][]byte) *model.VisualSignal {
	signal := vision.Estimate(images)
	if signal == nil {
		return nil
	}

	logging.From(ctx).Debug("visual signal estimated",
		"detected_type", signal.DetectedType,
		"confidence", signal.Confidence,
		"concerns", signal.Concerns,
	)

	uc.archive(ctx, userID, images)
	return signal
}

func (uc *SkinUseCase) archive(ctx context.Context, userID types.UserID, images [][]byte) <-chan struct{} {
	if uc.photos == nil {
		done := make(chan struct{})
		close(done)
		return done
	}

	return async.Dispatch(ctx, "archive_photos", func(ctx context.Context) error {
		logger := logging.From(ctx)
		for i, img := range images {
			if len(img) == 0 {
				continue
			}
			name, err := uc.photos.Put(ctx, userID, img)
			if err != nil {
				return goerr.Wrap(err, "failed to archive photo", goerr.V("index", i), goerr.V(UserIDKey, userID))
			}
			logger.Debug("photo archived", "object", name)
		}
		return nil
	})
}
