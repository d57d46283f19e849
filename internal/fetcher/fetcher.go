package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/model"
)

// variantClient downloads a single variant of a job.
type variantClient interface {
	Variant(ctx context.Context, id string, kind model.VariantKind) ([]byte, string, error)
}

// handleStore turns payloads into display handles and releases them.
type handleStore interface {
	Create(ctx context.Context, id string, kind model.VariantKind, payload []byte, contentType string) (model.DisplayHandle, error)
	Release(ctx context.Context, h model.DisplayHandle) error
}

// Fetcher retrieves the variants of a completed job.
type Fetcher struct {
	client variantClient
	store  handleStore
}

// New creates a Fetcher.
func New(client variantClient, store handleStore) *Fetcher {
	return &Fetcher{client: client, store: store}
}

type outcome struct {
	variant model.RetrievedVariant
	err     error
}

// FetchAll returns a sequence over the available variants of job id, in
// model.VariantSet order. Iteration dispatches every request at once;
// a variant that cannot be fetched is logged and skipped. The sequence
// can be ranged over only once.
//
// Handles of variants that were fetched but never yielded, because the
// consumer stopped early, are released by the fetcher.
func (f *Fetcher) FetchAll(ctx context.Context, id string) iter.Seq[model.RetrievedVariant] {
	var used atomic.Bool

	return func(yield func(model.RetrievedVariant) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}

		kinds := model.VariantSet()
		fetchCtx, cancel := context.WithCancel(ctx)

		slots := make([]chan outcome, len(kinds))
		for i, kind := range kinds {
			slots[i] = make(chan outcome, 1)
			go func() {
				v, err := f.fetch(fetchCtx, id, kind)
				slots[i] <- outcome{variant: v, err: err}
			}()
		}

		for i, kind := range kinds {
			out := <-slots[i]
			if out.err != nil {
				zlog.Logger.Warn().
					Err(out.err).
					Str("id", id).
					Str("variant", string(kind)).
					Msg("variant unavailable")
				continue
			}

			if !yield(out.variant) {
				cancel()
				go f.discard(context.WithoutCancel(ctx), slots[i+1:])
				return
			}
		}

		cancel()
	}
}

func (f *Fetcher) fetch(ctx context.Context, id string, kind model.VariantKind) (model.RetrievedVariant, error) {
	payload, contentType, err := f.client.Variant(ctx, id, kind)
	if err != nil {
		return model.RetrievedVariant{}, err
	}

	v := model.RetrievedVariant{
		Kind:        kind,
		Payload:     payload,
		ContentType: contentType,
	}

	// Dimensions are informational; formats imaging cannot read are still displayed.
	if img, err := imaging.Decode(bytes.NewReader(payload), imaging.AutoOrientation(true)); err == nil {
		b := img.Bounds()
		v.Width, v.Height = b.Dx(), b.Dy()
	} else {
		zlog.Logger.Debug().Err(err).Str("variant", string(kind)).Msg("payload is not a decodable image")
	}

	h, err := f.store.Create(ctx, id, kind, payload, contentType)
	if err != nil {
		return model.RetrievedVariant{}, fmt.Errorf("create display handle: %w", err)
	}
	v.Handle = h

	return v, nil
}

// discard waits for the remaining requests and releases whatever they produced.
func (f *Fetcher) discard(ctx context.Context, slots []chan outcome) {
	for _, ch := range slots {
		out := <-ch
		if out.err != nil {
			continue
		}

		if err := f.store.Release(ctx, out.variant.Handle); err != nil {
			zlog.Logger.Err(err).Str("variant", string(out.variant.Kind)).Msg("failed to release display handle")
		}
	}
}
