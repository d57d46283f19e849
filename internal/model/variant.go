package model

// VariantKind names one output form of a processed image.
type VariantKind string

const (
	VariantOriginal    VariantKind = "original"
	VariantResized     VariantKind = "resized"
	VariantThumbnail   VariantKind = "thumbnail"
	VariantWatermarked VariantKind = "watermarked"
)

// VariantSet returns the requestable variants in display order.
func VariantSet() []VariantKind {
	return []VariantKind{VariantOriginal, VariantResized, VariantThumbnail, VariantWatermarked}
}

// DisplayHandle is a locally scoped reference to a retrieved payload.
// It must be released once it is no longer displayed.
type DisplayHandle struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// RetrievedVariant is one successfully fetched variant.
type RetrievedVariant struct {
	Kind        VariantKind   `json:"kind"`
	Payload     []byte        `json:"-"`
	ContentType string        `json:"content_type"`
	Width       int           `json:"width,omitempty"`  // zero if the payload could not be decoded
	Height      int           `json:"height,omitempty"` // zero if the payload could not be decoded
	Handle      DisplayHandle `json:"handle"`
}
