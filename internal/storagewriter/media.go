package storagewriter

import "context"

// MediaInfo is what the media service returns for a resolved media ID.
type MediaInfo struct {
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
}

// MediaVerifier resolves media IDs referenced by a message's content. IDs
// absent from the returned map are orphans: their metadata could not be
// found and the record is annotated rather than rejected.
type MediaVerifier interface {
	VerifyMedia(ctx context.Context, mediaIDs []string) (map[string]MediaInfo, error)
}

// NoopVerifier treats every media ID as an orphan; it is the default for
// deployments that don't wire a media service, and for tests.
type NoopVerifier struct{}

func (NoopVerifier) VerifyMedia(_ context.Context, _ []string) (map[string]MediaInfo, error) {
	return map[string]MediaInfo{}, nil
}
