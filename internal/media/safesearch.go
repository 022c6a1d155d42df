package media

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"
)

type SafeSearchResult struct {
	Adult    string
	Violence string
	Racy     string
	Spoof    string
	Medical  string
}

func isLikelyOrHigher(l string) bool {
	return l == "LIKELY" || l == "VERY_LIKELY"
}

func (r *SafeSearchResult) IsUnsafe() bool {
	return isLikelyOrHigher(r.Adult) || isLikelyOrHigher(r.Violence) || isLikelyOrHigher(r.Racy)
}

// Moderator decides whether a stored image may be published.
type Moderator interface {
	Check(ctx context.Context, gcsURI string) (*SafeSearchResult, error)
}

// SafeSearch runs Vision SAFE_SEARCH_DETECTION against images already in
// Cloud Storage.
type SafeSearch struct {
	svc *vision.Service
}

func NewSafeSearch(ctx context.Context, opts ...option.ClientOption) (*SafeSearch, error) {
	opts = append([]option.ClientOption{option.WithScopes(vision.CloudPlatformScope)}, opts...)
	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision service: %w", err)
	}
	return &SafeSearch{svc: svc}, nil
}

func (s *SafeSearch) Check(ctx context.Context, gcsURI string) (*SafeSearchResult, error) {
	req := &vision.AnnotateImageRequest{
		Image: &vision.Image{
			Source: &vision.ImageSource{GcsImageUri: gcsURI},
		},
		Features: []*vision.Feature{
			{Type: "SAFE_SEARCH_DETECTION"},
		},
	}

	resp, err := s.svc.Images.Annotate(&vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{req},
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Responses) == 0 || resp.Responses[0].SafeSearchAnnotation == nil {
		return &SafeSearchResult{}, nil
	}
	ss := resp.Responses[0].SafeSearchAnnotation
	return &SafeSearchResult{
		Adult:    ss.Adult,
		Violence: ss.Violence,
		Racy:     ss.Racy,
		Spoof:    ss.Spoof,
		Medical:  ss.Medical,
	}, nil
}
