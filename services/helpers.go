package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teamtrack/teamtrack/models"
	"github.com/teamtrack/teamtrack/repositories"
	"github.com/teamtrack/teamtrack/storage"
)

// ResolveProfiles loads full profiles for a set of user ids. The backing
// store answers at most repositories.MaxLookupIDs ids per query, so larger
// sets are chunked, fetched concurrently and merged. Ids that no longer
// resolve to a user (e.g. a member removed from a team but still referenced
// by an old attendance set) are dropped silently. The merged result is
// deduplicated and sorted by display name — input order is not preserved.
func ResolveProfiles(ctx context.Context, userRepo repositories.UserRepository, ids []int) ([]models.User, error) {
	unique := make([]int, 0, len(ids))
	seen := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return []models.User{}, nil
	}

	var mu sync.Mutex
	merged := make([]models.User, 0, len(unique))

	g, gctx := errgroup.WithContext(ctx)
	for start := 0; start < len(unique); start += repositories.MaxLookupIDs {
		end := start + repositories.MaxLookupIDs
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]

		g.Go(func() error {
			users, err := userRepo.ListByIDs(gctx, chunk)
			if err != nil {
				return fmt.Errorf("failed to resolve profile chunk: %w", err)
			}
			mu.Lock()
			merged = append(merged, users...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].DisplayName < merged[j].DisplayName
	})
	return merged, nil
}

func populateUserPhotoURL(user *models.User, uploader storage.FileUploader) {
	if user == nil || uploader == nil {
		return
	}
	if user.PhotoKey != nil && *user.PhotoKey != "" {
		url := uploader.GetPublicURL(*user.PhotoKey)
		if url != "" {
			user.PhotoURL = &url
		}
	}
}

func populateTeamImageURL(team *models.Team, uploader storage.FileUploader) {
	if team == nil || uploader == nil {
		return
	}
	if team.ImageKey != nil && *team.ImageKey != "" {
		url := uploader.GetPublicURL(*team.ImageKey)
		if url != "" {
			team.ImageURL = &url
		}
	}
}

func extensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	default:
		parts := strings.Split(contentType, "/")
		if len(parts) == 2 && strings.HasPrefix(parts[0], "image") && parts[1] != "" {
			return "." + strings.Split(parts[1], "+")[0], nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImageType, contentType)
	}
}
