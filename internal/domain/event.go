package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrIncompleteEvent marks a push notification missing the repository or
// tag. Such events are ignored without side effects.
var ErrIncompleteEvent = errors.New("incomplete image push event")

// ImagePushEvent is the registry notification that starts an invocation.
// The shape follows the registry's event bus payload: repository name,
// one tag (or a tag list, first element used) and the registry id.
type ImagePushEvent struct {
	ID     string          `json:"id"`
	Detail ImagePushDetail `json:"detail"`
}

type ImagePushDetail struct {
	RepositoryName string   `json:"repository-name"`
	ImageTag       string   `json:"image-tag"`
	ImageTags      []string `json:"image-tags"`
	RegistryID     string   `json:"registry-id"`
}

func ParseImagePushEvent(raw []byte) (ImagePushEvent, error) {
	var event ImagePushEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return ImagePushEvent{}, fmt.Errorf("decode image push event: %w", err)
	}
	return event, nil
}

// Tag returns the tag the event refers to: the scalar field when set,
// else the first element of the tag list.
func (e ImagePushEvent) Tag() string {
	if tag := strings.TrimSpace(e.Detail.ImageTag); tag != "" {
		return tag
	}
	for _, tag := range e.Detail.ImageTags {
		if strings.TrimSpace(tag) != "" {
			return strings.TrimSpace(tag)
		}
	}
	return ""
}

func (e ImagePushEvent) Repository() string {
	return strings.TrimSpace(e.Detail.RepositoryName)
}

func (e ImagePushEvent) RegistryID() string {
	return strings.TrimSpace(e.Detail.RegistryID)
}

func (e ImagePushEvent) Validate() error {
	if e.Repository() == "" || e.Tag() == "" {
		return ErrIncompleteEvent
	}
	return nil
}

func (e ImagePushEvent) BucketKey() string {
	return BucketKey(e.RegistryID(), e.Repository(), e.Tag())
}
