package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// ImageURI builds the digest-pinned image reference for a repository in
// a given registry account and region.
func ImageURI(registryID, region, repository, digest string) string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s@%s", registryID, region, repository, digest)
}

// DigestFromImageRef extracts the sha256 digest from an image reference,
// accepting either a bare digest or a name@digest form.
func DigestFromImageRef(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if IsSHA256Digest(ref) {
		return strings.ToLower(ref), true
	}
	at := strings.LastIndex(ref, "@")
	if at <= 0 || at == len(ref)-1 {
		return "", false
	}
	if strings.TrimSpace(ref[:at]) == "" {
		return "", false
	}
	digest := strings.ToLower(strings.TrimSpace(ref[at+1:]))
	if !IsSHA256Digest(digest) {
		return "", false
	}
	return digest, true
}

func IsSHA256Digest(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if !strings.HasPrefix(value, "sha256:") {
		return false
	}
	hexPart := strings.TrimPrefix(value, "sha256:")
	if len(hexPart) != 64 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}
