package domain

import "testing"

const testDigest = "sha256:0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestImageURI(t *testing.T) {
	uri := ImageURI("123456789012", "us-east-1", "svc/api", testDigest)
	want := "123456789012.dkr.ecr.us-east-1.amazonaws.com/svc/api@" + testDigest
	if uri != want {
		t.Fatalf("unexpected uri: %q", uri)
	}
}

func TestDigestFromImageRef_Pinned(t *testing.T) {
	digest, ok := DigestFromImageRef("123456789012.dkr.ecr.us-east-1.amazonaws.com/svc/api@" + testDigest)
	if !ok {
		t.Fatalf("expected ok")
	}
	if digest != testDigest {
		t.Fatalf("unexpected digest: %q", digest)
	}
}

func TestDigestFromImageRef_BareDigest(t *testing.T) {
	digest, ok := DigestFromImageRef("SHA256:0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF")
	if !ok {
		t.Fatalf("expected ok")
	}
	if digest != testDigest {
		t.Fatalf("unexpected digest: %q", digest)
	}
}

func TestDigestFromImageRef_Rejects(t *testing.T) {
	cases := []string{
		"",
		"svc/api:latest",
		"svc/api@",
		"@" + testDigest,
		"svc/api@sha256:short",
	}
	for _, tc := range cases {
		if _, ok := DigestFromImageRef(tc); ok {
			t.Fatalf("expected not ok for %q", tc)
		}
	}
}

func TestIsSHA256Digest(t *testing.T) {
	if !IsSHA256Digest(testDigest) {
		t.Fatalf("expected true")
	}
	for _, tc := range []string{"", "sha256:", "sha256:zz", "md5:0123"} {
		if IsSHA256Digest(tc) {
			t.Fatalf("expected false for %q", tc)
		}
	}
}
