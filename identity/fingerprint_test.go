package identity

import "testing"

func TestListingFingerprintIgnoresTracking(t *testing.T) {
	a := ListingFingerprint("https://www.ebay.com/itm/mystery-bundle?campid=1&hash=abc", "Mystery Bundle")
	b := ListingFingerprint("https://WWW.EBAY.COM/itm/mystery-bundle/?campid=99#frag", "Mystery  Bundle")
	if a != b {
		t.Errorf("fingerprints differ across tracking noise: %q vs %q", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
}

func TestListingFingerprintDistinct(t *testing.T) {
	a := ListingFingerprint("https://www.ebay.com/itm/widget-one", "Widget One")
	b := ListingFingerprint("https://www.ebay.com/itm/widget-two", "Widget Two")
	if a == b {
		t.Error("different listings share a fingerprint")
	}
}

func TestNormalizeListingURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://www.ebay.com/itm/Foo-Bar/123?x=1", "www.ebay.com/itm/foo-bar/123"},
		{"https://EBAY.com/itm/a/", "ebay.com/itm/a"},
		{"not a url", "not a url"},
	}
	for _, tc := range cases {
		if got := NormalizeListingURL(tc.in); got != tc.want {
			t.Errorf("NormalizeListingURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
